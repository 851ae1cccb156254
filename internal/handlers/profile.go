package handlers

import (
	"log"
	"net/http"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		log.Println("Missing user_id in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetUserById(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching user profile: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
