package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	searchTerm := r.URL.Query().Get("q")
	if searchTerm == "" {
		http.Error(w, "Search term is required", http.StatusBadRequest)
		return
	}

	users, err := h.users.SearchUsers(r.Context(), searchTerm, userID)
	if err != nil {
		log.Printf("Error searching users: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	if blocked {
		err = h.users.Block(r.Context(), userID, req.UserID)
	} else {
		err = h.users.Unblock(r.Context(), userID, req.UserID)
	}
	if err != nil {
		log.Printf("Error updating block state for user %d -> %d: %v", userID, req.UserID, err)
		writeError(w, err)
		return
	}

	if blocked {
		writeMessage(w, http.StatusOK, "User blocked successfully")
	} else {
		writeMessage(w, http.StatusOK, "User unblocked successfully")
	}
}
