package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func chatIDParam(r *http.Request) (int, bool) {
	chatID, err := strconv.Atoi(chi.URLParam(r, "chat_id"))
	if err != nil || chatID <= 0 {
		return 0, false
	}
	return chatID, true
}

// AccessChat finds or creates the direct chat with the given user.
func (h *Handler) AccessChat(w http.ResponseWriter, r *http.Request) {
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

	chat, err := h.chats.AccessChat(r.Context(), userID, req.UserID)
	if err != nil {
		log.Printf("Error accessing chat between %d and %d: %v", userID, req.UserID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *Handler) GetChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := h.chats.ChatsByUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error getting chats for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	chat, err := h.chats.GetChatById(r.Context(), chatID, userID)
	if err != nil {
		log.Printf("Error getting chat %d: %v", chatID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *Handler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name    string `json:"name"`
		Members []int  `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chat, err := h.chats.CreateGroupChat(r.Context(), userID, req.Name, req.Members)
	if err != nil {
		log.Printf("Error creating group chat for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int    `json:"chat_id"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chat, err := h.chats.RenameGroup(r.Context(), req.ChatID, userID, req.Name)
	if err != nil {
		log.Printf("Error renaming group %d: %v", req.ChatID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *Handler) AddToGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 || req.UserID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chat, err := h.chats.AddToGroup(r.Context(), req.ChatID, userID, req.UserID)
	if err != nil {
		log.Printf("Error adding user %d to group %d: %v", req.UserID, req.ChatID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *Handler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 || req.UserID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chat, err := h.chats.RemoveFromGroup(r.Context(), req.ChatID, userID, req.UserID)
	if err != nil {
		log.Printf("Error removing user %d from group %d: %v", req.UserID, req.ChatID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}
