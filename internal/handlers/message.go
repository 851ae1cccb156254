package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
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

	messages, err := h.messages.MessagesForUser(r.Context(), chatID, userID)
	if err != nil {
		log.Printf("Error getting messages for chat %d: %v", chatID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID  int    `json:"chat_id"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 || req.Content == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.messages.Send(r.Context(), userID, req.ChatID, req.Content, req.Type)
	if err != nil {
		log.Printf("Error sending message to chat %d from user %d: %v", req.ChatID, userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ReadMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.messages.Read(r.Context(), userID, req.ChatID); err != nil {
		log.Printf("Error marking chat %d as read for user %d: %v", req.ChatID, userID, err)
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Messages marked as read")
}

func (h *Handler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.messages.MarkUnread(r.Context(), userID, req.ChatID); err != nil {
		log.Printf("Error marking chat %d as unread for user %d: %v", req.ChatID, userID, err)
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Chat marked as unread")
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || messageID <= 0 {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.messages.Delete(r.Context(), messageID, userID, req.Type)
	if err != nil {
		log.Printf("Error deleting message %d for user %d: %v", messageID, userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Message deleted",
		"id":      messageID,
		"chat":    msg.ChatID,
	})
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
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

	if err := h.messages.ClearHistory(r.Context(), userID, chatID); err != nil {
		log.Printf("Error clearing history of chat %d for user %d: %v", chatID, userID, err)
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Chat history cleared")
}
