package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Connect/server/internal/appMiddleware"
	"Connect/server/internal/calls"
	"Connect/server/internal/models"
	"Connect/server/internal/pool"
	"Connect/server/internal/relay"
	"Connect/server/internal/services"

	"github.com/gorilla/websocket"
)

type Handler struct {
	users    *services.UserService
	chats    *services.ChatService
	messages *services.MessageService
	pool     *pool.Pool
	relay    *relay.Relay
	calls    *calls.Manager

	jwtSecret []byte
	upgrader  websocket.Upgrader
}

func New(users *services.UserService, chats *services.ChatService, messages *services.MessageService,
	p *pool.Pool, r *relay.Relay, callManager *calls.Manager, jwtSecret []byte) *Handler {
	return &Handler{
		users:     users,
		chats:     chats,
		messages:  messages,
		pool:      p,
		relay:     r,
		calls:     callManager,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func currentUserID(r *http.Request) (int, bool) {
	userID := appMiddleware.UserIDFromContext(r.Context())
	return userID, userID != 0
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrChatNotFound),
		errors.Is(err, models.ErrMessageNotFound),
		errors.Is(err, models.ErrCallNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrPermissionDenied),
		errors.Is(err, models.ErrBlocked):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrBusy),
		errors.Is(err, models.ErrStaleSignal):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrPeerUnavailable):
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
