package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"Connect/server/internal/appMiddleware"
	"Connect/server/internal/pool"
	"Connect/server/internal/relay"

	"github.com/google/uuid"
)

type wsEnvelope struct {
	Event      string          `json:"event"`
	ChatID     int             `json:"chat_id,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	UserToCall int             `json:"user_to_call,omitempty"`
	Name       string          `json:"name,omitempty"`
	Pic        string          `json:"pic,omitempty"`
	Signal     json.RawMessage `json:"signal,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, err := appMiddleware.ParseUserID(tokenStr, h.jwtSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := h.pool.AddClient(userID, conn)
	defer func() {
		h.relay.DropClient(client)
		h.pool.RemoveClient(client)
		conn.Close()
	}()

	log.Printf("User %d connected to WebSocket", userID)

	if err := client.Send(relay.EventConnected, map[string]int{"user_id": userID}); err != nil {
		log.Printf("Error acking connection for user %d: %v", userID, err)
		return
	}

	for {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		switch msg.Event {
		case "join_chat":
			if msg.ChatID == 0 {
				continue
			}
			h.relay.JoinChat(client, msg.ChatID)

		case "typing":
			h.relay.Typing(client, msg.ChatID)

		case "stop_typing":
			h.relay.StopTyping(client, msg.ChatID)

		case "call_user":
			session, err := h.calls.Initiate(userID, msg.UserToCall, msg.Signal, msg.Name, msg.Pic)
			if err != nil {
				log.Printf("Error initiating call from %d to %d: %v", userID, msg.UserToCall, err)
				h.sendCallError(client, "", err)
				continue
			}
			log.Printf("Call %s ringing for user %d", session.ID, msg.UserToCall)

		case "answer_call":
			callID, err := uuid.Parse(msg.CallID)
			if err != nil {
				continue
			}
			if err := h.calls.Answer(callID, userID, msg.Signal); err != nil {
				log.Printf("Error answering call %s by user %d: %v", msg.CallID, userID, err)
				h.sendCallError(client, msg.CallID, err)
			}

		case "ice_candidate":
			callID, err := uuid.Parse(msg.CallID)
			if err != nil {
				continue
			}
			if err := h.calls.RelayICECandidate(callID, userID, msg.Candidate); err != nil {
				log.Printf("Error relaying candidate for call %s: %v", msg.CallID, err)
			}

		case "end_call":
			callID, err := uuid.Parse(msg.CallID)
			if err != nil {
				continue
			}
			if err := h.calls.End(callID, userID); err != nil {
				log.Printf("Error ending call %s by user %d: %v", msg.CallID, userID, err)
			}

		default:
			log.Printf("User %d sent unknown event %q", userID, msg.Event)
		}
	}
}

// sendCallError reports a signaling failure back to the emitting connection
// only. Message and typing events stay fire-and-forget.
func (h *Handler) sendCallError(client *pool.Client, callID string, err error) {
	sendErr := client.Send(relay.EventCallError, map[string]string{
		"call_id": callID,
		"error":   err.Error(),
	})
	if sendErr != nil {
		log.Printf("Error sending call error: %v", sendErr)
	}
}
