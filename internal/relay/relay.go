package relay

import (
	"log"
	"sync"

	"Connect/server/internal/models"
	"Connect/server/internal/pool"

	"github.com/google/uuid"
)

const (
	EventConnected      = "connected"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventNewMessage     = "new_message"
	EventMessageDeleted = "message_deleted"
	EventIncomingCall   = "incoming_call"
	EventCallAccepted   = "call_accepted"
	EventICECandidate   = "ice_candidate"
	EventCallEnded      = "call_ended"
	EventCallError      = "call_error"
)

// Relay routes real-time events. Message and deletion fan-out is addressed
// per user (every device of every chat member except the sender); typing
// indicators go to chat-scoped topics a connection explicitly joined.
type Relay struct {
	pool *pool.Pool

	mu       sync.RWMutex
	chatSubs map[int]map[uuid.UUID]*pool.Client
}

func New(p *pool.Pool) *Relay {
	return &Relay{
		pool:     p,
		chatSubs: make(map[int]map[uuid.UUID]*pool.Client),
	}
}

// JoinChat subscribes the connection to a chat topic. The topic carries
// typing indicators only; message delivery stays per-user.
func (r *Relay) JoinChat(client *pool.Client, chatID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chatSubs[chatID] == nil {
		r.chatSubs[chatID] = make(map[uuid.UUID]*pool.Client)
	}
	r.chatSubs[chatID][client.ID] = client
	log.Printf("Client %s joined chat topic %d", client.ID, chatID)
}

// DropClient removes the connection from every chat topic it joined.
func (r *Relay) DropClient(client *pool.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chatID, subs := range r.chatSubs {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(r.chatSubs, chatID)
		}
	}
}

func (r *Relay) chatSubscribers(chatID int, except uuid.UUID) []*pool.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.chatSubs[chatID]
	clients := make([]*pool.Client, 0, len(subs))
	for id, client := range subs {
		if id == except {
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

func (r *Relay) Typing(from *pool.Client, chatID int) {
	r.broadcastToChat(from, chatID, EventTyping)
}

func (r *Relay) StopTyping(from *pool.Client, chatID int) {
	r.broadcastToChat(from, chatID, EventStopTyping)
}

func (r *Relay) broadcastToChat(from *pool.Client, chatID int, eventType string) {
	data := map[string]interface{}{
		"chat_id": chatID,
		"user_id": from.UserID,
	}
	for _, client := range r.chatSubscribers(chatID, from.ID) {
		r.deliver(client, eventType, data)
	}
}

// SendToUser delivers an event to every live connection of the user and
// returns how many connections received it. Zero is not an error: the user
// is simply offline.
func (r *Relay) SendToUser(userID int, eventType string, data interface{}) int {
	delivered := 0
	for _, client := range r.pool.ClientsForUser(userID) {
		if r.deliver(client, eventType, data) {
			delivered++
		}
	}
	return delivered
}

func (r *Relay) deliver(client *pool.Client, eventType string, data interface{}) bool {
	if err := client.Send(eventType, data); err != nil {
		log.Printf("Error sending event to user %d: %v", client.UserID, err)
		client.Close()
		r.pool.RemoveClient(client)
		r.DropClient(client)
		return false
	}
	return true
}

// BroadcastNewMessage fans a freshly persisted message out to every chat
// member except the sender. The caller must only invoke this after the
// durable write has completed, passing the message that write produced.
func (r *Relay) BroadcastNewMessage(msg *models.Message) {
	if msg.Chat == nil {
		log.Printf("Message %d has no chat populated, skipping broadcast", msg.ID)
		return
	}
	for _, userID := range msg.Chat.Members {
		if userID == msg.SenderID {
			continue
		}
		r.SendToUser(userID, EventNewMessage, msg)
	}
}

// BroadcastDeletion tells every other chat member to evict the message from
// its live view. Receivers remove by id, so redelivery is harmless.
func (r *Relay) BroadcastDeletion(messageID, chatID, senderID int, members []int) {
	data := map[string]interface{}{
		"id":     messageID,
		"chat":   chatID,
		"sender": senderID,
	}
	for _, userID := range members {
		if userID == senderID {
			continue
		}
		r.SendToUser(userID, EventMessageDeleted, data)
	}
}
