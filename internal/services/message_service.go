package services

import (
	"context"
	"errors"
	"log"

	"Connect/server/internal/models"
	"Connect/server/internal/relay"
	"Connect/server/internal/storage"

	"github.com/jonboulle/clockwork"
)

const (
	DeleteForMe       = "me"
	DeleteForEveryone = "everyone"
)

// MessageService coordinates message writes against the store and triggers
// the relay strictly after each durable write completes. Broadcasts always
// carry the message produced by the write they follow, never a separately
// computed snapshot, so per-chat write/broadcast order holds even when
// sends race.
type MessageService struct {
	store storage.Store
	relay *relay.Relay
	clock clockwork.Clock
}

func NewMessageService(store storage.Store, r *relay.Relay, clock clockwork.Clock) *MessageService {
	return &MessageService{store: store, relay: r, clock: clock}
}

// Send validates membership and block state, persists the message, and
// fans it out to the other chat members. The returned message has its
// sender and chat populated.
func (ms *MessageService) Send(ctx context.Context, senderID, chatID int, content, msgType string) (*models.Message, error) {
	if content == "" {
		return nil, models.ErrValidation
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.IsValidMessageType(msgType) {
		return nil, models.ErrValidation
	}

	chat, err := ms.store.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(senderID) {
		return nil, models.ErrPermissionDenied
	}

	sender, err := ms.store.UserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	if !chat.IsGroupChat {
		other, err := ms.store.UserByID(ctx, chat.OtherMember(senderID))
		if err != nil {
			return nil, err
		}
		if sender.HasBlocked(other.ID) || other.HasBlocked(senderID) {
			return nil, models.ErrBlocked
		}
	}

	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		ReadBy:    []int{senderID},
		DeletedBy: []int{},
		SentAt:    ms.clock.Now(),
	}
	if _, err := ms.store.CreateMessage(ctx, msg); err != nil {
		log.Printf("Error saving message to chat %d: %v", chatID, err)
		return nil, err
	}

	msg.Sender = sender
	msg.Chat = chat
	ms.relay.BroadcastNewMessage(msg)
	return msg, nil
}

// MessagesForUser returns the chat history visible to the user, in send
// order, excluding anything they deleted for themselves.
func (ms *MessageService) MessagesForUser(ctx context.Context, chatID, userID int) ([]models.Message, error) {
	chat, err := ms.store.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, models.ErrPermissionDenied
	}
	return ms.store.MessagesByChat(ctx, chatID, userID)
}

// Read marks every message in the chat as read by the user. Re-reading is
// a no-op: read_by only ever grows.
func (ms *MessageService) Read(ctx context.Context, userID, chatID int) error {
	chat, err := ms.store.ChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return models.ErrPermissionDenied
	}
	return ms.store.AddReadByForChat(ctx, chatID, userID)
}

// Delete removes a message either from the caller's own view (mode "me")
// or from the store entirely (mode "everyone", sender only). In the
// "everyone" case exactly one of any concurrent callers wins; the others
// observe ErrMessageNotFound.
func (ms *MessageService) Delete(ctx context.Context, messageID, actorID int, mode string) (*models.Message, error) {
	msg, err := ms.store.MessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	switch mode {
	case DeleteForMe:
		if err := ms.store.AddDeletedBy(ctx, messageID, actorID); err != nil {
			return nil, err
		}
		return msg, nil

	case DeleteForEveryone:
		if msg.SenderID != actorID {
			return nil, models.ErrPermissionDenied
		}
		if err := ms.store.DeleteMessage(ctx, messageID); err != nil {
			return nil, err
		}

		chat, err := ms.store.ChatByID(ctx, msg.ChatID)
		if err != nil {
			return nil, err
		}
		if chat.LatestMessageID != nil && *chat.LatestMessageID == messageID {
			if err := ms.repointLatest(ctx, chat.ID); err != nil {
				log.Printf("Error repointing latest message for chat %d: %v", chat.ID, err)
			}
		}

		ms.relay.BroadcastDeletion(messageID, msg.ChatID, msg.SenderID, chat.Members)
		log.Printf("Message %d unsent from chat %d by user %d", messageID, msg.ChatID, actorID)
		return msg, nil

	default:
		return nil, models.ErrValidation
	}
}

// MarkUnread drops the user from the latest message's read set so the chat
// shows up as unread again. Personal: nothing changes for other members.
func (ms *MessageService) MarkUnread(ctx context.Context, userID, chatID int) error {
	chat, err := ms.store.ChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return models.ErrPermissionDenied
	}
	if chat.LatestMessageID == nil {
		return nil
	}

	err = ms.store.RemoveReadBy(ctx, *chat.LatestMessageID, userID)
	if errors.Is(err, models.ErrMessageNotFound) {
		return nil
	}
	return err
}

// ClearHistory hides the chat's current messages from the requesting user
// only. Shared history is untouched; other members keep their view.
func (ms *MessageService) ClearHistory(ctx context.Context, userID, chatID int) error {
	chat, err := ms.store.ChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return models.ErrPermissionDenied
	}

	if err := ms.store.AddDeletedByForChat(ctx, chatID, userID); err != nil {
		return err
	}
	log.Printf("User %d cleared their history of chat %d", userID, chatID)
	return nil
}

func (ms *MessageService) repointLatest(ctx context.Context, chatID int) error {
	latest, err := ms.store.LatestMessage(ctx, chatID)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return ms.store.SetLatestMessage(ctx, chatID, nil)
		}
		return err
	}
	return ms.store.SetLatestMessage(ctx, chatID, &latest.ID)
}
