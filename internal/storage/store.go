package storage

import (
	"context"
	"time"

	"Connect/server/internal/models"
)

// Store is the persistence boundary of the messaging core. Implementations
// must provide set-union semantics for read_by/deleted_by mutations so that
// concurrent markers never overwrite each other.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) (int, error)
	UserByID(ctx context.Context, id int) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	SearchUsers(ctx context.Context, term string, excludeID int) ([]models.User, error)
	UpdateLoginState(ctx context.Context, userID, failedAttempts int, lockedUntil *time.Time) error
	AddBlockedUser(ctx context.Context, userID, targetID int) error
	RemoveBlockedUser(ctx context.Context, userID, targetID int) error

	CreateChat(ctx context.Context, chat *models.Chat) (int, error)
	ChatByID(ctx context.Context, id int) (*models.Chat, error)
	ChatsByUser(ctx context.Context, userID int) ([]models.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB int) (*models.Chat, error)
	RenameChat(ctx context.Context, chatID int, name string) error
	AddChatMember(ctx context.Context, chatID, userID int) error
	RemoveChatMember(ctx context.Context, chatID, userID int) error
	SetLatestMessage(ctx context.Context, chatID int, messageID *int) error

	// CreateMessage persists the message and repoints the chat's
	// latest_message_id at it in the same transaction.
	CreateMessage(ctx context.Context, msg *models.Message) (int, error)
	MessageByID(ctx context.Context, id int) (*models.Message, error)
	// MessagesByChat returns the chat history in send order, excluding
	// messages the viewer has deleted for themselves.
	MessagesByChat(ctx context.Context, chatID, viewerID int) ([]models.Message, error)
	// LatestMessage returns the most recently created message still present
	// in the chat, or ErrMessageNotFound when the chat has none left.
	LatestMessage(ctx context.Context, chatID int) (*models.Message, error)
	AddReadByForChat(ctx context.Context, chatID, userID int) error
	RemoveReadBy(ctx context.Context, messageID, userID int) error
	AddDeletedBy(ctx context.Context, messageID, userID int) error
	AddDeletedByForChat(ctx context.Context, chatID, userID int) error
	// DeleteMessage hard-removes the message. Exactly one concurrent caller
	// succeeds; the others get ErrMessageNotFound.
	DeleteMessage(ctx context.Context, messageID int) error
}
