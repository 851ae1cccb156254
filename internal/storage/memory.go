package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"Connect/server/internal/models"

	"github.com/samber/lo"
)

// Memory is an in-process Store with the same union semantics as the
// Postgres implementation. It backs the test suite and keeps the coordinator
// independent of a running database.
type Memory struct {
	mu       sync.Mutex
	users    map[int]*models.User
	chats    map[int]*models.Chat
	messages map[int]*models.Message
	nextID   int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[int]*models.User),
		chats:    make(map[int]*models.Chat),
		messages: make(map[int]*models.Message),
	}
}

func (m *Memory) nextSeq() int {
	m.nextID++
	return m.nextID
}

func copyUser(u *models.User) *models.User {
	out := *u
	out.BlockedUsers = append([]int(nil), u.BlockedUsers...)
	return &out
}

func copyChat(c *models.Chat) *models.Chat {
	out := *c
	out.Members = append([]int(nil), c.Members...)
	return &out
}

func copyMessage(msg *models.Message) *models.Message {
	out := *msg
	out.ReadBy = append([]int(nil), msg.ReadBy...)
	out.DeletedBy = append([]int(nil), msg.DeletedBy...)
	out.Sender = nil
	out.Chat = nil
	return &out
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.nextSeq()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.users[user.ID] = copyUser(user)
	return user.ID, nil
}

func (m *Memory) UserByID(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *Memory) UserExists(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) SearchUsers(_ context.Context, term string, excludeID int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	term = strings.ToLower(term)
	var users []models.User
	for _, user := range m.users {
		if user.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), term) ||
			strings.Contains(strings.ToLower(user.Email), term) {
			users = append(users, *copyUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *Memory) UpdateLoginState(_ context.Context, userID, failedAttempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	user.FailedAttempts = failedAttempts
	user.LockedUntil = lockedUntil
	return nil
}

func (m *Memory) AddBlockedUser(_ context.Context, userID, targetID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	user.BlockedUsers = lo.Union(user.BlockedUsers, []int{targetID})
	return nil
}

func (m *Memory) RemoveBlockedUser(_ context.Context, userID, targetID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	user.BlockedUsers = lo.Without(user.BlockedUsers, targetID)
	return nil
}

func (m *Memory) CreateChat(_ context.Context, chat *models.Chat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat.ID = m.nextSeq()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
	m.chats[chat.ID] = copyChat(chat)
	return chat.ID, nil
}

func (m *Memory) ChatByID(_ context.Context, id int) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[id]
	if !ok {
		return nil, models.ErrChatNotFound
	}
	return copyChat(chat), nil
}

func (m *Memory) ChatsByUser(_ context.Context, userID int) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var chats []models.Chat
	for _, chat := range m.chats {
		if chat.HasMember(userID) {
			chats = append(chats, *copyChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID > chats[j].ID })
	return chats, nil
}

func (m *Memory) FindDirectChat(_ context.Context, userA, userB int) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chat := range m.chats {
		if !chat.IsGroupChat && chat.HasMember(userA) && chat.HasMember(userB) {
			return copyChat(chat), nil
		}
	}
	return nil, models.ErrChatNotFound
}

func (m *Memory) RenameChat(_ context.Context, chatID int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	chat.Name = name
	return nil
}

func (m *Memory) AddChatMember(_ context.Context, chatID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	chat.Members = lo.Union(chat.Members, []int{userID})
	return nil
}

func (m *Memory) RemoveChatMember(_ context.Context, chatID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	chat.Members = lo.Without(chat.Members, userID)
	return nil
}

func (m *Memory) SetLatestMessage(_ context.Context, chatID int, messageID *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	chat.LatestMessageID = messageID
	return nil
}

func (m *Memory) CreateMessage(_ context.Context, msg *models.Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[msg.ChatID]
	if !ok {
		return 0, models.ErrChatNotFound
	}

	msg.ID = m.nextSeq()
	m.messages[msg.ID] = copyMessage(msg)

	id := msg.ID
	chat.LatestMessageID = &id
	return msg.ID, nil
}

func (m *Memory) MessageByID(_ context.Context, id int) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	return copyMessage(msg), nil
}

func (m *Memory) MessagesByChat(_ context.Context, chatID, viewerID int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var messages []models.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID && !msg.DeletedForUser(viewerID) {
			messages = append(messages, *copyMessage(msg))
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
	return messages, nil
}

func (m *Memory) LatestMessage(_ context.Context, chatID int) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.Message
	for _, msg := range m.messages {
		if msg.ChatID != chatID {
			continue
		}
		if latest == nil || msg.SentAt.After(latest.SentAt) ||
			(msg.SentAt.Equal(latest.SentAt) && msg.ID > latest.ID) {
			latest = msg
		}
	}
	if latest == nil {
		return nil, models.ErrMessageNotFound
	}
	return copyMessage(latest), nil
}

func (m *Memory) AddReadByForChat(_ context.Context, chatID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			msg.ReadBy = lo.Union(msg.ReadBy, []int{userID})
		}
	}
	return nil
}

func (m *Memory) RemoveReadBy(_ context.Context, messageID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return models.ErrMessageNotFound
	}
	msg.ReadBy = lo.Without(msg.ReadBy, userID)
	return nil
}

func (m *Memory) AddDeletedBy(_ context.Context, messageID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return models.ErrMessageNotFound
	}
	msg.DeletedBy = lo.Union(msg.DeletedBy, []int{userID})
	return nil
}

func (m *Memory) AddDeletedByForChat(_ context.Context, chatID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			msg.DeletedBy = lo.Union(msg.DeletedBy, []int{userID})
		}
	}
	return nil
}

func (m *Memory) DeleteMessage(_ context.Context, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[messageID]; !ok {
		return models.ErrMessageNotFound
	}
	delete(m.messages, messageID)
	return nil
}
