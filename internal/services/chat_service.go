package services

import (
	"context"
	"errors"
	"log"

	"Connect/server/internal/models"
	"Connect/server/internal/storage"
)

// minGroupMembers is the admin plus at least two others.
const minGroupMembers = 3

type ChatService struct {
	store storage.Store
}

func NewChatService(store storage.Store) *ChatService {
	return &ChatService{store: store}
}

// AccessChat returns the direct chat between the two users, creating it if
// it does not exist yet. Direct chats always have exactly two members.
func (cs *ChatService) AccessChat(ctx context.Context, userID, targetID int) (*models.Chat, error) {
	if userID == targetID {
		return nil, models.ErrValidation
	}
	if _, err := cs.store.UserByID(ctx, targetID); err != nil {
		return nil, err
	}

	chat, err := cs.store.FindDirectChat(ctx, userID, targetID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, models.ErrChatNotFound) {
		return nil, err
	}

	chat = &models.Chat{
		IsGroupChat: false,
		Members:     []int{userID, targetID},
	}
	if _, err := cs.store.CreateChat(ctx, chat); err != nil {
		log.Printf("Error creating direct chat between %d and %d: %v", userID, targetID, err)
		return nil, err
	}
	log.Printf("Direct chat %d created between users %d and %d", chat.ID, userID, targetID)
	return chat, nil
}

// ChatsByUser returns the user's chats with their latest message attached.
func (cs *ChatService) ChatsByUser(ctx context.Context, userID int) ([]models.Chat, error) {
	chats, err := cs.store.ChatsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range chats {
		if chats[i].LatestMessageID == nil {
			continue
		}
		msg, err := cs.store.MessageByID(ctx, *chats[i].LatestMessageID)
		if err != nil {
			if errors.Is(err, models.ErrMessageNotFound) {
				continue
			}
			return nil, err
		}
		chats[i].LatestMessage = msg
	}
	return chats, nil
}

func (cs *ChatService) GetChatById(ctx context.Context, chatID, userID int) (*models.Chat, error) {
	chat, err := cs.store.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, models.ErrPermissionDenied
	}
	return chat, nil
}

// CreateGroupChat creates a group with the caller as admin. The member set
// must contain the admin plus at least two others.
func (cs *ChatService) CreateGroupChat(ctx context.Context, adminID int, name string, memberIDs []int) (*models.Chat, error) {
	if name == "" {
		return nil, models.ErrValidation
	}

	members := []int{adminID}
	for _, id := range memberIDs {
		if id == adminID || containsInt(members, id) {
			continue
		}
		if _, err := cs.store.UserByID(ctx, id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	if len(members) < minGroupMembers {
		return nil, models.ErrValidation
	}

	admin := adminID
	chat := &models.Chat{
		IsGroupChat: true,
		Name:        name,
		Members:     members,
		GroupAdmin:  &admin,
	}
	if _, err := cs.store.CreateChat(ctx, chat); err != nil {
		log.Printf("Error creating group chat %q: %v", name, err)
		return nil, err
	}
	log.Printf("Group chat %d (%q) created by user %d with %d members", chat.ID, name, adminID, len(members))
	return chat, nil
}

func (cs *ChatService) RenameGroup(ctx context.Context, chatID, actorID int, name string) (*models.Chat, error) {
	if name == "" {
		return nil, models.ErrValidation
	}
	chat, err := cs.groupForAdmin(ctx, chatID, actorID)
	if err != nil {
		return nil, err
	}

	if err := cs.store.RenameChat(ctx, chatID, name); err != nil {
		return nil, err
	}
	chat.Name = name
	return chat, nil
}

func (cs *ChatService) AddToGroup(ctx context.Context, chatID, actorID, userID int) (*models.Chat, error) {
	chat, err := cs.groupForAdmin(ctx, chatID, actorID)
	if err != nil {
		return nil, err
	}
	if chat.HasMember(userID) {
		return chat, nil
	}
	if _, err := cs.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}

	if err := cs.store.AddChatMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	chat.Members = append(chat.Members, userID)
	log.Printf("User %d added to group %d by user %d", userID, chatID, actorID)
	return chat, nil
}

// RemoveFromGroup removes a member. Admins may remove anyone but
// themselves; regular members may only remove themselves (leave). The group
// never shrinks below the minimum member count.
func (cs *ChatService) RemoveFromGroup(ctx context.Context, chatID, actorID, userID int) (*models.Chat, error) {
	chat, err := cs.store.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroupChat {
		return nil, models.ErrValidation
	}
	if !chat.HasMember(actorID) || !chat.HasMember(userID) {
		return nil, models.ErrPermissionDenied
	}

	isAdmin := chat.GroupAdmin != nil && *chat.GroupAdmin == actorID
	if !isAdmin && actorID != userID {
		return nil, models.ErrPermissionDenied
	}
	if chat.GroupAdmin != nil && *chat.GroupAdmin == userID {
		return nil, models.ErrValidation
	}
	if len(chat.Members) <= minGroupMembers {
		return nil, models.ErrValidation
	}

	if err := cs.store.RemoveChatMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	members := chat.Members[:0]
	for _, id := range chat.Members {
		if id != userID {
			members = append(members, id)
		}
	}
	chat.Members = members
	log.Printf("User %d removed from group %d by user %d", userID, chatID, actorID)
	return chat, nil
}

func (cs *ChatService) groupForAdmin(ctx context.Context, chatID, actorID int) (*models.Chat, error) {
	chat, err := cs.store.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroupChat {
		return nil, models.ErrValidation
	}
	if chat.GroupAdmin == nil || *chat.GroupAdmin != actorID {
		return nil, models.ErrPermissionDenied
	}
	return chat, nil
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
