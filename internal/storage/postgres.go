package storage

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"Connect/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func intsToArray(ids []int) *pgtype.Int4Array {
	arr := &pgtype.Int4Array{}
	if ids == nil {
		ids = []int{}
	}
	if err := arr.Set(ids); err != nil {
		log.Printf("Error encoding int array: %v", err)
	}
	return arr
}

func arrayToInts(arr pgtype.Int4Array) []int {
	ids := make([]int, 0, len(arr.Elements))
	for _, e := range arr.Elements {
		if e.Status == pgtype.Present {
			ids = append(ids, int(e.Int))
		}
	}
	return ids
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) (int, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("users").
		Columns("username", "email", "password_hash", "pic").
		Values(user.Username, user.Email, user.PasswordHash, user.Pic).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var userID int
	err = p.pool.QueryRow(ctx, sqlStr, args...).Scan(&userID)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return 0, err
	}
	return userID, nil
}

func (p *Postgres) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var blocked pgtype.Int4Array
	var lockedUntil pgtype.Timestamptz

	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Pic, &blocked, &user.FailedAttempts, &lockedUntil, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	user.BlockedUsers = arrayToInts(blocked)
	if lockedUntil.Status == pgtype.Present {
		user.LockedUntil = &lockedUntil.Time
	}
	return &user, nil
}

const userColumns = "id, username, email, password_hash, pic, blocked_users, failed_attempts, locked_until, created_at"

func (p *Postgres) UserByID(ctx context.Context, id int) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(userColumns).
		From("users").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	return p.scanUser(p.pool.QueryRow(ctx, sqlStr, args...))
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(userColumns).
		From("users").
		Where(squirrel.Eq{"email": email})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	return p.scanUser(p.pool.QueryRow(ctx, sqlStr, args...))
}

func (p *Postgres) UserExists(ctx context.Context, username, email string) (bool, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Eq{"email": email},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return false, err
	}

	var count int
	err = p.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error checking user existence: %v", err)
		return false, err
	}
	return count > 0, nil
}

func (p *Postgres) SearchUsers(ctx context.Context, term string, excludeID int) ([]models.User, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "username", "email", "pic").
		From("users").
		Where(squirrel.Or{
			squirrel.Expr("LOWER(username) LIKE ?", pattern),
			squirrel.Expr("LOWER(email) LIKE ?", pattern),
		}).
		Where(squirrel.NotEq{"id": excludeID}).
		OrderBy("username").
		Limit(20)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := p.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error searching users: %v", err)
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Pic); err != nil {
			log.Printf("Error scanning user row: %v", err)
			continue
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (p *Postgres) UpdateLoginState(ctx context.Context, userID, failedAttempts int, lockedUntil *time.Time) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("failed_attempts", failedAttempts).
		Set("locked_until", lockedUntil).
		Where(squirrel.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) AddBlockedUser(ctx context.Context, userID, targetID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("blocked_users", squirrel.Expr("array_append(blocked_users, ?)", targetID)).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.Expr("NOT (? = ANY(blocked_users))", targetID))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error blocking user %d for user %d: %v", targetID, userID, err)
	}
	return err
}

func (p *Postgres) RemoveBlockedUser(ctx context.Context, userID, targetID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("blocked_users", squirrel.Expr("array_remove(blocked_users, ?)", targetID)).
		Where(squirrel.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) CreateChat(ctx context.Context, chat *models.Chat) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("chats").
		Columns("is_group_chat", "name", "group_admin").
		Values(chat.IsGroupChat, chat.Name, chat.GroupAdmin).
		Suffix("RETURNING id, created_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var chatID int
	var createdAt time.Time
	err = tx.QueryRow(ctx, sqlStr, args...).Scan(&chatID, &createdAt)
	if err != nil {
		log.Printf("Error creating chat: %v", err)
		return 0, err
	}

	for _, userID := range chat.Members {
		memberQuery := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("chat_members").
			Columns("chat_id", "user_id").
			Values(chatID, userID)

		sqlStr, args, err := memberQuery.ToSql()
		if err != nil {
			log.Printf("Failed to build SQL query: %v", err)
			return 0, err
		}
		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			log.Printf("Error adding member %d to chat %d: %v", userID, chatID, err)
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	chat.ID = chatID
	chat.CreatedAt = createdAt
	log.Printf("Chat created with ID %d", chatID)
	return chatID, nil
}

func (p *Postgres) chatMembers(ctx context.Context, chatID int) ([]int, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("user_id").
		From("chat_members").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("joined_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int
	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

func (p *Postgres) ChatByID(ctx context.Context, id int) (*models.Chat, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "is_group_chat", "name", "group_admin", "latest_message_id", "created_at").
		From("chats").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var chat models.Chat
	err = p.pool.QueryRow(ctx, sqlStr, args...).Scan(&chat.ID, &chat.IsGroupChat,
		&chat.Name, &chat.GroupAdmin, &chat.LatestMessageID, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrChatNotFound
		}
		log.Printf("Error getting chat %d: %v", id, err)
		return nil, err
	}

	chat.Members, err = p.chatMembers(ctx, id)
	if err != nil {
		log.Printf("Error getting members for chat %d: %v", id, err)
		return nil, err
	}
	return &chat, nil
}

func (p *Postgres) ChatsByUser(ctx context.Context, userID int) ([]models.Chat, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("chats.id").
		From("chats").
		Join("chat_members ON chats.id = chat_members.chat_id").
		Where(squirrel.Eq{"chat_members.user_id": userID}).
		OrderBy("chats.created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := p.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting chats for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := p.ChatByID(ctx, id)
		if err != nil {
			log.Printf("Error loading chat %d: %v", id, err)
			continue
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

func (p *Postgres) FindDirectChat(ctx context.Context, userA, userB int) (*models.Chat, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("c.id").
		From("chats c").
		Join("chat_members m1 ON c.id = m1.chat_id").
		Join("chat_members m2 ON c.id = m2.chat_id").
		Where(squirrel.Eq{
			"c.is_group_chat": false,
			"m1.user_id":      userA,
			"m2.user_id":      userB,
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var chatID int
	err = p.pool.QueryRow(ctx, sqlStr, args...).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrChatNotFound
		}
		log.Printf("Error finding direct chat between %d and %d: %v", userA, userB, err)
		return nil, err
	}
	return p.ChatByID(ctx, chatID)
}

func (p *Postgres) RenameChat(ctx context.Context, chatID int, name string) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("chats").
		Set("name", name).
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) AddChatMember(ctx context.Context, chatID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("chat_members").
		Columns("chat_id", "user_id").
		Values(chatID, userID).
		Suffix("ON CONFLICT DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error adding member %d to chat %d: %v", userID, chatID, err)
	}
	return err
}

func (p *Postgres) RemoveChatMember(ctx context.Context, chatID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Delete("chat_members").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"user_id": userID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) SetLatestMessage(ctx context.Context, chatID int, messageID *int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("chats").
		Set("latest_message_id", messageID).
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) CreateMessage(ctx context.Context, msg *models.Message) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("messages").
		Columns("chat_id", "sender_id", "content", "type", "read_by", "deleted_by", "sent_at").
		Values(msg.ChatID, msg.SenderID, msg.Content, msg.Type,
			intsToArray(msg.ReadBy), intsToArray(msg.DeletedBy), msg.SentAt).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var messageID int
	err = tx.QueryRow(ctx, sqlStr, args...).Scan(&messageID)
	if err != nil {
		log.Printf("Error saving message: %v", err)
		return 0, err
	}

	latestQuery := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("chats").
		Set("latest_message_id", messageID).
		Where(squirrel.Eq{"id": msg.ChatID})

	sqlStr, args, err = latestQuery.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		log.Printf("Error updating latest message for chat %d: %v", msg.ChatID, err)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	msg.ID = messageID
	log.Printf("Message %d saved to chat %d by user %d", messageID, msg.ChatID, msg.SenderID)
	return messageID, nil
}

const messageColumns = "id, chat_id, sender_id, content, type, read_by, deleted_by, sent_at"

func (p *Postgres) scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var readBy, deletedBy pgtype.Int4Array

	err := row.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content,
		&msg.Type, &readBy, &deletedBy, &msg.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMessageNotFound
		}
		return nil, err
	}

	msg.ReadBy = arrayToInts(readBy)
	msg.DeletedBy = arrayToInts(deletedBy)
	return &msg, nil
}

func (p *Postgres) MessageByID(ctx context.Context, id int) (*models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(messageColumns).
		From("messages").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	return p.scanMessage(p.pool.QueryRow(ctx, sqlStr, args...))
}

func (p *Postgres) MessagesByChat(ctx context.Context, chatID, viewerID int) ([]models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(messageColumns).
		From("messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		Where(squirrel.Expr("NOT (? = ANY(deleted_by))", viewerID)).
		OrderBy("sent_at ASC", "id ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := p.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := p.scanMessage(rows)
		if err != nil {
			log.Printf("Error scanning message row: %v", err)
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (p *Postgres) LatestMessage(ctx context.Context, chatID int) (*models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(messageColumns).
		From("messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("sent_at DESC", "id DESC").
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	return p.scanMessage(p.pool.QueryRow(ctx, sqlStr, args...))
}

func (p *Postgres) AddReadByForChat(ctx context.Context, chatID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("read_by", squirrel.Expr("array_append(read_by, ?)", userID)).
		Where(squirrel.Eq{"chat_id": chatID}).
		Where(squirrel.Expr("NOT (? = ANY(read_by))", userID))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error marking chat %d as read for user %d: %v", chatID, userID, err)
	}
	return err
}

func (p *Postgres) RemoveReadBy(ctx context.Context, messageID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("read_by", squirrel.Expr("array_remove(read_by, ?)", userID)).
		Where(squirrel.Eq{"id": messageID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) AddDeletedBy(ctx context.Context, messageID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("deleted_by", squirrel.Expr("array_append(deleted_by, ?)", userID)).
		Where(squirrel.Eq{"id": messageID}).
		Where(squirrel.Expr("NOT (? = ANY(deleted_by))", userID))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error deleting message %d for user %d: %v", messageID, userID, err)
	}
	return err
}

func (p *Postgres) AddDeletedByForChat(ctx context.Context, chatID, userID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("deleted_by", squirrel.Expr("array_append(deleted_by, ?)", userID)).
		Where(squirrel.Eq{"chat_id": chatID}).
		Where(squirrel.Expr("NOT (? = ANY(deleted_by))", userID))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error clearing history of chat %d for user %d: %v", chatID, userID, err)
	}
	return err
}

func (p *Postgres) DeleteMessage(ctx context.Context, messageID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Delete("messages").
		Where(squirrel.Eq{"id": messageID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	tag, err := p.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error deleting message %d: %v", messageID, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}
