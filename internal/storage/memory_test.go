package storage

import (
	"context"
	"testing"
	"time"

	"Connect/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChat(t *testing.T, m *Memory) (chatID int, members []int) {
	t.Helper()
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		id, err := m.CreateUser(ctx, &models.User{Username: name, Email: name + "@example.com"})
		require.NoError(t, err)
		members = append(members, id)
	}
	chatID, err := m.CreateChat(ctx, &models.Chat{Members: members})
	require.NoError(t, err)
	return chatID, members
}

func TestReadByGrowsAsASet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	msgID, err := m.CreateMessage(ctx, &models.Message{
		ChatID:   chatID,
		SenderID: members[0],
		Content:  "hi",
		ReadBy:   []int{members[0]},
		SentAt:   time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, m.AddReadByForChat(ctx, chatID, members[1]))
	require.NoError(t, m.AddReadByForChat(ctx, chatID, members[1]))

	msg, err := m.MessageByID(ctx, msgID)
	require.NoError(t, err)
	assert.ElementsMatch(t, members, msg.ReadBy)
}

func TestDeletedByFiltersHistoryPerViewer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	msgID, err := m.CreateMessage(ctx, &models.Message{
		ChatID:   chatID,
		SenderID: members[0],
		Content:  "hidden from bob",
		SentAt:   time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, m.AddDeletedBy(ctx, msgID, members[1]))

	bobView, err := m.MessagesByChat(ctx, chatID, members[1])
	require.NoError(t, err)
	assert.Empty(t, bobView)

	aliceView, err := m.MessagesByChat(ctx, chatID, members[0])
	require.NoError(t, err)
	assert.Len(t, aliceView, 1)
}

func TestMessagesByChatSortedBySendTime(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		_, err := m.CreateMessage(ctx, &models.Message{
			ChatID:   chatID,
			SenderID: members[0],
			Content:  content,
			SentAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	msgs, err := m.MessagesByChat(ctx, chatID, members[1])
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestCreateMessageAdvancesLatestPointer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	first, err := m.CreateMessage(ctx, &models.Message{ChatID: chatID, SenderID: members[0], Content: "a", SentAt: time.Now()})
	require.NoError(t, err)
	second, err := m.CreateMessage(ctx, &models.Message{ChatID: chatID, SenderID: members[0], Content: "b", SentAt: time.Now()})
	require.NoError(t, err)

	chat, err := m.ChatByID(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, chat.LatestMessageID)
	assert.Equal(t, second, *chat.LatestMessageID)
	assert.NotEqual(t, first, second)
}

func TestDeleteMessageGone(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	msgID, err := m.CreateMessage(ctx, &models.Message{ChatID: chatID, SenderID: members[0], Content: "x", SentAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, m.DeleteMessage(ctx, msgID))
	assert.ErrorIs(t, m.DeleteMessage(ctx, msgID), models.ErrMessageNotFound)
	_, err = m.MessageByID(ctx, msgID)
	assert.ErrorIs(t, err, models.ErrMessageNotFound)
}

func TestStoreReturnsDefensiveCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	chatID, members := seedChat(t, m)

	msgID, err := m.CreateMessage(ctx, &models.Message{
		ChatID:   chatID,
		SenderID: members[0],
		ReadBy:   []int{members[0]},
		SentAt:   time.Now(),
	})
	require.NoError(t, err)

	msg, err := m.MessageByID(ctx, msgID)
	require.NoError(t, err)
	msg.ReadBy[0] = 999 // caller mutates its copy

	fresh, err := m.MessageByID(ctx, msgID)
	require.NoError(t, err)
	assert.Equal(t, []int{members[0]}, fresh.ReadBy)
}
