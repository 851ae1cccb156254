package services

import (
	"context"
	"testing"
	"time"

	"Connect/server/internal/models"
	"Connect/server/internal/storage"
	"Connect/server/internal/utils"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserHashesPassword(t *testing.T) {
	store := storage.NewMemory()
	us := NewUserService(store, clockwork.NewFakeClock())
	ctx := context.Background()

	id, err := us.CreateUser(ctx, &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "plaintext-secret",
	})
	require.NoError(t, err)

	stored, err := store.UserByID(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext-secret", stored.PasswordHash)
	assert.NoError(t, utils.CheckPasswordHash("plaintext-secret", stored.PasswordHash))
}

func TestAccountLockExpiresWithClock(t *testing.T) {
	store := storage.NewMemory()
	clock := clockwork.NewFakeClock()
	us := NewUserService(store, clock)
	ctx := context.Background()

	id, err := us.CreateUser(ctx, &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "pw"})
	require.NoError(t, err)

	require.NoError(t, us.LockAccount(ctx, id, 15*time.Minute))

	user, err := us.GetUserById(ctx, id)
	require.NoError(t, err)
	assert.True(t, us.IsLocked(user))

	clock.Advance(16 * time.Minute)
	assert.False(t, us.IsLocked(user))
}

func TestFailedLoginAttemptsAccumulateAndReset(t *testing.T) {
	store := storage.NewMemory()
	us := NewUserService(store, clockwork.NewFakeClock())
	ctx := context.Background()

	id, err := us.CreateUser(ctx, &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "pw"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		user, err := us.IncrementFailedLoginAttempts(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i, user.FailedAttempts)
	}

	require.NoError(t, us.ResetFailedLoginAttempts(ctx, id))
	user, err := us.GetUserById(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, user.FailedAttempts)
}

func TestBlockUnblock(t *testing.T) {
	store := storage.NewMemory()
	us := NewUserService(store, clockwork.NewFakeClock())
	ctx := context.Background()

	alice, err := us.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com", PasswordHash: "pw"})
	require.NoError(t, err)
	bob, err := us.CreateUser(ctx, &models.User{Username: "bob", Email: "b@example.com", PasswordHash: "pw"})
	require.NoError(t, err)

	assert.ErrorIs(t, us.Block(ctx, alice, alice), models.ErrValidation)
	assert.ErrorIs(t, us.Block(ctx, alice, 999), models.ErrUserNotFound)

	require.NoError(t, us.Block(ctx, alice, bob))
	require.NoError(t, us.Block(ctx, alice, bob), "blocking twice is a no-op")

	user, err := us.GetUserById(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []int{bob}, user.BlockedUsers)
	assert.True(t, user.HasBlocked(bob))

	require.NoError(t, us.Unblock(ctx, alice, bob))
	user, err = us.GetUserById(ctx, alice)
	require.NoError(t, err)
	assert.False(t, user.HasBlocked(bob))
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	store := storage.NewMemory()
	us := NewUserService(store, clockwork.NewFakeClock())
	ctx := context.Background()

	alice, err := us.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "pw"})
	require.NoError(t, err)
	_, err = us.CreateUser(ctx, &models.User{Username: "alicia", Email: "alicia@example.com", PasswordHash: "pw"})
	require.NoError(t, err)

	found, err := us.SearchUsers(ctx, "ali", alice)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)
}
