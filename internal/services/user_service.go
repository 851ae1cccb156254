package services

import (
	"context"
	"log"
	"time"

	"Connect/server/internal/models"
	"Connect/server/internal/storage"
	"Connect/server/internal/utils"

	"github.com/jonboulle/clockwork"
)

type UserService struct {
	store storage.Store
	clock clockwork.Clock
}

func NewUserService(store storage.Store, clock clockwork.Clock) *UserService {
	return &UserService{store: store, clock: clock}
}

func (us *UserService) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	return us.store.UserExists(ctx, username, email)
}

func (us *UserService) CreateUser(ctx context.Context, user *models.User) (int, error) {
	hashedPassword, err := utils.HashPassword(user.PasswordHash)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return 0, err
	}
	user.PasswordHash = hashedPassword

	userID, err := us.store.CreateUser(ctx, user)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return 0, err
	}
	return userID, nil
}

func (us *UserService) GetUserById(ctx context.Context, userID int) (*models.User, error) {
	return us.store.UserByID(ctx, userID)
}

func (us *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return us.store.UserByEmail(ctx, email)
}

func (us *UserService) SearchUsers(ctx context.Context, term string, excludeID int) ([]models.User, error) {
	return us.store.SearchUsers(ctx, term, excludeID)
}

func (us *UserService) IncrementFailedLoginAttempts(ctx context.Context, userID int) (*models.User, error) {
	user, err := us.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FailedAttempts++
	if err := us.store.UpdateLoginState(ctx, userID, user.FailedAttempts, user.LockedUntil); err != nil {
		return nil, err
	}
	return user, nil
}

func (us *UserService) LockAccount(ctx context.Context, userID int, duration time.Duration) error {
	lockedUntil := us.clock.Now().Add(duration)
	log.Printf("Locking account %d until %v", userID, lockedUntil)
	return us.store.UpdateLoginState(ctx, userID, 0, &lockedUntil)
}

func (us *UserService) ResetFailedLoginAttempts(ctx context.Context, userID int) error {
	return us.store.UpdateLoginState(ctx, userID, 0, nil)
}

func (us *UserService) IsLocked(user *models.User) bool {
	return user.LockedUntil != nil && us.clock.Now().Before(*user.LockedUntil)
}

// Block adds targetID to the user's block list. The effect is enforced at
// send time only: existing chats and history stay untouched.
func (us *UserService) Block(ctx context.Context, userID, targetID int) error {
	if userID == targetID {
		return models.ErrValidation
	}
	if _, err := us.store.UserByID(ctx, targetID); err != nil {
		return err
	}

	err := us.store.AddBlockedUser(ctx, userID, targetID)
	if err == nil {
		log.Printf("User %d blocked user %d", userID, targetID)
	}
	return err
}

func (us *UserService) Unblock(ctx context.Context, userID, targetID int) error {
	if userID == targetID {
		return models.ErrValidation
	}
	return us.store.RemoveBlockedUser(ctx, userID, targetID)
}
