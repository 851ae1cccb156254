package models

import (
	"time"
)

type User struct {
	ID             int        `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	Pic            string     `json:"pic,omitempty" db:"pic"`
	BlockedUsers   []int      `json:"blocked_users,omitempty" db:"blocked_users"`
	FailedAttempts int        `json:"-" db:"failed_attempts"`
	LockedUntil    *time.Time `json:"-" db:"locked_until"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

func (u *User) HasBlocked(userID int) bool {
	for _, id := range u.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
