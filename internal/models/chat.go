package models

import (
	"time"
)

type Chat struct {
	ID              int       `json:"id" db:"id"`
	IsGroupChat     bool      `json:"is_group_chat" db:"is_group_chat"`
	Name            string    `json:"name,omitempty" db:"name"`
	Members         []int     `json:"members" db:"members"`
	GroupAdmin      *int      `json:"group_admin,omitempty" db:"group_admin"`
	LatestMessageID *int      `json:"latest_message_id,omitempty" db:"latest_message_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	LatestMessage *Message `json:"latest_message,omitempty"`
	Participants  []User   `json:"participants,omitempty"`
}

func (c *Chat) HasMember(userID int) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherMember returns the second participant of a direct chat.
func (c *Chat) OtherMember(userID int) int {
	for _, id := range c.Members {
		if id != userID {
			return id
		}
	}
	return 0
}
