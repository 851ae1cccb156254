package models

import (
	"time"
)

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeAudio    = "audio"
	MessageTypeLocation = "location"
)

func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio, MessageTypeLocation:
		return true
	}
	return false
}

type Message struct {
	ID        int       `json:"id" db:"id"`
	ChatID    int       `json:"chat_id" db:"chat_id"`
	SenderID  int       `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	Type      string    `json:"type" db:"type"`
	ReadBy    []int     `json:"read_by" db:"read_by"`
	DeletedBy []int     `json:"-" db:"deleted_by"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`

	Sender *User `json:"sender,omitempty"`
	Chat   *Chat `json:"chat,omitempty"`
}

func (m *Message) ReadByUser(userID int) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

func (m *Message) DeletedForUser(userID int) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}
