// Package domain contains core concepts of the chat room.
// This file defines ChatMessage and related rules.
// Messages are immutable once persisted; only the deleted flag may change.
package domain

import (
	"strings"
	"time"

	"chat-room/errors"

	"github.com/google/uuid"
)

// MessageKind distinguishes ordinary user messages from server-generated ones.
type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
	// KindNotice is a privileged broadcast announcement, admin only.
	KindNotice MessageKind = "notice"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindUser, KindSystem, KindNotice:
		return true
	}
	return false
}

// ChatMessage is a single entry of the room log.
// Sender fields are a snapshot taken at send time and survive later
// account changes. A nil SenderID marks a server-generated message.
type ChatMessage struct {
	ID          uuid.UUID   `json:"id"`
	SenderID    *string     `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	SenderRole  Role        `json:"sender_role"`
	Body        string      `json:"body"`
	Kind        MessageKind `json:"kind"`
	Lang        string      `json:"lang,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Deleted     bool        `json:"-"`
}

// OwnedBy reports whether the message was sent by the given user.
func (m ChatMessage) OwnedBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// ValidateBody rejects empty or whitespace-only bodies and bodies
// longer than maxLen runes. A maxLen of zero disables the length check.
func ValidateBody(body string, maxLen int) error {
	if strings.TrimSpace(body) == "" {
		return errors.ErrInvalidMessage
	}
	if maxLen > 0 && len([]rune(body)) > maxLen {
		return errors.ErrMessageTooLong
	}
	return nil
}
