package domain

import (
	"github.com/google/uuid"
)

type DeleteMessageCommand struct {
	MessageID   uuid.UUID
	RequestedBy Identity
}

// HistoryQuery pages backward through non-deleted messages.
// A nil Before starts from the newest entry.
type HistoryQuery struct {
	Limit  int
	Before *uuid.UUID
}
