// Package event defines the domain events fanned out to connected clients,
// together with the audience rule attached to each event kind.
package event

import (
	"chat-room/domain"

	"github.com/google/uuid"
)

// Scope selects which joined connections receive an event.
type Scope int

const (
	// Everyone delivers to all joined connections, sender included,
	// so a sender's other tabs stay in sync.
	Everyone Scope = iota
	// ExceptUser delivers to all joined connections except those of one user.
	ExceptUser
	// ExceptConnection delivers to all joined connections except one.
	ExceptConnection
)

// Audience is the delivery rule computed from an event kind.
type Audience struct {
	Scope        Scope
	UserID       string
	ConnectionID string
}

// DomainEvent is anything the router can deliver to clients.
// Name is the wire event name, Audience the delivery rule.
type DomainEvent interface {
	Name() string
	Audience() Audience
}

type MessagePosted struct {
	Message domain.ChatMessage
}

func (MessagePosted) Name() string       { return "new-message" }
func (MessagePosted) Audience() Audience { return Audience{Scope: Everyone} }

type MessageDeleted struct {
	MessageID uuid.UUID
}

func (MessageDeleted) Name() string       { return "message-deleted" }
func (MessageDeleted) Audience() Audience { return Audience{Scope: Everyone} }

type ChatCleared struct{}

func (ChatCleared) Name() string       { return "chat-cleared" }
func (ChatCleared) Audience() Audience { return Audience{Scope: Everyone} }

// UserJoined fires only when the first connection of a user joins.
// The joining connection receives an initial snapshot instead.
type UserJoined struct {
	UserID      string
	DisplayName string
}

func (e UserJoined) Name() string { return "user-joined" }
func (e UserJoined) Audience() Audience {
	return Audience{Scope: ExceptUser, UserID: e.UserID}
}

// UserLeft fires only when the last connection of a user detaches.
type UserLeft struct {
	UserID      string
	DisplayName string
}

func (e UserLeft) Name() string { return "user-left" }
func (e UserLeft) Audience() Audience {
	return Audience{Scope: ExceptUser, UserID: e.UserID}
}

type OnlineUsersUpdated struct {
	Users []domain.PresenceEntry
	// ChangedUserID is the user whose presence transition caused the update.
	ChangedUserID string
}

func (e OnlineUsersUpdated) Name() string { return "online-users-updated" }
func (e OnlineUsersUpdated) Audience() Audience {
	return Audience{Scope: ExceptUser, UserID: e.ChangedUserID}
}

type UserTyping struct {
	UserID       string
	ConnectionID string
}

func (e UserTyping) Name() string { return "user-typing" }
func (e UserTyping) Audience() Audience {
	return Audience{Scope: ExceptConnection, ConnectionID: e.ConnectionID}
}

type UserStopTyping struct {
	UserID       string
	ConnectionID string
}

func (e UserStopTyping) Name() string { return "user-stop-typing" }
func (e UserStopTyping) Audience() Audience {
	return Audience{Scope: ExceptConnection, ConnectionID: e.ConnectionID}
}

// RecentMessages is delivered directly to a joining connection,
// never through the router.
type RecentMessages struct {
	Messages []domain.ChatMessage
}

func (RecentMessages) Name() string       { return "recent-messages" }
func (RecentMessages) Audience() Audience { return Audience{Scope: Everyone} }
