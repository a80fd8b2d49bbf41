package ws

import (
	"encoding/json"
	"time"

	"chat-room/domain"
	"chat-room/domain/event"
)

// frame is the envelope for both directions: the client sends
// {"event": "...", "data": {...}} and receives the same shape back.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type sendMessageData struct {
	Body string `json:"body"`
	Kind string `json:"kind,omitempty"`
}

type deleteMessageData struct {
	ID string `json:"id"`
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messagePayload struct {
	ID         string    `json:"id"`
	SenderID   *string   `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	Lang       string    `json:"lang,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type presencePayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func toMessagePayload(m domain.ChatMessage) messagePayload {
	return messagePayload{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: string(m.SenderRole),
		Body:       m.Body,
		Kind:       string(m.Kind),
		Lang:       m.Lang,
		CreatedAt:  m.CreatedAt,
	}
}

func toPresencePayloads(entries []domain.PresenceEntry) []presencePayload {
	users := make([]presencePayload, 0, len(entries))
	for _, e := range entries {
		users = append(users, presencePayload{UserID: e.UserID, DisplayName: e.DisplayName})
	}
	return users
}

// encodeEvent maps a domain event to its wire frame. Unknown events are
// skipped rather than leaked to clients.
func encodeEvent(evt event.DomainEvent) (outbound, bool) {
	switch e := evt.(type) {
	case event.MessagePosted:
		return outbound{Event: e.Name(), Data: toMessagePayload(e.Message)}, true
	case event.RecentMessages:
		payloads := make([]messagePayload, 0, len(e.Messages))
		for _, m := range e.Messages {
			payloads = append(payloads, toMessagePayload(m))
		}
		return outbound{Event: e.Name(), Data: payloads}, true
	case event.MessageDeleted:
		return outbound{Event: e.Name(), Data: deleteMessageData{ID: e.MessageID.String()}}, true
	case event.ChatCleared:
		return outbound{Event: e.Name()}, true
	case event.UserJoined:
		return outbound{Event: e.Name(), Data: presencePayload{UserID: e.UserID, DisplayName: e.DisplayName}}, true
	case event.UserLeft:
		return outbound{Event: e.Name(), Data: presencePayload{UserID: e.UserID, DisplayName: e.DisplayName}}, true
	case event.OnlineUsersUpdated:
		return outbound{Event: e.Name(), Data: toPresencePayloads(e.Users)}, true
	case event.UserTyping:
		return outbound{Event: e.Name(), Data: presencePayload{UserID: e.UserID}}, true
	case event.UserStopTyping:
		return outbound{Event: e.Name(), Data: presencePayload{UserID: e.UserID}}, true
	default:
		return outbound{}, false
	}
}
