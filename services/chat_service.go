package services

import (
	"context"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/runtime"
)

// IChatService is the room API consumed by the gateways. It hides the
// orchestrator so transports never hold runtime internals.
type IChatService interface {
	Attach(sink contract.EventSink, identity *domain.Identity) string
	Join(ctx context.Context, connID string) error
	Leave(connID string) error
	Detach(connID string)
	Send(ctx context.Context, connID, body string, kind domain.MessageKind) (domain.ChatMessage, error)
	PostMessage(ctx context.Context, identity domain.Identity, body string, kind domain.MessageKind) (domain.ChatMessage, error)
	Delete(ctx context.Context, identity domain.Identity, cmd domain.DeleteMessageCommand) error
	SetTyping(connID string, isTyping bool) error
	History(query domain.HistoryQuery) ([]domain.ChatMessage, error)
	ClearAll(identity domain.Identity) (int, error)
	PresenceSnapshot() []domain.PresenceEntry
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) Attach(sink contract.EventSink, identity *domain.Identity) string {
	return s.orchestrator.Attach(sink, identity)
}

func (s *ChatService) Join(ctx context.Context, connID string) error {
	return s.orchestrator.Join(ctx, connID)
}

func (s *ChatService) Leave(connID string) error {
	return s.orchestrator.Leave(connID)
}

func (s *ChatService) Detach(connID string) {
	s.orchestrator.Detach(connID)
}

func (s *ChatService) Send(ctx context.Context, connID, body string, kind domain.MessageKind) (domain.ChatMessage, error) {
	return s.orchestrator.Send(ctx, connID, body, kind)
}

func (s *ChatService) PostMessage(ctx context.Context, identity domain.Identity, body string, kind domain.MessageKind) (domain.ChatMessage, error) {
	return s.orchestrator.PostMessage(ctx, identity, body, kind)
}

func (s *ChatService) Delete(ctx context.Context, identity domain.Identity, cmd domain.DeleteMessageCommand) error {
	return s.orchestrator.Delete(ctx, identity, cmd)
}

func (s *ChatService) SetTyping(connID string, isTyping bool) error {
	return s.orchestrator.SetTyping(connID, isTyping)
}

func (s *ChatService) History(query domain.HistoryQuery) ([]domain.ChatMessage, error) {
	return s.orchestrator.History(query)
}

func (s *ChatService) ClearAll(identity domain.Identity) (int, error) {
	return s.orchestrator.ClearAll(identity)
}

func (s *ChatService) PresenceSnapshot() []domain.PresenceEntry {
	return s.orchestrator.PresenceSnapshot()
}
