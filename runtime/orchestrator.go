// Package runtime orchestrates connections, presence and event fan-out.
// It contains no transport code; gateways talk to it through the
// service layer.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"
	"chat-room/moderation"
	"chat-room/observability"
	"chat-room/repositories"
	"chat-room/runtime/workers"

	"github.com/abadojack/whatlanggo"
)

//go:embed censored/*
var censoredFolder embed.FS

const maxHistoryLimit = 200

// Options groups the tunables of the room runtime.
type Options struct {
	BufferSize        int
	SinkTimeout       time.Duration
	HistoryLimit      int
	MaxMessageLength  int
	CensorReplacement rune
	// TypingExpiry bounds how long a typing indicator may stay set
	// without a refresh. Zero disables the sweeper.
	TypingExpiry      time.Duration
	TelemetryInterval time.Duration
}

// Orchestrator wires the message store, the connection registry, the
// presence registry and the fan-out pipeline together. All room
// operations enter here.
type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	presence   *Presence
	messages   repositories.IMessageRepository
	moderator  moderation.Moderator
	metrics    *observability.Metrics
	events     chan event.DomainEvent
	opts       Options
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, presence *Presence,
	messages repositories.IMessageRepository,
	metrics *observability.Metrics, opts Options) (*Orchestrator, error) {

	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll("censored")
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))

	moderator, err := moderation.NewModerator(data.Words, opts.CensorReplacement, log)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		presence:   presence,
		messages:   messages,
		moderator:  moderator,
		metrics:    metrics,
		events:     make(chan event.DomainEvent, opts.BufferSize),
		opts:       opts,
	}, nil
}

// Start registers the fan-out, typing sweeper and telemetry workers and
// runs them under supervision until ctx is canceled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(workers.NewEventFanout(o.log, o.registry, o.events, o.opts.SinkTimeout, o.metrics))

	if o.opts.TypingExpiry > 0 {
		o.supervisor.Add(workers.NewTypingSweeper(o.log, o.opts.TypingExpiry, o.clearStaleTyping, o.emit))
	}
	if o.opts.TelemetryInterval > 0 {
		o.supervisor.Add(workers.NewTelemetry(o.log, o.metrics, o.opts.TelemetryInterval))
	}

	o.log.Info("Starting room runtime and supervised workers")
	go o.supervisor.Run(ctx)
}

// Stop shuts the workers down and clears presence and connection state.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting room runtime shutdown")
	o.supervisor.Stop()
	o.registry.Reset()
	o.presence.Reset()
}

// Attach accepts a transport. A nil identity keeps the connection
// attached but unauthenticated, so the client can retry with a valid
// token; everything requiring identity fails closed meanwhile.
func (o *Orchestrator) Attach(sink contract.EventSink, identity *domain.Identity) string {
	o.metrics.IncrConnectionsOpened()
	return o.registry.Attach(sink, identity)
}

// Join makes a connection eligible for room events. The joining
// connection alone receives the recent history and a presence snapshot;
// other users learn about it through user-joined. Joining twice is
// idempotent and never double-counts presence.
func (o *Orchestrator) Join(ctx context.Context, connID string) error {
	recent, err := o.messages.ListRecent(domain.HistoryQuery{Limit: o.opts.HistoryLimit})
	if err != nil {
		return fmt.Errorf("loading recent messages: %w", err)
	}

	identity, alreadyJoined, err := o.registry.Join(connID)
	if err != nil {
		return err
	}
	if alreadyJoined {
		o.log.Debug("Join repeated on same connection", "conn_id", connID)
		return nil
	}

	becameOnline := o.presence.Join(identity.UserID, identity.DisplayName)
	snapshot := o.presence.Snapshot()

	if sink, ok := o.registry.SinkOf(connID); ok {
		o.deliver(ctx, sink, event.RecentMessages{Messages: recent})
		o.deliver(ctx, sink, event.OnlineUsersUpdated{Users: snapshot})
	}

	if becameOnline {
		o.emit(event.UserJoined{UserID: identity.UserID, DisplayName: identity.DisplayName})
		o.emit(event.OnlineUsersUpdated{Users: snapshot, ChangedUserID: identity.UserID})
	}
	return nil
}

// Leave takes the connection out of the room but keeps the transport
// attached, so the client may join again later.
func (o *Orchestrator) Leave(connID string) error {
	return o.release(connID, false)
}

// Detach discards the connection entirely. It is the implicit leave on
// transport closure and must be presence-equivalent to an explicit
// leave; callers guard against double invocation.
func (o *Orchestrator) Detach(connID string) {
	o.metrics.IncrConnectionsClosed()
	if err := o.release(connID, true); err != nil {
		// Transports race with cleanup; not fatal.
		o.log.Debug("Detach on unknown connection", "conn_id", connID)
	}
}

func (o *Orchestrator) release(connID string, remove bool) error {
	info, err := o.registry.Release(connID, remove)
	if err != nil {
		return err
	}
	if !info.WasJoined || info.Identity == nil {
		return nil
	}

	if info.WasTyping {
		o.emit(event.UserStopTyping{UserID: info.Identity.UserID, ConnectionID: connID})
	}

	if o.presence.Leave(info.Identity.UserID) {
		o.emit(event.UserLeft{UserID: info.Identity.UserID, DisplayName: info.Identity.DisplayName})
		o.emit(event.OnlineUsersUpdated{
			Users:         o.presence.Snapshot(),
			ChangedUserID: info.Identity.UserID,
		})
	}
	return nil
}

// Send posts a message on behalf of a joined connection.
func (o *Orchestrator) Send(ctx context.Context, connID, body string, kind domain.MessageKind) (domain.ChatMessage, error) {
	identity, err := o.registry.Identity(connID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return o.PostMessage(ctx, identity, body, kind)
}

// PostMessage validates, censors and persists a message, then fans it
// out to the whole room. Used by both the websocket and REST paths so
// their state can never diverge.
func (o *Orchestrator) PostMessage(_ context.Context, identity domain.Identity, body string, kind domain.MessageKind) (domain.ChatMessage, error) {
	if kind == "" {
		kind = domain.KindUser
	}
	if !kind.Valid() || kind == domain.KindSystem {
		return domain.ChatMessage{}, errors.ErrInvalidMessage
	}
	if kind == domain.KindNotice && !identity.CanModerate() {
		return domain.ChatMessage{}, errors.ErrForbidden
	}
	if err := domain.ValidateBody(body, o.opts.MaxMessageLength); err != nil {
		return domain.ChatMessage{}, err
	}

	censored, foundWords := o.moderator.Censor(body)
	if len(foundWords) > 0 {
		o.log.Info("Message censored", "user_id", identity.UserID, "words", len(foundWords))
	}

	info := whatlanggo.Detect(censored)
	senderID := identity.UserID
	stored, err := o.messages.Append(domain.ChatMessage{
		SenderID:   &senderID,
		SenderName: identity.DisplayName,
		SenderRole: identity.Role,
		Body:       censored,
		Kind:       kind,
		Lang:       info.Lang.Iso6391(),
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	o.metrics.IncrMessagesPosted()
	o.emit(event.MessagePosted{Message: stored})
	return stored, nil
}

// Delete soft-deletes a message and broadcasts the tombstone to
// everyone, the requester's own connections included.
func (o *Orchestrator) Delete(_ context.Context, identity domain.Identity, cmd domain.DeleteMessageCommand) error {
	cmd.RequestedBy = identity
	if err := o.messages.SoftDelete(cmd); err != nil {
		return err
	}
	o.metrics.IncrMessagesDeleted()
	o.emit(event.MessageDeleted{MessageID: cmd.MessageID})
	return nil
}

// SetTyping toggles the typing indicator. Setting the same value twice
// produces no broadcast, bounding event volume.
func (o *Orchestrator) SetTyping(connID string, isTyping bool) error {
	identity, changed, err := o.registry.SetTyping(connID, isTyping, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if isTyping {
		o.emit(event.UserTyping{UserID: identity.UserID, ConnectionID: connID})
	} else {
		o.emit(event.UserStopTyping{UserID: identity.UserID, ConnectionID: connID})
	}
	return nil
}

// History pages backward through non-deleted messages, newest first.
func (o *Orchestrator) History(query domain.HistoryQuery) ([]domain.ChatMessage, error) {
	if query.Limit <= 0 {
		query.Limit = o.opts.HistoryLimit
	}
	if query.Limit > maxHistoryLimit {
		query.Limit = maxHistoryLimit
	}
	return o.messages.ListRecent(query)
}

// ClearAll empties the room log and announces it to every connection.
func (o *Orchestrator) ClearAll(identity domain.Identity) (int, error) {
	count, err := o.messages.ClearAll(identity)
	if err != nil {
		return 0, err
	}
	o.emit(event.ChatCleared{})
	return count, nil
}

// PresenceSnapshot returns the current online-users list.
func (o *Orchestrator) PresenceSnapshot() []domain.PresenceEntry {
	return o.presence.Snapshot()
}

// emit queues an event for fan-out. The emitter never blocks: a full
// pipeline drops the event and the counters record it.
func (o *Orchestrator) emit(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	default:
		o.metrics.IncrEventsDropped()
		o.log.Warn("Event channel full, dropping event", "event", evt.Name())
	}
}

// deliver sends an event straight to one sink, outside the router.
func (o *Orchestrator) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	deliveryCtx, cancel := context.WithTimeout(ctx, o.opts.SinkTimeout)
	defer cancel()
	if err := sink.Consume(deliveryCtx, evt); err != nil {
		o.metrics.IncrEventsDropped()
		o.log.Debug("Direct delivery failed", "event", evt.Name(), "error", err)
	}
}

func (o *Orchestrator) clearStaleTyping(cutoff time.Time) []event.UserStopTyping {
	states := o.registry.ClearStaleTyping(cutoff)
	stopped := make([]event.UserStopTyping, 0, len(states))
	for _, s := range states {
		stopped = append(stopped, event.UserStopTyping{UserID: s.UserID, ConnectionID: s.ConnectionID})
	}
	return stopped
}
