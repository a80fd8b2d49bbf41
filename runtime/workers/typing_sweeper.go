package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-room/contract"
	"chat-room/domain/event"
)

var _ contract.Worker = (*TypingSweeper)(nil)

// TypingSweeper clears typing indicators that were never followed by a
// typing-stop, so a client that crashed mid-keystroke does not stay
// "is typing" forever. This is a server-side extension, not part of the
// wire contract.
type TypingSweeper struct {
	log    *slog.Logger
	expiry time.Duration
	clear  func(cutoff time.Time) []event.UserStopTyping
	emit   func(e event.DomainEvent)
}

// NewTypingSweeper builds a sweeper around the registry clear function
// and the orchestrator emit function.
func NewTypingSweeper(log *slog.Logger, expiry time.Duration,
	clear func(cutoff time.Time) []event.UserStopTyping,
	emit func(e event.DomainEvent)) *TypingSweeper {
	return &TypingSweeper{log: log, expiry: expiry, clear: clear, emit: emit}
}

func (w *TypingSweeper) Run(ctx context.Context) error {
	interval := w.expiry / 2
	if interval <= 0 {
		interval = w.expiry
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping typing sweeper")
			return nil
		case now := <-ticker.C:
			for _, stopped := range w.clear(now.Add(-w.expiry)) {
				w.log.Debug("Typing indicator expired", "user_id", stopped.UserID)
				w.emit(stopped)
			}
		}
	}
}
