package runtime

import (
	"sync"
	"time"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"

	"github.com/google/uuid"
)

// session is the server-side state of one live connection. The registry
// exclusively owns sessions; other components only ever hold the id.
type session struct {
	id         string
	identity   *domain.Identity // nil while unauthenticated
	joined     bool
	typing     bool
	lastTyping time.Time
	sink       contract.EventSink
}

// Registry owns the set of live connections. Every state transition
// (attach, join, release, typing) is serialized under one mutex so
// presence bookkeeping built on top of it cannot race.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Attach creates a connection in the unjoined state and returns its id.
// A nil identity means the transport is accepted but unauthenticated;
// operations requiring identity will fail closed until re-attach.
func (r *Registry) Attach(sink contract.EventSink, identity *domain.Identity) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.sessions[id] = &session{id: id, identity: identity, sink: sink}
	return id
}

// Join marks the connection as joined. The second return is true when
// the connection had already joined (idempotent, no presence change).
func (r *Registry) Join(connID string) (domain.Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, false, errors.ErrConnectionNotFound
	}
	if s.identity == nil {
		return domain.Identity{}, false, errors.ErrIdentityInvalid
	}
	if s.joined {
		return *s.identity, true, nil
	}
	s.joined = true
	return *s.identity, false, nil
}

// ReleaseInfo describes the state a connection had when it was released.
type ReleaseInfo struct {
	Identity  *domain.Identity
	WasJoined bool
	WasTyping bool
}

// Release unjoins a connection; with remove it also discards the
// session entirely (transport closed). Presence correctness is the
// caller's job, driven by WasJoined.
func (r *Registry) Release(connID string, remove bool) (ReleaseInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return ReleaseInfo{}, errors.ErrConnectionNotFound
	}
	info := ReleaseInfo{Identity: s.identity, WasJoined: s.joined, WasTyping: s.typing}
	s.joined = false
	s.typing = false
	if remove {
		delete(r.sessions, connID)
	}
	return info, nil
}

// Identity returns the resolved identity of a joined connection.
func (r *Registry) Identity(connID string) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, errors.ErrConnectionNotFound
	}
	if s.identity == nil {
		return domain.Identity{}, errors.ErrIdentityInvalid
	}
	if !s.joined {
		return domain.Identity{}, errors.ErrNotJoined
	}
	return *s.identity, nil
}

// SetTyping toggles the typing flag. Returns false when the new value
// equals the current one, so duplicate toggles produce no broadcast.
func (r *Registry) SetTyping(connID string, isTyping bool, now time.Time) (domain.Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, false, errors.ErrConnectionNotFound
	}
	if s.identity == nil {
		return domain.Identity{}, false, errors.ErrIdentityInvalid
	}
	if !s.joined {
		return domain.Identity{}, false, errors.ErrNotJoined
	}
	if isTyping {
		s.lastTyping = now
	}
	if s.typing == isTyping {
		return *s.identity, false, nil
	}
	s.typing = isTyping
	return *s.identity, true, nil
}

// TypingState identifies a connection whose typing indicator was
// cleared by the sweeper.
type TypingState struct {
	ConnectionID string
	UserID       string
}

// ClearStaleTyping clears typing flags last refreshed before the cutoff
// and returns the affected connections.
func (r *Registry) ClearStaleTyping(cutoff time.Time) []TypingState {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []TypingState
	for _, s := range r.sessions {
		if s.typing && s.lastTyping.Before(cutoff) {
			s.typing = false
			stale = append(stale, TypingState{ConnectionID: s.id, UserID: s.identity.UserID})
		}
	}
	return stale
}

// SinkOf returns the sink of a live connection for direct, addressed
// delivery (join snapshot, error events).
func (r *Registry) SinkOf(connID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// SinksFor selects the sinks of all joined connections matching the
// audience rule of an event kind.
func (r *Registry) SinksFor(audience event.Audience) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, s := range r.sessions {
		if !s.joined {
			continue
		}
		switch audience.Scope {
		case event.ExceptUser:
			if s.identity != nil && s.identity.UserID == audience.UserID {
				continue
			}
		case event.ExceptConnection:
			if s.id == audience.ConnectionID {
				continue
			}
		}
		sinks = append(sinks, s.sink)
	}
	return sinks
}

// Count returns the number of attached connections, joined or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reset discards all sessions. Called at service shutdown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*session)
}
