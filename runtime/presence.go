package runtime

import (
	"sort"
	"sync"

	"chat-room/domain"
)

// Presence tracks how many joined connections each user currently has.
// A user is present iff their count is above zero; two browser tabs are
// one presence entry. All transitions go through one mutex so the count
// can never race below zero.
type Presence struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry
}

type presenceEntry struct {
	displayName string
	connections int
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[string]*presenceEntry)}
}

// Join increments the user's connection count and reports whether the
// user just became online (first connection).
func (p *Presence) Join(userID, displayName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		p.entries[userID] = &presenceEntry{displayName: displayName, connections: 1}
		return true
	}
	entry.connections++
	return false
}

// Leave decrements the count, clamped at zero, and reports whether the
// user just went offline (last connection gone). Leaving while absent
// is a no-op.
func (p *Presence) Leave(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return false
	}
	if entry.connections <= 1 {
		delete(p.entries, userID)
		return true
	}
	entry.connections--
	return false
}

// Online reports whether the user currently has at least one joined
// connection.
func (p *Presence) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[userID]
	return ok && entry.connections > 0
}

// Snapshot returns the current presence list sorted by display name.
func (p *Presence) Snapshot() []domain.PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]domain.PresenceEntry, 0, len(p.entries))
	for userID, entry := range p.entries {
		users = append(users, domain.PresenceEntry{
			UserID:      userID,
			DisplayName: entry.displayName,
			Connections: entry.connections,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName == users[j].DisplayName {
			return users[i].UserID < users[j].UserID
		}
		return users[i].DisplayName < users[j].DisplayName
	})
	return users
}

// Reset clears all entries. Called at service shutdown.
func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*presenceEntry)
}
