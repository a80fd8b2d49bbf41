// Package observability exposes lightweight in-process counters for the
// chat runtime. Logging only, no external metrics surface.
package observability

import "sync/atomic"

// Metrics aggregates room-wide counters. All methods are safe for
// concurrent use.
type Metrics struct {
	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	messagesPosted    atomic.Uint64
	messagesDeleted   atomic.Uint64
	eventsDelivered   atomic.Uint64
	eventsDropped     atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrConnectionsOpened() { m.connectionsOpened.Add(1) }
func (m *Metrics) IncrConnectionsClosed() { m.connectionsClosed.Add(1) }
func (m *Metrics) IncrMessagesPosted()    { m.messagesPosted.Add(1) }
func (m *Metrics) IncrMessagesDeleted()   { m.messagesDeleted.Add(1) }
func (m *Metrics) IncrEventsDelivered()   { m.eventsDelivered.Add(1) }
func (m *Metrics) IncrEventsDropped()     { m.eventsDropped.Add(1) }

// Snapshot returns the current counter values for logging and the
// debug inspector.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections_opened": m.connectionsOpened.Load(),
		"connections_closed": m.connectionsClosed.Load(),
		"messages_posted":    m.messagesPosted.Load(),
		"messages_deleted":   m.messagesDeleted.Load(),
		"events_delivered":   m.eventsDelivered.Load(),
		"events_dropped":     m.eventsDropped.Load(),
	}
}
