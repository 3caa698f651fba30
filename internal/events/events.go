// Package events publishes call lifecycle notifications for downstream
// consumers. Publishing is best effort.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeSessionCompleted = "session.completed"
	TypeCallMissed       = "call.missed"
	TypeSessionHandoff   = "session.handoff"
)

// Event is the JSON body published for every notification.
type Event struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id"`
	CandidateID string         `json:"candidate_id,omitempty"`
	CallID      string         `json:"call_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Memory keeps published events in order; used by tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// OfType filters Events by type.
func (m *Memory) OfType(t string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
