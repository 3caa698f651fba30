package audit

import "time"

// Event is an append-only candidate activity record.
//
// Invariants:
// - Events are never updated or deleted.
// - CandidateID is required; activity is always listed per candidate.
// - Recording is best-effort; callers never block a call flow on it.
type Event struct {
	ID          string    `json:"id" db:"id"`
	CandidateID string    `json:"candidate_id" db:"candidate_id"`
	SessionID   string    `json:"session_id,omitempty" db:"session_id"`
	Type        EventType `json:"type" db:"event_type"`

	CallID      string `json:"call_id,omitempty" db:"call_id"`
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Details is a short human-readable description, at most maxDetails runes.
	Details string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventCandidateUpserted    EventType = "candidate_upserted"
	EventScreeningInitialized EventType = "screening_initialized"
	EventStartCallClicked     EventType = "start_call_clicked"
	EventCallStatusUpdated    EventType = "call_status_updated"
	EventMissedCall           EventType = "missed_call"
	EventCallbackReceived     EventType = "callback_received"
	EventHandoffRequested     EventType = "handoff_requested"
	EventScreeningCompleted   EventType = "screening_completed"
)

const maxDetails = 2000
