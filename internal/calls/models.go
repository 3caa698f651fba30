package calls

import (
	"context"
	"time"

	"screening-agent/internal/interview"
)

// Call is the persisted record of one telephony leg. Rows are upserted by
// CallSID so replayed status webhooks are harmless.
type Call struct {
	CallSID     string `json:"call_sid" db:"call_sid"`
	SessionID   string `json:"session_id" db:"session_id"`
	CandidateID string `json:"candidate_id,omitempty" db:"candidate_id"`

	Direction interview.Direction `json:"direction" db:"direction"`
	From      string              `json:"from" db:"from_number"`
	To        string              `json:"to" db:"to_number"`

	Status       interview.CallStatus `json:"status" db:"status"`
	ProviderUsed string               `json:"provider_used,omitempty" db:"provider_used"`

	// DurationSeconds comes from the provider's final status callback.
	DurationSeconds int `json:"duration" db:"duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FromAttempt builds the persisted record for an attempt of s.
func FromAttempt(s interview.Session, a interview.CallAttempt) Call {
	return Call{
		CallSID:      a.CallID,
		SessionID:    s.ID,
		CandidateID:  s.CandidateID,
		Direction:    a.Direction,
		From:         a.From,
		To:           a.To,
		Status:       a.Status,
		ProviderUsed: a.ProviderUsed,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type Repository interface {
	UpsertCall(ctx context.Context, c Call) error
}

// Finalizer applies provider-reported statuses to sessions. The reconciler
// implements it.
type Finalizer interface {
	ApplyStatus(ctx context.Context, sessionID, callID string, status interview.CallStatus) error
	Complete(ctx context.Context, sessionID string) error
}
