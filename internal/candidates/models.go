package candidates

import (
	"context"
	"errors"
	"time"
)

// Status is the candidate-level screening lifecycle.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusScreeningInProgress Status = "screening_in_progress"
	StatusScreeningCompleted  Status = "screening_completed"
	StatusOutboundNoAnswer    Status = "outbound_no_answer"
	StatusCallbackReceived    Status = "callback_received"
)

// Candidate is keyed by normalized email. ID is the human-readable
// "301xxxxxxx" identifier shown to recruiters.
type Candidate struct {
	ID            string    `json:"candidate_id" db:"candidate_id"`
	FullName      string    `json:"full_name" db:"full_name"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone_number" db:"phone_number"`
	LinkedIn      string    `json:"linkedin_profile,omitempty" db:"linkedin_profile"`
	Status        Status    `json:"status" db:"status"`
	LastSessionID string    `json:"last_session_id,omitempty" db:"last_session_id"`
	LastSummary   string    `json:"last_summary,omitempty" db:"last_summary"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

var (
	ErrNotFound     = errors.New("candidates: not found")
	ErrInvalidEmail = errors.New("candidates: email required")
)

// Repository persists candidates. Upsert is keyed by email and keeps an
// existing candidate id.
type Repository interface {
	Upsert(ctx context.Context, c Candidate) (Candidate, error)
	Get(ctx context.Context, id string) (Candidate, error)
	FindByPhone(ctx context.Context, phone string) (Candidate, error)
	IDExists(ctx context.Context, id string) (bool, error)
	SetLastSession(ctx context.Context, id, sessionID string) error
	UpdateStatus(ctx context.Context, id string, st Status, summary string) error
}
