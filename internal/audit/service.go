package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"screening-agent/internal/faults"
	"screening-agent/pkg/logger"
)

// Repository is the persistence contract for activity events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByCandidate(ctx context.Context, candidateID string, limit int) ([]Event, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CandidateID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	e.Details = logger.Truncate(e.Details, maxDetails)
	return s.repo.Append(ctx, e)
}

// Record appends one event and logs a failure instead of returning it.
// Sessions without a resolved candidate are skipped.
func (s *Service) Record(ctx context.Context, candidateID, sessionID string, t EventType, callID, details string) {
	if s == nil || candidateID == "" {
		return
	}
	err := s.Append(ctx, Event{
		CandidateID: candidateID,
		SessionID:   sessionID,
		Type:        t,
		CallID:      callID,
		Details:     details,
	})
	if err != nil {
		err = faults.DataIntegrity("audit append", err)
		logger.From(ctx).Warn("activity not recorded", slog.String("type", string(t)), "kind", faults.Kind(err), "err", err)
	}
}

func (s *Service) List(ctx context.Context, candidateID string, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByCandidate(ctx, candidateID, limit)
}
