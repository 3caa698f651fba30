package candidates

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	idPrefix          = "301"
	idAttempts        = 50
	placeholderDomain = "screening.local"
)

// Service resolves candidate identity for sessions.
type Service struct {
	repo  Repository
	clock func() time.Time
	rand  func() int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now, rand: func() int { return rand.IntN(10_000_000) }}
}

func (s *Service) Repo() Repository { return s.repo }

// Ensure upserts the candidate described by contact. When the resume has no
// email a placeholder keyed by the session id is used so the record is kept.
func (s *Service) Ensure(ctx context.Context, contact Contact, sessionID string) (Candidate, error) {
	email := NormalizeEmail(contact.Email)
	if email == "" {
		base := strings.TrimPrefix(NormalizePhone(contact.Phone), "+")
		if base == "" {
			base = sessionID
		}
		if len(base) > 20 {
			base = base[:20]
		}
		if base == "" {
			return Candidate{}, ErrInvalidEmail
		}
		email = fmt.Sprintf("candidate-%s@%s", base, placeholderDomain)
	}
	name := strings.TrimSpace(contact.FullName)
	if name == "" {
		name = "Unknown Candidate"
	}
	id, err := s.newID(ctx)
	if err != nil {
		return Candidate{}, err
	}
	return s.repo.Upsert(ctx, Candidate{
		ID:       id,
		FullName: name,
		Email:    email,
		Phone:    NormalizePhone(contact.Phone),
		LinkedIn: strings.TrimSpace(contact.LinkedIn),
		Status:   StatusInitialized,
	})
}

// newID draws "301" plus seven digits, retrying on collision.
func (s *Service) newID(ctx context.Context) (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := fmt.Sprintf("%s%07d", idPrefix, s.rand())
		exists, err := s.repo.IDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return fmt.Sprintf("%s%07d", idPrefix, s.clock().Unix()%10_000_000), nil
}
