package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"screening-agent/internal/candidates"
	"screening-agent/internal/interview"
)

// SaveSession stores the whole session as JSON next to a few indexed columns.
// completed never reverts to false.
func (p *Postgres) SaveSession(ctx context.Context, s interview.Session) error {
	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: encode session: %w", err)
	}
	const q = `
INSERT INTO screening_sessions (
  session_id, candidate_id, phone_key, job_id, phase, completed, last_call_status, state, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (session_id)
DO UPDATE SET candidate_id = EXCLUDED.candidate_id,
              phone_key = EXCLUDED.phone_key,
              job_id = EXCLUDED.job_id,
              phase = CASE WHEN screening_sessions.completed AND NOT EXCLUDED.completed
                           THEN screening_sessions.phase ELSE EXCLUDED.phase END,
              completed = screening_sessions.completed OR EXCLUDED.completed,
              last_call_status = EXCLUDED.last_call_status,
              state = EXCLUDED.state,
              updated_at = EXCLUDED.updated_at
`
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = p.now()
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = updated
	}
	_, err = p.db.ExecContext(ctx, q,
		s.ID,
		s.CandidateID,
		candidates.PhoneKey(s.CandidatePhone),
		s.JobID,
		string(s.Phase),
		s.Completed,
		string(s.LastCallStatus),
		state,
		created,
		updated,
	)
	return err
}

func (p *Postgres) LoadSession(ctx context.Context, id string) (interview.Session, error) {
	const q = `SELECT state, completed FROM screening_sessions WHERE session_id = $1`
	return p.scanSession(p.db.QueryRowContext(ctx, q, id))
}

func (p *Postgres) LatestForPhone(ctx context.Context, phone string) (interview.Session, error) {
	key := candidates.PhoneKey(phone)
	if key == "" {
		return interview.Session{}, interview.ErrNotFound
	}
	const q = `
SELECT state, completed
FROM screening_sessions
WHERE phone_key = $1
ORDER BY updated_at DESC
LIMIT 1
`
	return p.scanSession(p.db.QueryRowContext(ctx, q, key))
}

func (p *Postgres) scanSession(row *sql.Row) (interview.Session, error) {
	var (
		raw       []byte
		completed bool
	)
	if err := row.Scan(&raw, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return interview.Session{}, interview.ErrNotFound
		}
		return interview.Session{}, err
	}
	var s interview.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return interview.Session{}, fmt.Errorf("storage: decode session: %w", err)
	}
	if completed {
		s.Completed = true
	}
	return s, nil
}
