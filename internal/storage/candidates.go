package storage

import (
	"context"
	"database/sql"
	"errors"

	"screening-agent/internal/candidates"
)

const candidateColumns = `candidate_id, full_name, email, phone_number, linkedin_profile, status, last_session_id, last_summary, updated_at`

func scanCandidate(row interface{ Scan(...any) error }) (candidates.Candidate, error) {
	var c candidates.Candidate
	if err := row.Scan(
		&c.ID,
		&c.FullName,
		&c.Email,
		&c.Phone,
		&c.LinkedIn,
		&c.Status,
		&c.LastSessionID,
		&c.LastSummary,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return candidates.Candidate{}, candidates.ErrNotFound
		}
		return candidates.Candidate{}, err
	}
	return c, nil
}

// Upsert is keyed by email. An existing row keeps its id and status; empty
// incoming phone or LinkedIn values do not erase stored ones.
func (p *Postgres) Upsert(ctx context.Context, c candidates.Candidate) (candidates.Candidate, error) {
	if c.Email == "" {
		return candidates.Candidate{}, candidates.ErrInvalidEmail
	}
	if c.Status == "" {
		c.Status = candidates.StatusInitialized
	}
	const q = `
INSERT INTO screening_candidates (
  candidate_id, full_name, email, phone_number, phone_key, linkedin_profile, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$8
)
ON CONFLICT (email)
DO UPDATE SET full_name = EXCLUDED.full_name,
              phone_number = COALESCE(NULLIF(EXCLUDED.phone_number, ''), screening_candidates.phone_number),
              phone_key = COALESCE(NULLIF(EXCLUDED.phone_key, ''), screening_candidates.phone_key),
              linkedin_profile = COALESCE(NULLIF(EXCLUDED.linkedin_profile, ''), screening_candidates.linkedin_profile),
              updated_at = EXCLUDED.updated_at
RETURNING ` + candidateColumns
	return scanCandidate(p.db.QueryRowContext(ctx, q,
		c.ID,
		c.FullName,
		c.Email,
		c.Phone,
		candidates.PhoneKey(c.Phone),
		c.LinkedIn,
		string(c.Status),
		p.now(),
	))
}

func (p *Postgres) Get(ctx context.Context, id string) (candidates.Candidate, error) {
	q := `SELECT ` + candidateColumns + ` FROM screening_candidates WHERE candidate_id = $1`
	return scanCandidate(p.db.QueryRowContext(ctx, q, id))
}

func (p *Postgres) FindByPhone(ctx context.Context, phone string) (candidates.Candidate, error) {
	key := candidates.PhoneKey(phone)
	if key == "" {
		return candidates.Candidate{}, candidates.ErrNotFound
	}
	q := `SELECT ` + candidateColumns + ` FROM screening_candidates WHERE phone_key = $1 ORDER BY updated_at DESC LIMIT 1`
	return scanCandidate(p.db.QueryRowContext(ctx, q, key))
}

func (p *Postgres) IDExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM screening_candidates WHERE candidate_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (p *Postgres) SetLastSession(ctx context.Context, id, sessionID string) error {
	const q = `
UPDATE screening_candidates
SET last_session_id = $2, status = $3, updated_at = $4
WHERE candidate_id = $1
`
	return p.execOne(ctx, q, id, sessionID, string(candidates.StatusScreeningInProgress), p.now())
}

func (p *Postgres) UpdateStatus(ctx context.Context, id string, st candidates.Status, summary string) error {
	const q = `
UPDATE screening_candidates
SET status = $2,
    last_summary = CASE WHEN $3 = '' THEN last_summary ELSE $3 END,
    updated_at = $4
WHERE candidate_id = $1
`
	return p.execOne(ctx, q, id, string(st), summary, p.now())
}

func (p *Postgres) execOne(ctx context.Context, q string, args ...any) error {
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return candidates.ErrNotFound
	}
	return nil
}
