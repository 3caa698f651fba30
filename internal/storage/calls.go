package storage

import (
	"context"
	"errors"

	"screening-agent/internal/calls"
)

// UpsertCall keeps the first created_at for a call sid and never moves a
// terminal status back to a non-terminal one.
func (p *Postgres) UpsertCall(ctx context.Context, c calls.Call) error {
	if c.CallSID == "" {
		return errors.New("storage: call sid required")
	}
	now := p.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	const q = `
INSERT INTO screening_calls (
  call_sid, session_id, candidate_id, direction, from_number, to_number, status, provider_used, duration_seconds, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (call_sid)
DO UPDATE SET status = CASE WHEN screening_calls.status IN ('completed','failed','busy','no-answer','canceled')
                            THEN screening_calls.status ELSE EXCLUDED.status END,
              candidate_id = COALESCE(NULLIF(EXCLUDED.candidate_id, ''), screening_calls.candidate_id),
              from_number = COALESCE(NULLIF(EXCLUDED.from_number, ''), screening_calls.from_number),
              provider_used = COALESCE(NULLIF(EXCLUDED.provider_used, ''), screening_calls.provider_used),
              duration_seconds = GREATEST(screening_calls.duration_seconds, EXCLUDED.duration_seconds),
              updated_at = EXCLUDED.updated_at
`
	_, err := p.db.ExecContext(ctx, q,
		c.CallSID,
		c.SessionID,
		c.CandidateID,
		string(c.Direction),
		c.From,
		c.To,
		string(c.Status),
		c.ProviderUsed,
		c.DurationSeconds,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}
