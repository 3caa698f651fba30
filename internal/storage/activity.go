package storage

import (
	"context"

	"screening-agent/internal/audit"
)

// Append inserts one activity event. A replayed id is dropped.
func (p *Postgres) Append(ctx context.Context, e audit.Event) error {
	const q = `
INSERT INTO screening_candidate_activity (
  id, candidate_id, session_id, event_type, call_id, actor_user_id, details, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (id) DO NOTHING
`
	_, err := p.db.ExecContext(ctx, q,
		e.ID,
		e.CandidateID,
		e.SessionID,
		string(e.Type),
		e.CallID,
		e.ActorUserID,
		e.Details,
		e.CreatedAt,
	)
	return err
}

func (p *Postgres) ListByCandidate(ctx context.Context, candidateID string, limit int) ([]audit.Event, error) {
	const q = `
SELECT id, candidate_id, session_id, event_type, call_id, actor_user_id, details, created_at
FROM screening_candidate_activity
WHERE candidate_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := p.db.QueryContext(ctx, q, candidateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Event, 0)
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(
			&e.ID,
			&e.CandidateID,
			&e.SessionID,
			&e.Type,
			&e.CallID,
			&e.ActorUserID,
			&e.Details,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
