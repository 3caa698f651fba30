package candidates

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used when no database is configured
// and in tests.
type MemoryRepo struct {
	mu      sync.Mutex
	byEmail map[string]*Candidate
	clock   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEmail: map[string]*Candidate{}, clock: time.Now}
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Candidate) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.UpdatedAt = r.clock().UTC()
	if cur, ok := r.byEmail[c.Email]; ok {
		cur.FullName = c.FullName
		if c.Phone != "" {
			cur.Phone = c.Phone
		}
		if c.LinkedIn != "" {
			cur.LinkedIn = c.LinkedIn
		}
		cur.UpdatedAt = c.UpdatedAt
		return *cur, nil
	}
	if c.Status == "" {
		c.Status = StatusInitialized
	}
	cp := c
	r.byEmail[c.Email] = &cp
	return cp, nil
}

func (r *MemoryRepo) find(match func(*Candidate) bool) (Candidate, error) {
	var best *Candidate
	for _, c := range r.byEmail {
		if match(c) && (best == nil || c.UpdatedAt.After(best.UpdatedAt)) {
			best = c
		}
	}
	if best == nil {
		return Candidate{}, ErrNotFound
	}
	return *best, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *Candidate) bool { return c.ID == id })
}

func (r *MemoryRepo) FindByPhone(ctx context.Context, phone string) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *Candidate) bool { return SamePhone(c.Phone, phone) })
}

func (r *MemoryRepo) IDExists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	return err == nil, nil
}

func (r *MemoryRepo) mutate(id string, fn func(*Candidate)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byEmail {
		if c.ID == id {
			fn(c)
			c.UpdatedAt = r.clock().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) SetLastSession(ctx context.Context, id, sessionID string) error {
	return r.mutate(id, func(c *Candidate) {
		c.LastSessionID = sessionID
		c.Status = StatusScreeningInProgress
	})
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, st Status, summary string) error {
	return r.mutate(id, func(c *Candidate) {
		c.Status = st
		if summary != "" {
			c.LastSummary = summary
		}
	})
}
