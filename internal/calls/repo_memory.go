package calls

import (
	"context"
	"errors"
	"sync"
)

type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string]Call{}} }

func (r *MemoryRepo) UpsertCall(ctx context.Context, c Call) error {
	if c.CallSID == "" {
		return errors.New("calls: call sid required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.calls[c.CallSID]; ok && !prev.CreatedAt.IsZero() {
		c.CreatedAt = prev.CreatedAt
	}
	r.calls[c.CallSID] = c
	return nil
}

func (r *MemoryRepo) Get(sid string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sid]
	return c, ok
}
