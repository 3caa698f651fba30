package interview

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("interview: session not found")

// Store holds live sessions. Update serializes mutations per session id; calls
// for different ids may run in parallel.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Upsert(ctx context.Context, s Session) error
	List(ctx context.Context) ([]Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
}

// MemoryStore is a process-local Store with one mutex per session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	clock    func() time.Time
}

type entry struct {
	mu sync.Mutex
	s  Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*entry{}, clock: time.Now}
}

func (m *MemoryStore) lookup(id string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	e := m.lookup(id)
	if e == nil {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, s Session) error {
	if s.ID == "" {
		return errors.New("interview: session id required")
	}
	m.mu.Lock()
	e, ok := m.sessions[s.ID]
	if !ok {
		e = &entry{}
		m.sessions[s.ID] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Completed {
		s.Completed = true
	}
	e.s = s.Clone()
	return nil
}

// List returns every session, newest first.
func (m *MemoryStore) List(ctx context.Context) ([]Session, error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.s.Clone())
		e.mu.Unlock()
	}
	sortNewestFirst(out)
	return out, nil
}

// Update runs fn on a working copy under the session lock and stores the result
// only if fn succeeds. Completed stays true and the question index never moves
// backwards regardless of what fn does.
func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	e := m.lookup(id)
	if e == nil {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.s.Clone()
	if err := fn(&work); err != nil {
		return e.s.Clone(), err
	}
	guard(&e.s, &work)
	work.UpdatedAt = m.clock().UTC()
	e.s = work
	return work.Clone(), nil
}

func guard(prev, next *Session) {
	if prev.Completed {
		next.Completed = true
		if !next.Phase.Final() {
			next.Phase = prev.Phase
		}
	}
	if next.CurrentQuestionIndex < prev.CurrentQuestionIndex {
		next.CurrentQuestionIndex = prev.CurrentQuestionIndex
	}
	if next.CurrentQuestionIndex > len(next.QuestionPlan) {
		next.CurrentQuestionIndex = len(next.QuestionPlan)
	}
}

func sortNewestFirst(ss []Session) {
	sort.SliceStable(ss, func(i, j int) bool {
		return ss[i].CreatedAt.After(ss[j].CreatedAt)
	})
}
