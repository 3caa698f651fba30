package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"screening-agent/pkg/utils"
)

// RedisStore shares sessions between API replicas. Each session is a JSON blob;
// Update takes a per-session lock so webhook deliveries hitting different
// replicas still serialize.
type RedisStore struct {
	rdb     redis.Cmdable
	prefix  string
	lockTTL time.Duration
	clock   func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "screening"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, lockTTL: 30 * time.Second, clock: time.Now}
}

func (r *RedisStore) key(id string) string     { return r.prefix + ":session:" + id }
func (r *RedisStore) lockKey(id string) string { return r.prefix + ":lock:" + id }
func (r *RedisStore) indexKey() string         { return r.prefix + ":sessions" }

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("interview: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("interview: decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisStore) Upsert(ctx context.Context, s Session) error {
	if s.ID == "" {
		return errors.New("interview: session id required")
	}
	owner := uuid.NewString()
	if err := utils.AcquireLock(ctx, r.rdb, r.lockKey(s.ID), owner, r.lockTTL, 0); err != nil {
		return err
	}
	defer func() { _ = utils.ReleaseLock(context.WithoutCancel(ctx), r.rdb, r.lockKey(s.ID), owner) }()

	if prev, err := r.Get(ctx, s.ID); err == nil && prev.Completed {
		s.Completed = true
	}
	return r.write(ctx, s)
}

func (r *RedisStore) write(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.key(s.ID), raw, 0)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(s.CreatedAt.UnixNano()), Member: s.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("interview: redis write: %w", err)
	}
	return nil
}

// List returns every indexed session, newest first.
func (r *RedisStore) List(ctx context.Context) ([]Session, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("interview: redis index: %w", err)
	}
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	owner := uuid.NewString()
	if err := utils.AcquireLock(ctx, r.rdb, r.lockKey(id), owner, r.lockTTL, 0); err != nil {
		return Session{}, err
	}
	defer func() { _ = utils.ReleaseLock(context.WithoutCancel(ctx), r.rdb, r.lockKey(id), owner) }()

	prev, err := r.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	work := prev.Clone()
	if err := fn(&work); err != nil {
		return prev, err
	}
	guard(&prev, &work)
	work.UpdatedAt = r.clock().UTC()
	if err := r.write(ctx, work); err != nil {
		return prev, err
	}
	return work, nil
}
