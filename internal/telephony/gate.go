package telephony

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"screening-agent/pkg/utils"
)

var ErrDialCapReached = errors.New("telephony: concurrent call limit reached")

// DialGate caps concurrent outbound legs across replicas. A nil client or a
// non-positive limit disables the cap.
type DialGate struct {
	rdb   redis.Cmdable
	key   string
	limit int
	ttl   time.Duration
}

func NewDialGate(rdb redis.Cmdable, prefix string, limit int) *DialGate {
	if prefix == "" {
		prefix = "screening"
	}
	return &DialGate{rdb: rdb, key: prefix + ":dial:active", limit: limit, ttl: 30 * time.Minute}
}

func (g *DialGate) enabled() bool {
	return g != nil && g.rdb != nil && g.limit > 0
}

func (g *DialGate) Acquire(ctx context.Context) error {
	if !g.enabled() {
		return nil
	}
	ok, err := utils.AcquireConcurrencyCap(ctx, g.rdb, g.key, g.limit, g.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDialCapReached
	}
	return nil
}

func (g *DialGate) Release(ctx context.Context) error {
	if !g.enabled() {
		return nil
	}
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, g.key)
}
