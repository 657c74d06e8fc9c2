// Package politeness enforces a minimum gap between requests to the same
// host across an entire worker fleet, layered on top of the per-host
// concurrency cap already enforced by the job queue's claim SQL. State
// lives in Redis so the gap is respected across processes, not just
// within one worker.
package politeness

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "venuecrawl:politeness:"

// Limiter gates access to a host behind a short-lived Redis lease.
type Limiter struct {
	rdb      *redis.Client
	minGap   time.Duration
	leaseTTL time.Duration
}

// New builds a Limiter. leaseTTL should be at least minGap so the lease
// outlives the gap it's meant to enforce even under Redis clock drift.
func New(rdb *redis.Client, minGap, leaseTTL time.Duration) *Limiter {
	if leaseTTL < minGap {
		leaseTTL = minGap
	}
	return &Limiter{rdb: rdb, minGap: minGap, leaseTTL: leaseTTL}
}

func politenessKey(host string) string {
	return keyPrefix + strings.ToLower(host)
}

// Wait blocks until the caller is clear to fetch host, acquiring the lease
// on success. It returns early with ctx.Err() if ctx is canceled first.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l.minGap <= 0 || l.rdb == nil {
		return nil
	}
	key := politenessKey(host)
	for {
		ok, err := l.rdb.SetNX(ctx, key, 1, l.leaseTTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		ttl, err := l.rdb.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		wait := ttl
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
