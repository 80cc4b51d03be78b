// Package ratelimit admits or rejects requests per key within a time window.
//
// Two strategies exist. RedisLimiter keeps a sliding window of request
// timestamps in a shared sorted set. MemoryLimiter keeps a fixed-window
// counter per key inside the process; when several instances run, each one
// enforces the limit on its own, so the effective aggregate limit is
// Max multiplied by the number of instances. FallbackLimiter answers from
// memory whenever Redis fails.
package ratelimit

import (
	"context"
	"time"
)

type Limit struct {
	Max    int
	Window time.Duration
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until ResetAt, at least one.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type Limiter interface {
	Check(ctx context.Context, key string, limit Limit) (Result, error)
}
