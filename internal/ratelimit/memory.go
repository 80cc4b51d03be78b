package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 1024

type fixedWindow struct {
	count   int
	resetAt time.Time
}

type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	checks  int
	nowFunc func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*fixedWindow),
		nowFunc: time.Now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, limit Limit) (Result, error) {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.checks++
	if l.checks%pruneEvery == 0 {
		l.prune(now)
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(limit.Window)}
		l.windows[key] = w
	}

	if w.count >= limit.Max {
		return Result{Allowed: false, Limit: limit.Max, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
