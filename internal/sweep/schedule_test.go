package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

func newTestLocks(t *testing.T) *redsync.Redsync {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redsync.New(goredis.NewPool(client))
}

func countingJob(runs *int) Job {
	return Job{Name: "count", Run: func(ctx context.Context) (Result, error) {
		*runs++
		return Result{Sent: 1}, nil
	}}
}

func TestScheduler_RunJobWithoutLocks(t *testing.T) {
	s := NewScheduler(nil, time.Minute, discardLogger())
	runs := 0

	if !s.RunJob(context.Background(), countingJob(&runs)) {
		t.Error("expected the job to run")
	}
	if runs != 1 {
		t.Errorf("expected 1 run, got %d", runs)
	}
}

func TestScheduler_RunJobReleasesLock(t *testing.T) {
	s := NewScheduler(newTestLocks(t), time.Minute, discardLogger())
	runs := 0

	for i := 0; i < 2; i++ {
		if !s.RunJob(context.Background(), countingJob(&runs)) {
			t.Fatalf("run %d: expected the job to run", i)
		}
	}
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestScheduler_RunJobSkipsWhenLocked(t *testing.T) {
	locks := newTestLocks(t)
	held := locks.NewMutex(lockPrefix+"count", redsync.WithExpiry(time.Minute))
	if err := held.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	s := NewScheduler(locks, time.Minute, discardLogger())
	runs := 0
	if s.RunJob(context.Background(), countingJob(&runs)) {
		t.Error("expected the job to be skipped")
	}
	if runs != 0 {
		t.Errorf("expected no runs, got %d", runs)
	}
}

func TestScheduler_AddRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, time.Minute, discardLogger())
	runs := 0

	if err := s.Add("not a cron schedule", countingJob(&runs)); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
	if err := s.Add("*/5 * * * * *", countingJob(&runs)); err != nil {
		t.Errorf("Add() error = %v", err)
	}
}
