package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
)

const lockPrefix = "sweep-lock:"

// Scheduler registers sweep jobs on a seconds-resolution cron. With a
// redsync instance each run first takes a per-job lock, so only one
// scheduler replica sweeps at a time.
type Scheduler struct {
	cron    *cron.Cron
	locks   *redsync.Redsync
	timeout time.Duration
	logger  *slog.Logger
}

func NewScheduler(locks *redsync.Redsync, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		locks:   locks,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunJob(ctx, job)
	})
	return err
}

// RunJob runs one job, skipping it when another replica holds the lock.
// It reports whether the job ran.
func (s *Scheduler) RunJob(ctx context.Context, job Job) bool {
	if s.locks != nil {
		mutex := s.locks.NewMutex(lockPrefix+job.Name,
			redsync.WithExpiry(s.timeout),
			redsync.WithTries(1),
		)
		if err := mutex.LockContext(ctx); err != nil {
			s.logger.Info("sweep skipped, lock not acquired", "job", job.Name, "error", err)
			return false
		}
		defer func() {
			if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err, "job", job.Name)
			}
		}()
	}

	start := time.Now()
	res, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err, "job", job.Name, "sent", res.Sent, "failed", res.Failed)
		return true
	}
	s.logger.Info("sweep finished", "job", job.Name, "sent", res.Sent, "failed", res.Failed, "duration", time.Since(start))
	return true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron and returns a context that is done once running jobs
// complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
