package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type Outbox interface {
	ClaimDue(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]domain.NotificationIntent, error)
	MarkSent(ctx context.Context, id string, attempts int, now time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error
}

type Deliverer interface {
	Deliver(ctx context.Context, intent *domain.NotificationIntent) error
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	// Lease bounds how long a claimed intent stays invisible to other relays.
	Lease time.Duration
}

func (c *RelayConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
}

// Relay drains the outbox, delivering each intent independently.
type Relay struct {
	outbox    Outbox
	deliverer Deliverer
	cfg       RelayConfig
	logger    *slog.Logger
	nowFunc   func() time.Time
}

func NewRelay(outbox Outbox, deliverer Deliverer, cfg RelayConfig, logger *slog.Logger) *Relay {
	cfg.setDefaults()
	return &Relay{
		outbox:    outbox,
		deliverer: deliverer,
		cfg:       cfg,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", "poll_interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)

	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("outbox poll failed", "error", err)
				break
			}
			// A full batch usually means more is waiting.
			if n < r.cfg.BatchSize || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims and processes one batch, returning how many were claimed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	intents, err := r.outbox.ClaimDue(ctx, r.cfg.BatchSize, r.nowFunc().UTC(), r.cfg.Lease)
	if err != nil {
		return 0, err
	}

	for i := range intents {
		r.process(ctx, &intents[i])
	}

	return len(intents), nil
}

func (r *Relay) process(ctx context.Context, intent *domain.NotificationIntent) {
	attempts := intent.Attempts + 1
	err := r.deliverer.Deliver(ctx, intent)
	now := r.nowFunc().UTC()

	if err == nil {
		if markErr := r.outbox.MarkSent(ctx, intent.ID, attempts, now); markErr != nil {
			r.logger.Error("failed to mark intent sent", "error", markErr, "intent_id", intent.ID)
		}
		return
	}

	if attempts >= r.cfg.MaxAttempts {
		r.logger.Error("notification intent exhausted retries",
			"error", err,
			"intent_id", intent.ID,
			"kind", intent.Kind,
			"attempts", attempts,
		)
		if markErr := r.outbox.MarkFailed(ctx, intent.ID, attempts, err.Error(), now); markErr != nil {
			r.logger.Error("failed to mark intent failed", "error", markErr, "intent_id", intent.ID)
		}
		return
	}

	next := now.Add(Backoff(attempts, r.cfg.BaseBackoff, r.cfg.MaxBackoff))
	if markErr := r.outbox.MarkRetry(ctx, intent.ID, attempts, err.Error(), next); markErr != nil {
		r.logger.Error("failed to reschedule intent", "error", markErr, "intent_id", intent.ID)
	}
}

// Backoff doubles base for every attempt after the first, capped at ceiling.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}
