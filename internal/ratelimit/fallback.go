package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

type FallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	logger    *slog.Logger
	fallbacks metric.Int64Counter
}

func NewFallbackLimiter(primary, secondary Limiter, logger *slog.Logger) *FallbackLimiter {
	return &FallbackLimiter{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		fallbacks: telemetry.Counter(telemetry.Meter("ratelimit"), "ratelimit_fallbacks_total",
			"Rate limit checks answered by the in-process limiter after a store failure"),
	}
}

func (l *FallbackLimiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	res, err := l.primary.Check(ctx, key, limit)
	if err == nil {
		return res, nil
	}

	l.logger.Warn("rate limit store unavailable, using in-process limiter", "error", err, "key", key)
	l.fallbacks.Add(ctx, 1)
	return l.secondary.Check(ctx, key, limit)
}

// New picks the limiter strategy once at startup. Without a Redis URL every
// instance limits on its own. The returned close function releases the Redis
// client, if any.
func New(ctx context.Context, redisURL string, logger *slog.Logger) (Limiter, func() error, error) {
	memory := NewMemoryLimiter()
	if redisURL == "" {
		logger.Warn("REDIS_URL not set, rate limits are enforced per instance")
		return memory, func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, falling back per request", "error", err)
	}

	limiter := NewFallbackLimiter(NewRedisLimiter(client, "ratelimit:"), memory, logger)
	return limiter, client.Close, nil
}
