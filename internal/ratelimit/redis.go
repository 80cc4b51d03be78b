package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisLimiter struct {
	client  redis.Cmdable
	prefix  string
	nowFunc func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		prefix:  prefix,
		nowFunc: time.Now,
	}
}

// Check trims timestamps older than the window, counts the survivors and, if
// there is room, records this request. Trim/count and insert run as two
// separate transactions, so a concurrent burst can slightly over-admit.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	now := l.nowFunc()
	nowMs := now.UnixMilli()
	windowStart := nowMs - limit.Window.Milliseconds()
	redisKey := l.prefix + key

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(windowStart, 10))
		card = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("read window %s: %w", key, err)
	}

	resetAt := now.Add(limit.Window)
	if z := oldest.Val(); len(z) > 0 {
		resetAt = time.UnixMilli(int64(z[0].Score)).Add(limit.Window)
	}

	count := int(card.Val())
	if count >= limit.Max {
		return Result{Allowed: false, Limit: limit.Max, Remaining: 0, ResetAt: resetAt}, nil
	}

	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: member})
		pipe.PExpire(ctx, redisKey, limit.Window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("record request %s: %w", key, err)
	}

	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - (count + 1),
		ResetAt:   resetAt,
	}, nil
}
