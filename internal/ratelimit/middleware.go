package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

type KeyFunc func(r *http.Request) string

// DeniedFunc observes a rejected request, e.g. to write a security audit entry.
type DeniedFunc func(r *http.Request, key string, res Result)

type Middleware struct {
	limiter   Limiter
	scope     string
	limit     Limit
	keyFunc   KeyFunc
	onDenied  DeniedFunc
	logger    *slog.Logger
	decisions metric.Int64Counter
	nowFunc   func() time.Time
}

func NewMiddleware(limiter Limiter, scope string, limit Limit, logger *slog.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		scope:   scope,
		limit:   limit,
		keyFunc: ClientIP,
		logger:  logger,
		decisions: telemetry.Counter(telemetry.Meter("ratelimit"), "ratelimit_decisions_total",
			"Rate limit decisions by scope and outcome"),
		nowFunc: time.Now,
	}
}

func (m *Middleware) WithKeyFunc(fn KeyFunc) *Middleware {
	m.keyFunc = fn
	return m
}

func (m *Middleware) OnDenied(fn DeniedFunc) *Middleware {
	m.onDenied = fn
	return m
}

func (m *Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := m.scope + ":" + m.keyFunc(r)

		res, err := m.limiter.Check(r.Context(), key, m.limit)
		if err != nil {
			m.logger.Error("rate limit check failed, admitting request", "error", err, "key", key)
			next(w, r)
			return
		}

		m.decisions.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("scope", m.scope),
			attribute.Bool("allowed", res.Allowed),
		))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if res.Allowed {
			next(w, r)
			return
		}

		retryAfter := res.RetryAfter(m.nowFunc())
		h.Set("Retry-After", strconv.Itoa(retryAfter))
		m.logger.Warn("rate limit exceeded", "key", key, "retry_after", retryAfter)
		if m.onDenied != nil {
			m.onDenied(r, key, res)
		}

		h.Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		body := map[string]any{
			"error":       "too many requests, try again later",
			"retry_after": retryAfter,
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			m.logger.Error("failed to encode response", "error", err)
		}
	}
}
