// Package audit keeps the append-only record of sensitive actions.
//
// Writes are best effort: a failed insert is logged and counted, never
// returned, so auditing cannot fail the operation being audited.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/ratelimit"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

const writeTimeout = 3 * time.Second

type Store interface {
	Insert(ctx context.Context, entry *domain.AuditLogEntry) error
}

type Trail struct {
	store    Store
	logger   *slog.Logger
	failures metric.Int64Counter
	nowFunc  func() time.Time
}

func NewTrail(store Store, logger *slog.Logger) *Trail {
	return &Trail{
		store:  store,
		logger: logger,
		failures: telemetry.Counter(telemetry.Meter("audit"), "audit_write_failures_total",
			"Audit entries that could not be persisted"),
		nowFunc: time.Now,
	}
}

func (t *Trail) Record(ctx context.Context, entry domain.AuditLogEntry) {
	if !entry.Action.Valid() {
		t.logger.Error("refusing audit entry with unknown action", "action", entry.Action)
		return
	}
	if entry.Severity == "" {
		entry.Severity = domain.SeverityInfo
	}
	if !entry.Severity.Valid() {
		t.logger.Error("refusing audit entry with unknown severity", "action", entry.Action, "severity", entry.Severity)
		return
	}
	entry.CreatedAt = t.nowFunc().UTC()

	// The caller may already have answered the client; keep the write alive.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := t.store.Insert(writeCtx, &entry); err != nil {
		t.failures.Add(writeCtx, 1, metric.WithAttributes(attribute.String("action", string(entry.Action))))
		t.logger.Error("failed to write audit entry",
			"error", err,
			"action", entry.Action,
			"actor", entry.Actor,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
		)
	}
}

// WithRequest fills the network origin of an entry from the request.
func WithRequest(entry domain.AuditLogEntry, r *http.Request) domain.AuditLogEntry {
	entry.IPAddress = ratelimit.ClientIP(r)
	entry.UserAgent = r.UserAgent()
	return entry
}
