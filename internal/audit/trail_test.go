package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/ratelimit"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
}

func (s *memoryStore) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrail_Record(t *testing.T) {
	store := &memoryStore{}
	trail := NewTrail(store, discardLogger())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trail.nowFunc = func() time.Time { return fixed }

	trail.Record(context.Background(), domain.AuditLogEntry{
		Action:       domain.AuditOrderPaymentConfirmed,
		Actor:        "admin",
		ResourceType: domain.ResourceOrder,
		ResourceID:   "ord-1",
		Metadata:     map[string]any{"order_number": "ORD-000001"},
	})

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.Severity != domain.SeverityInfo {
		t.Errorf("expected default severity info, got %s", got.Severity)
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Errorf("expected created_at %v, got %v", fixed, got.CreatedAt)
	}
}

func TestTrail_RejectsUnknownAction(t *testing.T) {
	store := &memoryStore{}
	trail := NewTrail(store, discardLogger())

	trail.Record(context.Background(), domain.AuditLogEntry{Action: "order.teleported"})
	trail.Record(context.Background(), domain.AuditLogEntry{
		Action:   domain.AuditOrderDeleted,
		Severity: "catastrophic",
	})

	if len(store.entries) != 0 {
		t.Errorf("expected nothing written, got %d entries", len(store.entries))
	}
}

func TestTrail_SwallowsStoreErrors(t *testing.T) {
	store := &memoryStore{err: errors.New("connection refused")}
	trail := NewTrail(store, discardLogger())

	// Must not panic or block; the failure is only logged and counted.
	trail.Record(context.Background(), domain.AuditLogEntry{Action: domain.AuditOrderDeleted, Severity: domain.SeverityCritical})
}

func TestTrail_SurvivesCancelledRequestContext(t *testing.T) {
	store := &memoryStore{}
	trail := NewTrail(store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trail.Record(ctx, domain.AuditLogEntry{Action: domain.AuditOrderStatusUpdated})

	if len(store.entries) != 1 {
		t.Errorf("expected entry written despite cancelled context, got %d", len(store.entries))
	}
}

func TestWithRequest(t *testing.T) {
	t.Run("direct connection", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/admin/orders/1", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", "10.9.9.9")
		req.Header.Set("User-Agent", "curl/8.0")

		entry := WithRequest(domain.AuditLogEntry{Action: domain.AuditOrderDeleted}, req)

		if entry.IPAddress != "203.0.113.7" {
			t.Errorf("expected forged header ignored and ip 203.0.113.7, got %s", entry.IPAddress)
		}
		if entry.UserAgent != "curl/8.0" {
			t.Errorf("expected user agent curl/8.0, got %s", entry.UserAgent)
		}
	})

	t.Run("behind the gateway", func(t *testing.T) {
		var entry domain.AuditLogEntry
		handler := ratelimit.NewIPResolver(1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry = WithRequest(domain.AuditLogEntry{Action: domain.AuditOrderDeleted}, r)
		}))
		req := httptest.NewRequest("DELETE", "/admin/orders/1", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", "10.9.9.9, 203.0.113.7")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if entry.IPAddress != "203.0.113.7" {
			t.Errorf("expected ip 203.0.113.7, got %s", entry.IPAddress)
		}
	})
}
