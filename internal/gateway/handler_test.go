package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_Register(t *testing.T) {
	var ordersHits, catalogHits []string
	ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ordersHits = append(ordersHits, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ordersServer.Close()
	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		catalogHits = append(catalogHits, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer catalogServer.Close()

	handler := NewHandler(
		NewServiceProxy(ordersServer.URL, ordersServer.Client()),
		NewServiceProxy(catalogServer.URL, catalogServer.Client()),
		discardLogger(),
	)
	mux := http.NewServeMux()
	handler.Register(mux)

	tests := []struct {
		method     string
		path       string
		wantTarget string
	}{
		{http.MethodPost, "/checkout", "orders"},
		{http.MethodGet, "/orders/ORD-000001", "orders"},
		{http.MethodPost, "/admin/orders/abc/confirm-payment", "orders"},
		{http.MethodPatch, "/admin/orders/abc", "orders"},
		{http.MethodDelete, "/admin/orders/abc", "orders"},
		{http.MethodGet, "/admin/audit-logs", "orders"},
		{http.MethodGet, "/admin/audit-logs/stats", "orders"},
		{http.MethodGet, "/products/shirt", "catalog"},
		{http.MethodPost, "/products/shirt/waitlist", "catalog"},
		{http.MethodPut, "/admin/products/shirt/stock/M", "catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			ordersHits, catalogHits = nil, nil

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			hits := ordersHits
			if tt.wantTarget == "catalog" {
				hits = catalogHits
			}
			if len(hits) != 1 || hits[0] != tt.method+" "+tt.path {
				t.Errorf("expected %s to receive %s %s, got orders=%v catalog=%v", tt.wantTarget, tt.method, tt.path, ordersHits, catalogHits)
			}
		})
	}

	t.Run("unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleOrders(t *testing.T) {
	t.Run("proxies checkout with body and rate limit headers", func(t *testing.T) {
		ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"items"`) {
				t.Errorf("unexpected body: %s", body)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "120")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests, try again later"}`))
		}))
		defer ordersServer.Close()

		handler := NewHandler(
			NewServiceProxy(ordersServer.URL, ordersServer.Client()),
			NewServiceProxy("http://unused", http.DefaultClient),
			discardLogger(),
		)

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"items":[]}`))
		rec := httptest.NewRecorder()

		handler.HandleOrders(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "120" {
			t.Errorf("expected Retry-After 120, got %q", rec.Header().Get("Retry-After"))
		}
		if rec.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("returns 502 when orders service unavailable", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://localhost:99999", &http.Client{}),
			NewServiceProxy("http://unused", http.DefaultClient),
			discardLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/orders/ORD-000001", nil)
		rec := httptest.NewRecorder()

		handler.HandleOrders(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}

func TestHandler_HandleCatalog(t *testing.T) {
	t.Run("preserves downstream error status", func(t *testing.T) {
		catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"product ghost not found"}`))
		}))
		defer catalogServer.Close()

		handler := NewHandler(
			NewServiceProxy("http://unused", http.DefaultClient),
			NewServiceProxy(catalogServer.URL, catalogServer.Client()),
			discardLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/products/ghost", nil)
		rec := httptest.NewRecorder()

		handler.HandleCatalog(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
		if rec.Body.String() != `{"error":"product ghost not found"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("returns 502 when inventory service unavailable", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://unused", http.DefaultClient),
			NewServiceProxy("http://localhost:99999", &http.Client{}),
			discardLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/products/shirt", nil)
		rec := httptest.NewRecorder()

		handler.HandleCatalog(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}
	})
}

func TestHandler_RequestID(t *testing.T) {
	var seen []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	proxy := NewServiceProxy(upstream.URL, upstream.Client())
	handler := NewHandler(proxy, proxy, discardLogger())

	t.Run("minted when missing", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.HandleOrders(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-000001", nil))

		got := rec.Header().Get(RequestIDHeader)
		if got == "" {
			t.Fatal("expected a request id on the response")
		}
		if len(seen) != 1 || seen[0] != got {
			t.Errorf("expected upstream to see %q, got %v", got, seen)
		}
	})

	t.Run("client value kept", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/products/shirt", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		handler.HandleCatalog(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected req-123, got %q", got)
		}
		if len(seen) != 1 || seen[0] != "req-123" {
			t.Errorf("expected upstream to see req-123, got %v", seen)
		}
	})

	t.Run("present on upstream failure", func(t *testing.T) {
		down := NewServiceProxy("http://127.0.0.1:1", http.DefaultClient)
		rec := httptest.NewRecorder()
		NewHandler(down, down, discardLogger()).HandleOrders(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{}")))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a request id on the error response")
		}
	})
}
