package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPResolver_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		trusted int
		xff     []string
		want    string
	}{
		{"direct ignores forwarding header", 0, []string{"10.9.9.9"}, "198.51.100.4"},
		{"direct without header", 0, nil, "198.51.100.4"},
		{"behind gateway takes appended hop", 1, []string{"10.9.9.9, 203.0.113.7"}, "203.0.113.7"},
		{"behind gateway without header", 1, nil, "198.51.100.4"},
		{"two proxies", 2, []string{"10.9.9.9, 203.0.113.7, 192.0.2.10"}, "203.0.113.7"},
		{"repeated headers are one chain", 1, []string{"10.9.9.9", "203.0.113.7"}, "203.0.113.7"},
		{"more trust than hops", 3, []string{"203.0.113.7"}, "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
			req.RemoteAddr = "198.51.100.4:51234"
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := NewIPResolver(tt.trusted).Resolve(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	t.Run("never reads forwarding headers on its own", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = "198.51.100.4:51234"
		req.Header.Set("X-Forwarded-For", "10.9.9.9")
		if got := ClientIP(req); got != "198.51.100.4" {
			t.Errorf("expected 198.51.100.4, got %s", got)
		}
	})

	t.Run("uses the resolved address", func(t *testing.T) {
		var got string
		handler := NewIPResolver(1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = ClientIP(r)
		}))
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = "10.0.0.2:8080"
		req.Header.Set("X-Forwarded-For", "10.9.9.9, 203.0.113.7")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if got != "203.0.113.7" {
			t.Errorf("expected 203.0.113.7, got %s", got)
		}
	})
}

func TestMiddleware_RotatingForwardedForSharesOneWindow(t *testing.T) {
	for _, trusted := range []int{0, 1} {
		t.Run(fmt.Sprintf("trusted=%d", trusted), func(t *testing.T) {
			m := NewMiddleware(NewMemoryLimiter(), "checkout", Limit{Max: 5, Window: 5 * time.Minute}, discardLogger())
			handler := NewIPResolver(trusted).Middleware(m.Wrap(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			admitted := 0
			for i := 0; i < 50; i++ {
				req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
				req.RemoteAddr = "203.0.113.7:4000"
				forwarded := fmt.Sprintf("10.0.0.%d", i)
				if trusted > 0 {
					// the gateway appends the address it saw
					forwarded += ", 203.0.113.99"
				}
				req.Header.Set("X-Forwarded-For", forwarded)
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				if rec.Code == http.StatusOK {
					admitted++
				}
			}

			if admitted != 5 {
				t.Errorf("expected 5 of 50 admitted for one client, got %d", admitted)
			}
		})
	}
}
