package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestMiddleware_Wrap(t *testing.T) {
	clock := newFakeClock()
	memory := NewMemoryLimiter()
	memory.nowFunc = clock.Now

	var denied []string
	m := NewMiddleware(memory, "checkout", checkoutLimit, discardLogger()).
		OnDenied(func(r *http.Request, key string, res Result) {
			denied = append(denied, key)
		})
	m.nowFunc = clock.Now

	calls := 0
	handler := m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 1; i <= 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Errorf("call %d: expected X-RateLimit-Limit 5, got %q", i, rec.Header().Get("X-RateLimit-Limit"))
		}

		if i <= 5 {
			if rec.Code != http.StatusOK {
				t.Fatalf("call %d: expected 200, got %d", i, rec.Code)
			}
			if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(5-i) {
				t.Errorf("call %d: expected remaining %d, got %s", i, 5-i, got)
			}
			continue
		}

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("call 6: expected 429, got %d", rec.Code)
		}
		retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		if err != nil || retry <= 0 {
			t.Errorf("call 6: expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
		}
		if rec.Header().Get("X-RateLimit-Reset") == "" {
			t.Error("call 6: expected X-RateLimit-Reset header")
		}

		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["error"] != "too many requests, try again later" {
			t.Errorf("unexpected error message: %v", body["error"])
		}
		if body["retry_after"].(float64) != float64(retry) {
			t.Errorf("body retry_after %v does not match header %d", body["retry_after"], retry)
		}
	}

	if calls != 5 {
		t.Errorf("expected handler called 5 times, got %d", calls)
	}
	if len(denied) != 1 || denied[0] != "checkout:203.0.113.7" {
		t.Errorf("expected one denial hook for checkout:203.0.113.7, got %v", denied)
	}

	clock.Advance(checkoutLimit.Window + time.Second)
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected admission after window, got %d", rec.Code)
	}
}

func TestMiddleware_FailsOpenOnLimiterError(t *testing.T) {
	m := NewMiddleware(&failingLimiter{}, "checkout", checkoutLimit, discardLogger())

	called := false
	handler := m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/checkout", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected request admitted, got called=%v code=%d", called, rec.Code)
	}
}
