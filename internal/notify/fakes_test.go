package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []OutgoingEmail
	failTo map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, email OutgoingEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo[email.To] {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, email)
	return nil
}

type memoryAttempts struct {
	mu       sync.Mutex
	attempts []domain.NotificationAttempt
	err      error
}

func (m *memoryAttempts) Insert(ctx context.Context, a *domain.NotificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = int64(len(m.attempts) + 1)
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memoryAttempts) byOutcome(outcome domain.AttemptOutcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.Outcome == outcome {
			n++
		}
	}
	return n
}

type memoryOutbox struct {
	mu      sync.Mutex
	intents map[string]*domain.NotificationIntent
	order   []string
}

func newMemoryOutbox(intents ...*domain.NotificationIntent) *memoryOutbox {
	o := &memoryOutbox{intents: map[string]*domain.NotificationIntent{}}
	for _, in := range intents {
		o.intents[in.ID] = in
		o.order = append(o.order, in.ID)
	}
	return o
}

func (o *memoryOutbox) ClaimDue(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]domain.NotificationIntent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var due []domain.NotificationIntent
	for _, id := range o.order {
		in := o.intents[id]
		if in.Status != domain.IntentPending || in.NextAttemptAt.After(now) {
			continue
		}
		in.NextAttemptAt = now.Add(lease)
		due = append(due, *in)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (o *memoryOutbox) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intents[id].Status = domain.IntentSent
	o.intents[id].Attempts = attempts
	return nil
}

func (o *memoryOutbox) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intents[id].Attempts = attempts
	o.intents[id].LastError = lastErr
	o.intents[id].NextAttemptAt = next
	return nil
}

func (o *memoryOutbox) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intents[id].Status = domain.IntentFailed
	o.intents[id].Attempts = attempts
	o.intents[id].LastError = lastErr
	return nil
}

func (o *memoryOutbox) get(id string) domain.NotificationIntent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.intents[id]
}
