package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
)

// storeOutbox serves the intents the ledger wrote to the memory store.
type storeOutbox struct {
	mu    sync.Mutex
	store *memoryStore
}

func (o *storeOutbox) find(id string) *domain.NotificationIntent {
	for _, in := range o.store.intents {
		if in.ID == id {
			return in
		}
	}
	return nil
}

func (o *storeOutbox) ClaimDue(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]domain.NotificationIntent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.NotificationIntent
	for _, in := range o.store.intents {
		if in.Status == domain.IntentPending && !in.NextAttemptAt.After(now) && len(out) < limit {
			in.NextAttemptAt = now.Add(lease)
			out = append(out, *in)
		}
	}
	return out, nil
}

func (o *storeOutbox) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	in := o.find(id)
	in.Status, in.Attempts = domain.IntentSent, attempts
	return nil
}

func (o *storeOutbox) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	in := o.find(id)
	in.Attempts, in.LastError, in.NextAttemptAt = attempts, lastErr, next
	return nil
}

func (o *storeOutbox) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	in := o.find(id)
	in.Status, in.Attempts, in.LastError = domain.IntentFailed, attempts, lastErr
	return nil
}

type brokenDeliverer struct{ calls int }

func (d *brokenDeliverer) Deliver(ctx context.Context, intent *domain.NotificationIntent) error {
	d.calls++
	return errors.New("smtp relay refused connection")
}

func TestLedger_OrderSurvivesNotificationFailures(t *testing.T) {
	f := newLedgerFixture(t)
	res := f.create(t)

	deliverer := &brokenDeliverer{}
	outbox := &storeOutbox{store: f.store}
	relay := notify.NewRelay(outbox, deliverer, notify.RelayConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Nanosecond,
		MaxBackoff:  time.Nanosecond,
	}, discardLogger())

	for i := 0; i < 5; i++ {
		if _, err := relay.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	if deliverer.calls != 3 {
		t.Errorf("expected 3 delivery attempts, got %d", deliverer.calls)
	}
	if len(f.store.intents) != 1 || f.store.intents[0].Status != domain.IntentFailed {
		t.Fatalf("expected the instructions intent to end failed, got %+v", f.store.intents)
	}

	o, err := f.ledger.GetByNumber(context.Background(), res.OrderNumber)
	if err != nil {
		t.Fatalf("GetByNumber() error = %v", err)
	}
	if o.Status != domain.OrderStatusPendingPayment || o.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected pending_payment/pending after failed notifications, got %s/%s", o.Status, o.PaymentStatus)
	}
	if len(o.StatusHistory) != 1 {
		t.Errorf("expected history untouched, got %d entries", len(o.StatusHistory))
	}
}
