package domain

import (
	"errors"
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &Order{CreatedAt: created, ExpiresAt: created.Add(48 * time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after creation", created, false},
		{"at the deadline", created.Add(48 * time.Hour), false},
		{"one second past the deadline", created.Add(48*time.Hour + time.Second), true},
		{"days later", created.Add(96 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(order, tt.now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "p1", Quantity: 2, UnitPrice: 5000},
		{ProductID: "p2", Quantity: 1, UnitPrice: 5000},
	}
	if got := ComputeTotal(items); got != 15000 {
		t.Errorf("expected total 15000, got %d", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPendingPayment: {OrderStatusProcessing, OrderStatusCancelled, OrderStatusExpired},
		OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:        {OrderStatusDelivered},
		OrderStatusDelivered:      {OrderStatusCompleted},
	}

	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCheckAdminTransition(t *testing.T) {
	t.Run("non-terminal may jump anywhere", func(t *testing.T) {
		if err := CheckAdminTransition(OrderStatusPendingPayment, OrderStatusDelivered); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("same status is allowed on terminal orders", func(t *testing.T) {
		if err := CheckAdminTransition(OrderStatusCompleted, OrderStatusCompleted); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("terminal order rejects change", func(t *testing.T) {
		err := CheckAdminTransition(OrderStatusCancelled, OrderStatusProcessing)
		if !errors.Is(err, ErrBusinessRule) {
			t.Fatalf("expected business rule violation, got %v", err)
		}
		var rv *RuleViolation
		if !errors.As(err, &rv) || rv.Reason != ReasonTerminalState {
			t.Errorf("expected reason %s, got %v", ReasonTerminalState, err)
		}
	})

	t.Run("unknown status is a validation error", func(t *testing.T) {
		err := CheckAdminTransition(OrderStatusProcessing, OrderStatus("lost"))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestCanTransitionPayment(t *testing.T) {
	if !CanTransitionPayment(PaymentStatusPending, PaymentStatusConfirmed) {
		t.Error("pending -> confirmed should be allowed")
	}
	if CanTransitionPayment(PaymentStatusConfirmed, PaymentStatusPending) {
		t.Error("confirmed -> pending must never be allowed")
	}
	if CanTransitionPayment(PaymentStatusRefunded, PaymentStatusConfirmed) {
		t.Error("refunded -> confirmed must not be allowed")
	}
	if CanTransitionPayment(PaymentStatusPending, PaymentStatusPending) {
		t.Error("pending -> pending is not a transition")
	}
}

func TestAuditActionTaxonomy(t *testing.T) {
	if !AuditOrderPaymentConfirmed.Valid() {
		t.Error("expected order.payment_confirmed to be valid")
	}
	if AuditAction("order.updated_by_magic").Valid() {
		t.Error("expected unknown action to be rejected")
	}
}

func TestIsOverride(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPendingPayment, OrderStatusProcessing, false},
		{OrderStatusProcessing, OrderStatusProcessing, false},
		{OrderStatusPendingPayment, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
	}
	for _, tt := range tests {
		if got := IsOverride(tt.from, tt.to); got != tt.want {
			t.Errorf("IsOverride(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCheckConfirmPayment(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pending := func() *Order {
		return &Order{
			Status:        OrderStatusPendingPayment,
			PaymentStatus: PaymentStatusPending,
			CreatedAt:     created,
			ExpiresAt:     created.Add(48 * time.Hour),
		}
	}

	tests := []struct {
		name   string
		mutate func(o *Order)
		now    time.Time
		want   RuleReason
	}{
		{"eligible", func(o *Order) {}, created.Add(time.Hour), ""},
		{"already confirmed", func(o *Order) { o.PaymentStatus = PaymentStatusConfirmed }, created, ReasonAlreadyConfirmed},
		{"payment refunded", func(o *Order) { o.PaymentStatus = PaymentStatusRefunded }, created, ReasonWrongState},
		{"order cancelled", func(o *Order) { o.Status = OrderStatusCancelled }, created, ReasonWrongState},
		{"order already processing", func(o *Order) { o.Status = OrderStatusProcessing }, created, ReasonWrongState},
		{"window closed", func(o *Order) {}, created.Add(49 * time.Hour), ReasonExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := pending()
			tt.mutate(o)
			err := CheckConfirmPayment(o, tt.now)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var rv *RuleViolation
			if !errors.As(err, &rv) || rv.Reason != tt.want {
				t.Errorf("expected reason %s, got %v", tt.want, err)
			}
		})
	}
}
