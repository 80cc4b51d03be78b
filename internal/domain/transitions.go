package domain

import (
	"fmt"
	"time"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusProcessing, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusCompleted},
}

var allOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusExpired,
}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(allOrderStatuses))
	copy(out, allOrderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, known := range allOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether to follows from along the lifecycle table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOverride reports whether an administrative edit from -> to leaves the
// lifecycle table. Re-saving the current status is not an override.
func IsOverride(from, to OrderStatus) bool {
	return from != to && !CanTransition(from, to)
}

// CheckConfirmPayment decides whether payment can be confirmed on o at now.
// The order must be able to move to processing, its payment to confirmed,
// and the payment window must still be open.
func CheckConfirmPayment(o *Order, now time.Time) error {
	switch {
	case o.PaymentStatus == PaymentStatusConfirmed:
		return &RuleViolation{Reason: ReasonAlreadyConfirmed, Message: "payment is already confirmed"}
	case !CanTransitionPayment(o.PaymentStatus, PaymentStatusConfirmed) || !CanTransition(o.Status, OrderStatusProcessing):
		return &RuleViolation{
			Reason:  ReasonWrongState,
			Message: fmt.Sprintf("order is %s with payment %s", o.Status, o.PaymentStatus),
		}
	case IsExpired(o, now):
		return &RuleViolation{Reason: ReasonExpired, Message: "payment window closed at " + o.ExpiresAt.Format(time.RFC3339)}
	}
	return nil
}

// CheckAdminTransition validates an administrative status edit. Admins may
// move a non-terminal order to any known status, or re-save the current one.
func CheckAdminTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return &ValidationError{Field: "status", Message: "unknown status " + string(to)}
	}
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return &RuleViolation{
			Reason:  ReasonTerminalState,
			Message: "order is " + string(from) + " and can no longer change status",
		}
	}
	return nil
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionPayment allows pending to move to any settled state. Settled
// states never return to pending.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.Valid() && to != PaymentStatusPending
}
