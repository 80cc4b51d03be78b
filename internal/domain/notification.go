package domain

import (
	"encoding/json"
	"time"
)

type NotificationKind string

const (
	NotificationPaymentInstructions NotificationKind = "payment_instructions"
	NotificationPaymentConfirmation NotificationKind = "payment_confirmation"
	NotificationShipment            NotificationKind = "shipment"
	NotificationDelivery            NotificationKind = "delivery"
	NotificationRestock             NotificationKind = "restock"
	NotificationCartAbandonment     NotificationKind = "cart_abandonment"
	NotificationFollowUp            NotificationKind = "follow_up"
	// NotificationWelcome is emitted by account registration, not by this repo.
	NotificationWelcome NotificationKind = "welcome"
)

type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentSent    IntentStatus = "sent"
	IntentFailed  IntentStatus = "failed"
)

// NotificationIntent is an outbox row written in the same transaction as the
// state change that caused it.
type NotificationIntent struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Recipient     string           `json:"recipient"`
	ResourceID    string           `json:"resource_id"`
	Payload       json.RawMessage  `json:"payload"`
	Status        IntentStatus     `json:"status"`
	Attempts      int              `json:"attempts"`
	LastError     string           `json:"last_error,omitempty"`
	NextAttemptAt time.Time        `json:"next_attempt_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

type AttemptOutcome string

const (
	OutcomeSent   AttemptOutcome = "sent"
	OutcomeFailed AttemptOutcome = "failed"
)

type NotificationAttempt struct {
	ID         int64            `json:"id"`
	IntentID   string           `json:"intent_id,omitempty"`
	Kind       NotificationKind `json:"kind"`
	Recipient  string           `json:"recipient"`
	ResourceID string           `json:"resource_id"`
	Outcome    AttemptOutcome   `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
