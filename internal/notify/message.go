// Package notify renders and delivers customer notifications.
//
// Notifications never sit on a request path: ledger changes write intents to
// an outbox inside their own transaction and a Relay delivers them later,
// either directly through a Dispatcher or via Kafka to the worker.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// Message is the unit handed to a Dispatcher and the wire format on the
// notification.requested topic.
type Message struct {
	IntentID   string                  `json:"intent_id,omitempty"`
	Kind       domain.NotificationKind `json:"kind"`
	Recipient  string                  `json:"recipient"`
	ResourceID string                  `json:"resource_id"`
	Data       json.RawMessage         `json:"data"`
}

type OrderData struct {
	OrderNumber    string             `json:"order_number"`
	CustomerName   string             `json:"customer_name"`
	Items          []domain.OrderItem `json:"items"`
	Total          int64              `json:"total"`
	Currency       string             `json:"currency"`
	ExpiresAt      time.Time          `json:"expires_at"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	Carrier        string             `json:"carrier,omitempty"`
}

func NewOrderData(o *domain.Order) OrderData {
	return OrderData{
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.ShippingAddress.Name,
		Items:          o.Items,
		Total:          o.Total,
		Currency:       o.Currency,
		ExpiresAt:      o.ExpiresAt,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
	}
}

type RestockData struct {
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title"`
	Size         string `json:"size"`
}

type CartData struct {
	CartID    string `json:"cart_id"`
	ItemCount int    `json:"item_count"`
}

// WelcomeData is reserved for the account registration flow, which lives
// outside this repo and publishes welcome intents on the same topic.
type WelcomeData struct {
	Name string `json:"name"`
}

// NewIntent builds a pending outbox row that is due immediately.
func NewIntent(kind domain.NotificationKind, recipient, resourceID string, data any, now time.Time) (*domain.NotificationIntent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate intent id: %w", err)
	}

	return &domain.NotificationIntent{
		ID:            id.String(),
		Kind:          kind,
		Recipient:     recipient,
		ResourceID:    resourceID,
		Payload:       payload,
		Status:        domain.IntentPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// NewMessage is used by callers that send immediately without an outbox row.
func NewMessage(kind domain.NotificationKind, recipient, resourceID string, data any) (Message, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Message{Kind: kind, Recipient: recipient, ResourceID: resourceID, Data: payload}, nil
}

func MessageFromIntent(in *domain.NotificationIntent) Message {
	return Message{
		IntentID:   in.ID,
		Kind:       in.Kind,
		Recipient:  in.Recipient,
		ResourceID: in.ResourceID,
		Data:       in.Payload,
	}
}
