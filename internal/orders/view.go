package orders

import (
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// CustomerView is what a buyer sees when looking up an order by number.
type CustomerView struct {
	OrderNumber     string                      `json:"order_number"`
	Status          domain.OrderStatus          `json:"status"`
	PaymentStatus   domain.PaymentStatus        `json:"payment_status"`
	PaymentMethod   string                      `json:"payment_method"`
	Items           []domain.OrderItem          `json:"items"`
	Total           int64                       `json:"total"`
	Currency        string                      `json:"currency"`
	ShippingAddress domain.ShippingAddress      `json:"shipping_address"`
	TrackingNumber  string                      `json:"tracking_number,omitempty"`
	Carrier         string                      `json:"carrier,omitempty"`
	StatusHistory   []domain.StatusHistoryEntry `json:"status_history"`
	CreatedAt       time.Time                   `json:"created_at"`
	ExpiresAt       time.Time                   `json:"expires_at"`
	// IsExpired is the pure deadline check and stays true after payment.
	// AwaitingPayment is what a storefront shows as "still payable".
	IsExpired       bool `json:"is_expired"`
	AwaitingPayment bool `json:"awaiting_payment"`
}

type AdminView struct {
	ID string `json:"id"`
	CustomerView
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int        `json:"version"`
}

func NewCustomerView(o *domain.Order, now time.Time) CustomerView {
	expired := domain.IsExpired(o, now)
	return CustomerView{
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		Items:           o.Items,
		Total:           o.Total,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		StatusHistory:   o.StatusHistory,
		CreatedAt:       o.CreatedAt,
		ExpiresAt:       o.ExpiresAt,
		IsExpired:       expired,
		AwaitingPayment: o.Status == domain.OrderStatusPendingPayment && o.PaymentStatus == domain.PaymentStatusPending && !expired,
	}
}

func NewAdminView(o *domain.Order, now time.Time) AdminView {
	return AdminView{
		ID:                 o.ID,
		CustomerView:       NewCustomerView(o, now),
		PaymentConfirmedAt: o.PaymentConfirmedAt,
		UpdatedAt:          o.UpdatedAt,
		Version:            o.Version,
	}
}
