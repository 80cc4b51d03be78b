package domain

import "time"

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusExpired        OrderStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethodBankTransfer is the only payment method: the buyer wires funds
// out of band and staff mark the order as paid.
const PaymentMethodBankTransfer = "bank_transfer"

type OrderItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url,omitempty"`
}

func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

type ShippingAddress struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Province   string `json:"province" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// StatusHistoryEntry is immutable once written.
type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

type Order struct {
	ID                 string               `json:"id"`
	OrderNumber        string               `json:"order_number"`
	Items              []OrderItem          `json:"items"`
	Total              int64                `json:"total"`
	Currency           string               `json:"currency"`
	Status             OrderStatus          `json:"status"`
	PaymentStatus      PaymentStatus        `json:"payment_status"`
	PaymentMethod      string               `json:"payment_method"`
	ShippingAddress    ShippingAddress      `json:"shipping_address"`
	TrackingNumber     string               `json:"tracking_number,omitempty"`
	Carrier            string               `json:"carrier,omitempty"`
	StatusHistory      []StatusHistoryEntry `json:"status_history"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	ExpiresAt          time.Time            `json:"expires_at"`
	PaymentConfirmedAt *time.Time           `json:"payment_confirmed_at,omitempty"`
	Version            int                  `json:"version"`
}

// IsExpired reports whether the payment window closed before now. It depends
// only on ExpiresAt; nothing moves an order to expired on its own.
func IsExpired(o *Order, now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// ComputeTotal sums the line subtotals.
func ComputeTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
