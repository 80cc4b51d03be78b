package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

func testSite() Site {
	return Site{
		URL:                 "https://shop.example.com",
		From:                "orders@shop.example.com",
		PaymentReceiptEmail: "payments@shop.example.com",
	}
}

func sampleOrderData() OrderData {
	return OrderData{
		OrderNumber:  "ORD-000042",
		CustomerName: "Jane Doe",
		Items: []domain.OrderItem{
			{ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: 5000, Title: "Linen Shirt"},
		},
		Total:     10000,
		Currency:  "CAD",
		ExpiresAt: time.Date(2026, 4, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderer_PaymentInstructions(t *testing.T) {
	r, err := NewRenderer(testSite())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	msg, err := NewMessage(domain.NotificationPaymentInstructions, "jane@example.com", "ord-1", sampleOrderData())
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	email, err := r.Render(msg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if email.Subject != "Payment instructions for order ORD-000042" {
		t.Errorf("unexpected subject %q", email.Subject)
	}
	for _, want := range []string{
		"Hi Jane Doe",
		"2 x Linen Shirt (M) 50.00 CAD",
		"Total due: 100.00 CAD",
		"payments@shop.example.com",
		"April 3, 2026",
		"https://shop.example.com/orders/ORD-000042",
	} {
		if !strings.Contains(email.Body, want) {
			t.Errorf("body missing %q:\n%s", want, email.Body)
		}
	}
}

func TestRenderer_EveryKindRenders(t *testing.T) {
	r, err := NewRenderer(testSite())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	data := map[domain.NotificationKind]any{
		domain.NotificationPaymentInstructions: sampleOrderData(),
		domain.NotificationPaymentConfirmation: sampleOrderData(),
		domain.NotificationShipment:            sampleOrderData(),
		domain.NotificationDelivery:            sampleOrderData(),
		domain.NotificationFollowUp:            sampleOrderData(),
		domain.NotificationRestock:             RestockData{ProductID: "p1", ProductTitle: "Linen Shirt", Size: "M"},
		domain.NotificationCartAbandonment:     CartData{CartID: "c1", ItemCount: 3},
		domain.NotificationWelcome:             WelcomeData{Name: "Jane"},
	}

	for kind, d := range data {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := NewMessage(kind, "jane@example.com", "res-1", d)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			email, err := r.Render(msg)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if email.Subject == "" || email.Body == "" {
				t.Errorf("expected subject and body, got %+v", email)
			}
		})
	}
}

func TestRenderer_ShipmentIncludesTracking(t *testing.T) {
	r, _ := NewRenderer(testSite())
	d := sampleOrderData()
	d.TrackingNumber = "1Z999"
	d.Carrier = "Canada Post"

	msg, _ := NewMessage(domain.NotificationShipment, "jane@example.com", "ord-1", d)
	email, err := r.Render(msg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(email.Body, "Tracking number: 1Z999") || !strings.Contains(email.Body, "Carrier: Canada Post") {
		t.Errorf("expected tracking details in body:\n%s", email.Body)
	}
}

func TestRenderer_UnknownKind(t *testing.T) {
	r, _ := NewRenderer(testSite())
	if _, err := r.Render(Message{Kind: "carrier_pigeon"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00 CAD"},
		{5, "0.05 CAD"},
		{12345, "123.45 CAD"},
		{-250, "-2.50 CAD"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.cents, "CAD"); got != tt.want {
			t.Errorf("FormatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestRenderer_WelcomeFromRegistration(t *testing.T) {
	r, _ := NewRenderer(testSite())

	// Registration publishes its own JSON payload rather than calling NewMessage.
	msg := Message{
		Kind:       domain.NotificationWelcome,
		Recipient:  "jane@example.com",
		ResourceID: "user-1",
		Data:       []byte(`{"name":"Jane"}`),
	}
	email, err := r.Render(msg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if email.Subject != "Welcome" || !strings.Contains(email.Body, "Hi Jane,") {
		t.Errorf("unexpected welcome email %+v", email)
	}
}
