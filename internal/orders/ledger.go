// Package orders owns the order lifecycle: checkout, payment confirmation,
// administrative status changes and deletion.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
	"github.com/joao-fontenele/storefront-orderflow/internal/validation"
)

var tracer = otel.Tracer("orders")

type Config struct {
	OrderExpiry time.Duration
	Currency    string
}

type CheckoutItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type CheckoutRequest struct {
	Items           []CheckoutItem         `json:"items" validate:"min=1,dive"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
}

type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

// UpdateRequest carries an administrative edit. Nil fields are left alone.
type UpdateRequest struct {
	Status          *domain.OrderStatus `json:"status,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	Carrier         *string             `json:"carrier,omitempty"`
	Note            string              `json:"note,omitempty"`
	ExpectedVersion *int                `json:"expected_version,omitempty"`
}

// Actor identifies who performed an administrative action and from where.
type Actor struct {
	Name      string
	IPAddress string
	UserAgent string
}

type Ledger struct {
	store    Store
	catalog  Catalog
	audit    Auditor
	cfg      Config
	validate *validatorv10.Validate
	logger   *slog.Logger
	nowFunc  func() time.Time

	ordersCreated     metric.Int64Counter
	paymentsConfirmed metric.Int64Counter
}

func NewLedger(store Store, catalog Catalog, auditor Auditor, cfg Config, logger *slog.Logger) *Ledger {
	meter := telemetry.Meter("orders")
	return &Ledger{
		store:             store,
		catalog:           catalog,
		audit:             auditor,
		cfg:               cfg,
		validate:          validation.New(),
		logger:            logger,
		nowFunc:           time.Now,
		ordersCreated:     telemetry.Counter(meter, "orders_created_total", "Orders placed through checkout"),
		paymentsConfirmed: telemetry.Counter(meter, "payments_confirmed_total", "Bank transfer payments confirmed by staff"),
	}
}

func (l *Ledger) CreateOrder(ctx context.Context, req CheckoutRequest) (_ *CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "orders.create")
	defer func() { endSpan(span, err) }()

	if err := validation.Struct(l.validate, req); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		product, err := l.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("look up product %s: %w", it.ProductID, err)
		}
		if product == nil || !product.Active {
			return nil, &domain.NotFoundError{Resource: "product", ID: it.ProductID}
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: product.Price,
			Title:     product.Title,
			ImageURL:  product.ImageURL,
		})
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate order id: %w", err)
	}

	now := l.nowFunc().UTC()
	order := &domain.Order{
		ID:              id.String(),
		Items:           items,
		Total:           domain.ComputeTotal(items),
		Currency:        l.cfg.Currency,
		Status:          domain.OrderStatusPendingPayment,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   domain.PaymentMethodBankTransfer,
		ShippingAddress: req.ShippingAddress,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.OrderStatusPendingPayment, Timestamp: now, Note: "order placed"},
		},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(l.cfg.OrderExpiry),
	}

	err = l.store.Create(ctx, order, func(o *domain.Order) ([]*domain.NotificationIntent, error) {
		intent, err := notify.NewIntent(domain.NotificationPaymentInstructions, o.ShippingAddress.Email, o.ID, notify.NewOrderData(o), now)
		if err != nil {
			return nil, err
		}
		return []*domain.NotificationIntent{intent}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))
	l.ordersCreated.Add(ctx, 1)
	l.logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.Total,
		"items", len(order.Items),
	)

	return &CheckoutResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (l *Ledger) ConfirmPayment(ctx context.Context, id string, actor Actor) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.confirm_payment", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	order, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := l.nowFunc().UTC()
	if err := domain.CheckConfirmPayment(order, now); err != nil {
		return nil, err
	}

	version := order.Version
	entry := domain.StatusHistoryEntry{Status: domain.OrderStatusProcessing, Timestamp: now, Note: "payment confirmed"}

	order.PaymentStatus = domain.PaymentStatusConfirmed
	order.PaymentConfirmedAt = &now
	order.Status = domain.OrderStatusProcessing
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, entry)

	intent, err := notify.NewIntent(domain.NotificationPaymentConfirmation, order.ShippingAddress.Email, order.ID, notify.NewOrderData(order), now)
	if err != nil {
		return nil, err
	}

	if err := l.store.Update(ctx, order, version, &entry, []*domain.NotificationIntent{intent}); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	l.paymentsConfirmed.Add(ctx, 1)
	l.audit.Record(ctx, domain.AuditLogEntry{
		Action:       domain.AuditOrderPaymentConfirmed,
		Severity:     domain.SeverityInfo,
		Actor:        actor.Name,
		ResourceType: domain.ResourceOrder,
		ResourceID:   order.ID,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Metadata: map[string]any{
			"order_number": order.OrderNumber,
			"total":        order.Total,
			"currency":     order.Currency,
		},
	})
	l.logger.Info("payment confirmed", "order_id", order.ID, "order_number", order.OrderNumber, "actor", actor.Name)

	return order, nil
}

func (l *Ledger) UpdateStatus(ctx context.Context, id string, req UpdateRequest, actor Actor) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.update_status", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	if req.Status == nil && req.TrackingNumber == nil && req.Carrier == nil && req.Note == "" {
		return nil, &domain.ValidationError{Message: "nothing to update"}
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status " + string(*req.Status)}
	}

	order, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion != order.Version {
		return nil, domain.ErrConcurrentUpdate
	}

	now := l.nowFunc().UTC()
	version := order.Version
	from := order.Status

	to := from
	if req.Status != nil {
		if err := domain.CheckAdminTransition(from, *req.Status); err != nil {
			return nil, err
		}
		to = *req.Status
	}

	// Every edit is recorded, including tracking-only ones, so notes survive.
	entry := &domain.StatusHistoryEntry{Status: to, Timestamp: now, Note: req.Note}
	order.Status = to
	order.StatusHistory = append(order.StatusHistory, *entry)
	if req.TrackingNumber != nil {
		order.TrackingNumber = *req.TrackingNumber
	}
	if req.Carrier != nil {
		order.Carrier = *req.Carrier
	}
	order.UpdatedAt = now

	var intents []*domain.NotificationIntent
	if order.Status != from {
		var kind domain.NotificationKind
		switch order.Status {
		case domain.OrderStatusShipped:
			kind = domain.NotificationShipment
		case domain.OrderStatusDelivered:
			kind = domain.NotificationDelivery
		}
		if kind != "" {
			intent, err := notify.NewIntent(kind, order.ShippingAddress.Email, order.ID, notify.NewOrderData(order), now)
			if err != nil {
				return nil, err
			}
			intents = append(intents, intent)
		}
	}

	if err := l.store.Update(ctx, order, version, entry, intents); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	severity := domain.SeverityInfo
	if order.Status == domain.OrderStatusCancelled && from != domain.OrderStatusCancelled {
		severity = domain.SeverityWarning
	}
	l.audit.Record(ctx, domain.AuditLogEntry{
		Action:       domain.AuditOrderStatusUpdated,
		Severity:     severity,
		Actor:        actor.Name,
		ResourceType: domain.ResourceOrder,
		ResourceID:   order.ID,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Metadata: map[string]any{
			"order_number":    order.OrderNumber,
			"from":            from,
			"to":              order.Status,
			"override":        domain.IsOverride(from, order.Status),
			"tracking_number": order.TrackingNumber,
			"carrier":         order.Carrier,
		},
	})
	l.logger.Info("order updated", "order_id", order.ID, "from", from, "to", order.Status, "actor", actor.Name)

	return order, nil
}

// DeleteOrder records the deletion before removing anything so the trail
// survives even if the delete itself fails.
func (l *Ledger) DeleteOrder(ctx context.Context, id string, actor Actor) (err error) {
	ctx, span := tracer.Start(ctx, "orders.delete", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	order, err := l.load(ctx, id)
	if err != nil {
		return err
	}

	l.audit.Record(ctx, domain.AuditLogEntry{
		Action:       domain.AuditOrderDeleted,
		Severity:     domain.SeverityCritical,
		Actor:        actor.Name,
		ResourceType: domain.ResourceOrder,
		ResourceID:   order.ID,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Metadata: map[string]any{
			"order_number":   order.OrderNumber,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"total":          order.Total,
		},
	})

	deleted, err := l.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if !deleted {
		return &domain.NotFoundError{Resource: "order", ID: id}
	}

	l.logger.Warn("order deleted", "order_id", order.ID, "order_number", order.OrderNumber, "actor", actor.Name)
	return nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return l.load(ctx, id)
}

func (l *Ledger) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	order, err := l.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", number, err)
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: number}
	}
	return order, nil
}

// Now is the clock used for expiry checks in read projections.
func (l *Ledger) Now() time.Time {
	return l.nowFunc()
}

func (l *Ledger) load(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	order, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return order, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
