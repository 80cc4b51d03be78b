// Package inventory is the catalog and stock collaborator: product lookups
// for checkout pricing, stock edits and the restock waitlist.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/validation"
)

const restockBatch = 500

type RestockCandidate struct {
	Subscription domain.RestockSubscription
	ProductTitle string
}

type Store interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListStock(ctx context.Context, productID string) ([]domain.StockLevel, error)
	SetStock(ctx context.Context, productID, size string, available int) (int, error)
	Subscribe(ctx context.Context, sub *domain.RestockSubscription) error
	ListRestockDue(ctx context.Context, productID, size string, limit int) ([]RestockCandidate, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

type Auditor interface {
	Record(ctx context.Context, entry domain.AuditLogEntry)
}

type Actor struct {
	Name      string
	IPAddress string
	UserAgent string
}

type ProductView struct {
	domain.Product
	Stock []domain.StockLevel `json:"stock"`
}

type StockRequest struct {
	Available *int `json:"available" validate:"required,gte=0"`
}

type WaitlistRequest struct {
	Size  string `json:"size" validate:"required,max=16"`
	Email string `json:"email" validate:"required,email"`
}

type Service struct {
	store    Store
	notifier Notifier
	audit    Auditor
	validate *validatorv10.Validate
	logger   *slog.Logger
	nowFunc  func() time.Time
}

func NewService(store Store, notifier Notifier, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		audit:    auditor,
		validate: validation.New(),
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*ProductView, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if p == nil {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}

	stock, err := s.store.ListStock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list stock for %s: %w", id, err)
	}

	return &ProductView{Product: *p, Stock: stock}, nil
}

// SetStock records a stock edit. When a size comes back into stock its
// waitlist is notified straight away; failures stay eligible for the sweep.
func (s *Service) SetStock(ctx context.Context, productID, size string, req StockRequest, actor Actor) (*domain.StockLevel, error) {
	if err := validation.Struct(s.validate, req); err != nil {
		return nil, err
	}
	if size == "" {
		return nil, &domain.ValidationError{Field: "size", Message: "is required"}
	}

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	if p == nil {
		return nil, &domain.NotFoundError{Resource: "product", ID: productID}
	}

	available := *req.Available
	previous, err := s.store.SetStock(ctx, productID, size, available)
	if err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}

	s.audit.Record(ctx, domain.AuditLogEntry{
		Action:       domain.AuditProductStockUpdated,
		Severity:     domain.SeverityInfo,
		Actor:        actor.Name,
		ResourceType: domain.ResourceProduct,
		ResourceID:   productID,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Metadata: map[string]any{
			"size":     size,
			"previous": previous,
			"current":  available,
		},
	})
	s.logger.Info("stock updated", "product_id", productID, "size", size, "previous", previous, "available", available)

	if previous == 0 && available > 0 {
		sent, failed, err := s.NotifyRestock(ctx, productID, size)
		if err != nil {
			s.logger.Error("restock notification failed", "error", err, "product_id", productID, "size", size)
		} else if sent+failed > 0 {
			s.logger.Info("restock notifications dispatched", "product_id", productID, "size", size, "sent", sent, "failed", failed)
		}
	}

	return &domain.StockLevel{ProductID: productID, Size: size, Available: available}, nil
}

// NotifyRestock messages every pending subscriber of an in-stock size. Empty
// productID and size sweep the whole catalog. Each subscriber is handled on
// its own: only successful sends are marked notified.
func (s *Service) NotifyRestock(ctx context.Context, productID, size string) (sent, failed int, err error) {
	candidates, err := s.store.ListRestockDue(ctx, productID, size, restockBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("list restock subscriptions: %w", err)
	}

	for _, c := range candidates {
		sub := c.Subscription
		msg, err := notify.NewMessage(domain.NotificationRestock, sub.Email, sub.ProductID, notify.RestockData{
			ProductID:    sub.ProductID,
			ProductTitle: c.ProductTitle,
			Size:         sub.Size,
		})
		if err != nil {
			return sent, failed, err
		}

		if err := s.notifier.Send(ctx, msg); err != nil {
			failed++
			continue
		}

		if err := s.store.MarkNotified(ctx, sub.ID, s.nowFunc().UTC()); err != nil {
			s.logger.Error("failed to mark subscription notified", "error", err, "subscription_id", sub.ID)
		}
		sent++
	}

	return sent, failed, nil
}

func (s *Service) Subscribe(ctx context.Context, productID string, req WaitlistRequest) (*domain.RestockSubscription, error) {
	if err := validation.Struct(s.validate, req); err != nil {
		return nil, err
	}

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	if p == nil || !p.Active {
		return nil, &domain.NotFoundError{Resource: "product", ID: productID}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate subscription id: %w", err)
	}

	sub := &domain.RestockSubscription{
		ID:        id.String(),
		ProductID: productID,
		Size:      req.Size,
		Email:     req.Email,
		CreatedAt: s.nowFunc().UTC(),
	}
	if err := s.store.Subscribe(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Info("waitlist subscription added", "product_id", productID, "size", req.Size, "subscription_id", sub.ID)
	return sub, nil
}
