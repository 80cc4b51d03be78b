// Package sweep runs the periodic notification jobs: abandoned cart
// reminders, post-purchase follow-ups and restock catch-up.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
)

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

type CartStore interface {
	ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]domain.Cart, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type OrderStore interface {
	ListFollowUpDue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	MarkFollowUpSent(ctx context.Context, id string, at time.Time) error
}

type Restocker interface {
	NotifyRestock(ctx context.Context, productID, size string) (sent, failed int, err error)
}

type Config struct {
	CartAbandonAfter time.Duration
	FollowUpAfter    time.Duration
	BatchSize        int
}

type Result struct {
	Sent   int
	Failed int
}

// Job is a named sweep the scheduler can run.
type Job struct {
	Name string
	Run  func(ctx context.Context) (Result, error)
}

type Sweeper struct {
	carts    CartStore
	orders   OrderStore
	restock  Restocker
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	nowFunc  func() time.Time
}

func NewSweeper(carts CartStore, orders OrderStore, restock Restocker, notifier Notifier, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.CartAbandonAfter <= 0 {
		cfg.CartAbandonAfter = 24 * time.Hour
	}
	if cfg.FollowUpAfter <= 0 {
		cfg.FollowUpAfter = 7 * 24 * time.Hour
	}
	return &Sweeper{
		carts:    carts,
		orders:   orders,
		restock:  restock,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func (s *Sweeper) Jobs() []Job {
	return []Job{
		{Name: "cart_abandonment", Run: s.CartAbandonment},
		{Name: "follow_up", Run: s.FollowUp},
		{Name: "restock", Run: s.Restock},
	}
}

// CartAbandonment reminds owners of carts idle past the abandonment window.
// A cart is marked reminded only after its message was sent.
func (s *Sweeper) CartAbandonment(ctx context.Context) (Result, error) {
	now := s.nowFunc().UTC()
	carts, err := s.carts.ListAbandoned(ctx, now.Add(-s.cfg.CartAbandonAfter), s.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list abandoned carts: %w", err)
	}

	var res Result
	for _, c := range carts {
		msg, err := notify.NewMessage(domain.NotificationCartAbandonment, c.Email, c.ID, notify.CartData{
			CartID:    c.ID,
			ItemCount: c.ItemCount,
		})
		if err != nil {
			return res, err
		}

		if err := s.notifier.Send(ctx, msg); err != nil {
			res.Failed++
			continue
		}
		if err := s.carts.MarkReminded(ctx, c.ID, now); err != nil {
			s.logger.Error("failed to mark cart reminded", "error", err, "cart_id", c.ID)
		}
		res.Sent++
	}

	return res, nil
}

func (s *Sweeper) FollowUp(ctx context.Context) (Result, error) {
	now := s.nowFunc().UTC()
	orders, err := s.orders.ListFollowUpDue(ctx, now.Add(-s.cfg.FollowUpAfter), s.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list follow-up orders: %w", err)
	}

	var res Result
	for _, o := range orders {
		msg, err := notify.NewMessage(domain.NotificationFollowUp, o.ShippingAddress.Email, o.ID, notify.NewOrderData(o))
		if err != nil {
			return res, err
		}

		if err := s.notifier.Send(ctx, msg); err != nil {
			res.Failed++
			continue
		}
		if err := s.orders.MarkFollowUpSent(ctx, o.ID, now); err != nil {
			s.logger.Error("failed to mark follow-up sent", "error", err, "order_id", o.ID)
		}
		res.Sent++
	}

	return res, nil
}

// Restock picks up waitlist subscribers that an immediate stock-edit
// notification missed.
func (s *Sweeper) Restock(ctx context.Context) (Result, error) {
	sent, failed, err := s.restock.NotifyRestock(ctx, "", "")
	return Result{Sent: sent, Failed: failed}, err
}
