package orders

import (
	"context"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// IntentBuilder runs inside the create transaction once the order number is
// known, so intents can reference it.
type IntentBuilder func(o *domain.Order) ([]*domain.NotificationIntent, error)

// Store persists orders. Getters return (nil, nil) when the order is missing.
type Store interface {
	Create(ctx context.Context, o *domain.Order, build IntentBuilder) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	// Update applies o if its stored version still equals expectedVersion,
	// appends entry to the history when non-nil and enqueues intents.
	// A version mismatch returns domain.ErrConcurrentUpdate.
	Update(ctx context.Context, o *domain.Order, expectedVersion int, entry *domain.StatusHistoryEntry, intents []*domain.NotificationIntent) error
	Delete(ctx context.Context, id string) (bool, error)
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Auditor interface {
	Record(ctx context.Context, entry domain.AuditLogEntry)
}
