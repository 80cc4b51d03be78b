package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/sequence"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore mimics the Postgres repository: numbers come from an atomic
// counter and updates are guarded by the version column.
type memoryStore struct {
	mu      sync.Mutex
	counter sequence.MemoryCounter
	orders  map[string]*domain.Order
	intents []*domain.NotificationIntent

	failCreate error
	failUpdate error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: map[string]*domain.Order{}}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.StatusHistory = append([]domain.StatusHistoryEntry(nil), o.StatusHistory...)
	return &c
}

func (s *memoryStore) Create(ctx context.Context, o *domain.Order, build IntentBuilder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}

	o.OrderNumber = sequence.DefaultFormatter.Format(s.counter.Next())
	o.Version = 1

	intents, err := build(o)
	if err != nil {
		return err
	}

	s.orders[o.ID] = cloneOrder(o)
	s.intents = append(s.intents, intents...)
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (s *memoryStore) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) Update(ctx context.Context, o *domain.Order, expectedVersion int, entry *domain.StatusHistoryEntry, intents []*domain.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}

	current, ok := s.orders[o.ID]
	if !ok || current.Version != expectedVersion {
		return domain.ErrConcurrentUpdate
	}

	stored := cloneOrder(o)
	stored.StatusHistory = append([]domain.StatusHistoryEntry(nil), current.StatusHistory...)
	if entry != nil {
		stored.StatusHistory = append(stored.StatusHistory, *entry)
	}
	stored.Version = expectedVersion + 1
	s.orders[o.ID] = stored
	s.intents = append(s.intents, intents...)

	o.Version = stored.Version
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *memoryStore) intentKinds() []domain.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.NotificationKind, 0, len(s.intents))
	for _, in := range s.intents {
		kinds = append(kinds, in.Kind)
	}
	return kinds
}

type memoryCatalog map[string]*domain.Product

func (c memoryCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "explode" {
		return nil, errors.New("catalog unavailable")
	}
	return c[id], nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

func (a *recordingAuditor) Record(ctx context.Context, entry domain.AuditLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
