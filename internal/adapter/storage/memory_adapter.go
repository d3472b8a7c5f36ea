package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/port"
)

// MemoryLedger is an in-process InventoryLedger. The mutex makes every
// check-then-decrement indivisible; the version counter mirrors the durable
// adapters so callers observe the same optimistic-token semantics.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*domain.InventoryRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*domain.InventoryRecord)}
}

// Seed creates or resets a product's stock.
func (l *MemoryLedger) Seed(productID string, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[productID] = &domain.InventoryRecord{
		ProductID: productID,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}
}

func (l *MemoryLedger) GetStock(ctx context.Context, productID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	return rec.Stock, nil
}

func (l *MemoryLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[productID]
	if !ok {
		return fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	if rec.Stock < quantity {
		return fmt.Errorf("%w: product %s has %d, want %d",
			port.ErrInsufficientStock, productID, rec.Stock, quantity)
	}

	rec.Stock -= quantity
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *MemoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[productID]
	if !ok {
		return fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	rec.Stock += quantity
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Record returns a copy of the product's ledger row, for inspection in tests.
func (l *MemoryLedger) Record(productID string) (domain.InventoryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[productID]
	if !ok {
		return domain.InventoryRecord{}, false
	}
	return *rec, true
}

// MemoryOrderStore is an in-process OrderRepository with the same optimistic
// version check as the MySQL store.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*domain.Order)}
}

func (s *MemoryOrderStore) Create(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrOrderNotFound, id)
	}
	return cloneOrder(o), nil
}

func (s *MemoryOrderStore) UpdateStatus(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: %s", port.ErrOrderNotFound, o.ID)
	}
	if stored.Version != o.Version {
		return fmt.Errorf("%w: order %s", port.ErrConcurrentModification, o.ID)
	}

	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	stored.Version++
	o.Version = stored.Version
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Items = make([]domain.OrderItem, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}

// MemoryCatalog is an in-process ProductCatalog for tests and the loadgen
// harness.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.ProductSnapshot
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]domain.ProductSnapshot)}
}

func (c *MemoryCatalog) Put(p domain.ProductSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	snapshot := p
	return &snapshot, nil
}
