package port

import (
	"context"
	"errors"

	"github.com/storely/order-core/internal/core/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrConcurrentModification means another writer updated the order since
	// it was loaded; the caller may reload and retry.
	ErrConcurrentModification = errors.New("concurrent order modification")
)

type OrderRepository interface {
	// Create persists a new order with its items. Orders are never deleted;
	// cancellation is a status change.
	Create(ctx context.Context, o *domain.Order) error

	Get(ctx context.Context, id string) (*domain.Order, error)

	// UpdateStatus persists o's status and updated-at guarded by o.Version,
	// bumping the version on success. A version mismatch returns
	// ErrConcurrentModification without writing.
	UpdateStatus(ctx context.Context, o *domain.Order) error
}
