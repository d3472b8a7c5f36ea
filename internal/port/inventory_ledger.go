package port

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReserveConflict is transient: the adapter exhausted its bounded
	// optimistic retries and the caller may try the whole operation again.
	ErrReserveConflict = errors.New("reservation conflict")
)

// InventoryLedger owns authoritative per-product stock. It is the only
// shared mutable state in the core; all mutation funnels through here.
type InventoryLedger interface {
	// GetStock returns an advisory snapshot that may be stale by the time a
	// reservation is attempted.
	GetStock(ctx context.Context, productID string) (int, error)

	// TryReserve decrements stock by quantity only if enough is available at
	// the instant of mutation. The check-then-decrement pair is indivisible
	// with respect to concurrent callers on the same product; stock never
	// goes negative.
	TryReserve(ctx context.Context, productID string, quantity int) error

	// Release increments stock, compensating a failed multi-item reservation
	// or restocking a cancelled order.
	Release(ctx context.Context, productID string, quantity int) error
}
