package port

import (
	"context"
	"errors"

	"github.com/storely/order-core/internal/core/domain"
)

var ErrProductInactive = errors.New("product inactive")

// ProductCatalog provides point-in-time product snapshots for cart building
// and stock hints. It is never consulted for the authoritative stock check.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}
