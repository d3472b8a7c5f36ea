package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoItems        = errors.New("order must have at least one item")
	ErrAddressTooLong = errors.New("shipping address too long")
	ErrNotesTooLong   = errors.New("notes too long")
)

const (
	maxShippingAddressLen = 500
	maxNotesLen           = 1000
)

// OrderItem is a committed order line. All fields are snapshots: later
// catalog changes never retroactively alter historical orders.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   Money
	Subtotal    Money
}

// Order is immutable once created except for Status and UpdatedAt, which
// change only through the service via TransitionTo. Version is the
// optimistic token guarding concurrent status updates.
type Order struct {
	ID              string
	CustomerID      string
	Items           []OrderItem
	Status          OrderStatus
	Total           Money
	ShippingAddress string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// NewOrder builds a pending order from cart lines, recomputing every subtotal
// and the total from unit prices. Totals are never trusted from input.
func NewOrder(id, customerID string, lines []CartItem, shippingAddress, notes string) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoItems
	}
	if len(shippingAddress) > maxShippingAddressLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrAddressTooLong, len(shippingAddress), maxShippingAddressLen)
	}
	if len(notes) > maxNotesLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrNotesTooLong, len(notes), maxNotesLen)
	}

	items := make([]OrderItem, 0, len(lines))
	var total Money
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, line.ProductID)
		}
		subtotal, err := line.UnitPrice.Mul(line.Quantity)
		if err != nil {
			return nil, err
		}
		total, err = total.Add(subtotal)
		if err != nil {
			return nil, err
		}
		items = append(items, OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    subtotal,
		})
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		Items:           items,
		Status:          StatusPending,
		Total:           total,
		ShippingAddress: shippingAddress,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// TransitionTo moves the order to a new status if the transition table allows
// it. Illegal moves, including self-loops, leave the order untouched.
func (o *Order) TransitionTo(to OrderStatus) error {
	if !o.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}
