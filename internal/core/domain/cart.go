package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrQuantityTooLarge  = errors.New("quantity exceeds per-line limit")
	ErrExceedsKnownStock = errors.New("quantity exceeds known stock")
	ErrNotInCart         = errors.New("product not in cart")
)

// maxLineQuantity caps a single cart line.
const maxLineQuantity = 1000

// CartItem is one cart line. ProductName and UnitPrice are snapshots taken
// when the product was first added; later catalog changes do not touch them.
type CartItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   Money
}

// Cart is a customer's advisory selection. It is single-writer (one customer,
// one session) and therefore unsynchronized; stock is only authoritative at
// PlaceOrder time, never here.
type Cart struct {
	CustomerID string

	items     map[string]*CartItem
	lineOrder []string // insertion order, preserved through to the order
}

func NewCart(customerID string) *Cart {
	return &Cart{
		CustomerID: customerID,
		items:      make(map[string]*CartItem),
	}
}

// AddItem merges with an existing line for the same product. The merged
// quantity is bounded by the caller-supplied stock snapshot; that bound is a
// UX guard, the ledger re-checks at commit. On rejection the cart is left
// unchanged.
func (c *Cart) AddItem(p ProductSnapshot, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}

	merged := qty
	if existing, ok := c.items[p.ID]; ok {
		merged += existing.Quantity
	}
	if merged > maxLineQuantity {
		return fmt.Errorf("%w: %d > %d", ErrQuantityTooLarge, merged, maxLineQuantity)
	}
	if merged > p.Stock {
		return fmt.Errorf("%w: product %s has %d available, want %d",
			ErrExceedsKnownStock, p.ID, p.Stock, merged)
	}

	if existing, ok := c.items[p.ID]; ok {
		existing.Quantity = merged
		return nil
	}

	c.items[p.ID] = &CartItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    qty,
		UnitPrice:   p.UnitPrice,
	}
	c.lineOrder = append(c.lineOrder, p.ID)
	return nil
}

// UpdateQuantity sets a line's quantity; zero or negative removes the line.
func (c *Cart) UpdateQuantity(productID string, qty int) error {
	if _, ok := c.items[productID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInCart, productID)
	}
	if qty <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	if qty > maxLineQuantity {
		return fmt.Errorf("%w: %d > %d", ErrQuantityTooLarge, qty, maxLineQuantity)
	}
	c.items[productID].Quantity = qty
	return nil
}

func (c *Cart) RemoveItem(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	for i, id := range c.lineOrder {
		if id == productID {
			c.lineOrder = append(c.lineOrder[:i], c.lineOrder[i+1:]...)
			break
		}
	}
}

// Items returns the lines in insertion order.
func (c *Cart) Items() []CartItem {
	items := make([]CartItem, 0, len(c.lineOrder))
	for _, id := range c.lineOrder {
		items = append(items, *c.items[id])
	}
	return items
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total sums unitPrice x quantity over all lines in integer minor units.
func (c *Cart) Total() (Money, error) {
	var total Money
	for _, id := range c.lineOrder {
		item := c.items[id]
		line, err := item.UnitPrice.Mul(item.Quantity)
		if err != nil {
			return Money{}, err
		}
		total, err = total.Add(line)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func (c *Cart) Clear() {
	c.items = make(map[string]*CartItem)
	c.lineOrder = nil
}
