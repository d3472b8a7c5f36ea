package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/port"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingCustomer    = errors.New("missing customer id")
	ErrPersistenceFailure = errors.New("order persistence failed")
)

// releaseTimeout bounds compensating releases and cancellation restocks,
// which run detached from the caller's context.
const releaseTimeout = 5 * time.Second

// OrderService orchestrates cart -> order placement and order status updates.
// The cart is advisory; every line is re-validated against the ledger at
// commit time.
type OrderService struct {
	log     *slog.Logger
	ledger  port.InventoryLedger
	orders  port.OrderRepository
	catalog port.ProductCatalog
}

func NewOrderService(log *slog.Logger, ledger port.InventoryLedger, orders port.OrderRepository, catalog port.ProductCatalog) *OrderService {
	return &OrderService{
		log:     log,
		ledger:  ledger,
		orders:  orders,
		catalog: catalog,
	}
}

// OrderLine is the external request shape: a product and a quantity.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// Checkout builds a cart from catalog snapshots and places the order in one
// call. Inactive or unknown products are rejected before any reservation.
func (s *OrderService) Checkout(ctx context.Context, customerID string, lines []OrderLine, shippingAddress, notes string) (*domain.Order, error) {
	if customerID == "" {
		return nil, ErrMissingCustomer
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	cart := domain.NewCart(customerID)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, line.ProductID)
		}
		p, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: %s", port.ErrProductInactive, p.ID)
		}
		// The snapshot's stock is only an advisory bound here; the ledger
		// re-checks authoritatively during PlaceOrder.
		if err := cart.AddItem(*p, line.Quantity); err != nil {
			return nil, err
		}
	}

	return s.PlaceOrder(ctx, cart, shippingAddress, notes)
}

// PlaceOrder converts a cart into a durable pending order. Reservations are
// acquired in ascending product-id order so concurrent multi-item checkouts
// cannot deadlock; any failure releases everything already reserved and the
// cart is left intact. The cart is cleared only after the order is persisted.
func (s *OrderService) PlaceOrder(ctx context.Context, cart *domain.Cart, shippingAddress, notes string) (*domain.Order, error) {
	lines := cart.Items()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	reserveOrder := make([]domain.CartItem, len(lines))
	copy(reserveOrder, lines)
	sort.Slice(reserveOrder, func(i, j int) bool {
		return reserveOrder[i].ProductID < reserveOrder[j].ProductID
	})

	var reserved []domain.CartItem
	for _, line := range reserveOrder {
		if err := s.ledger.TryReserve(ctx, line.ProductID, line.Quantity); err != nil {
			s.releaseAll(ctx, reserved)
			return nil, fmt.Errorf("reserve product %s: %w", line.ProductID, err)
		}
		reserved = append(reserved, line)
	}

	order, err := domain.NewOrder(uuid.NewString(), cart.CustomerID, lines, shippingAddress, notes)
	if err != nil {
		s.releaseAll(ctx, reserved)
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.releaseAll(ctx, reserved)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	cart.Clear()
	s.log.Info("order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"lines", len(order.Items),
		"total", order.Total.DecimalString(),
	)
	return order, nil
}

// UpdateStatus applies one legal transition to an existing order. A
// transition into cancelled restocks every line; the transition table
// guarantees cancellation only happens pre-shipment, so post-shipment orders
// never restock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.TransitionTo(newStatus); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		if errors.Is(err, port.ErrConcurrentModification) || errors.Is(err, port.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if newStatus == domain.StatusCancelled {
		// The status write is already durable; restock must still happen even
		// if the caller's context died during the write.
		restockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		for _, item := range order.Items {
			if err := s.ledger.Release(restockCtx, item.ProductID, item.Quantity); err != nil {
				// The transition is already durable; a failed restock must not
				// report the committed operation as failed.
				s.log.Error("restock on cancellation failed",
					"order_id", order.ID,
					"product_id", item.ProductID,
					"quantity", item.Quantity,
					"err", err,
				)
			}
		}
	}

	s.log.Info("order status updated", "order_id", order.ID, "status", string(order.Status))
	return order, nil
}

// GetOrder loads an order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// GetStock is the advisory read path for cart UX hints.
func (s *OrderService) GetStock(ctx context.Context, productID string) (int, error) {
	return s.ledger.GetStock(ctx, productID)
}

// releaseAll compensates a failed multi-step reservation, newest first. The
// failure that triggered compensation may be the caller's context dying, so
// the releases run on a detached context with their own deadline.
func (s *OrderService) releaseAll(ctx context.Context, reserved []domain.CartItem) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if err := s.ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
			s.log.Error("compensating release failed",
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"err", err,
			)
		}
	}
}
