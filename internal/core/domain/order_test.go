package domain

import (
	"errors"
	"strings"
	"testing"
)

func orderLines() []CartItem {
	return []CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 3, UnitPrice: NewMoney(1000, "USD")},
		{ProductID: "prod-b", ProductName: "Gadget", Quantity: 1, UnitPrice: NewMoney(2550, "USD")},
	}
}

func TestNewOrder(t *testing.T) {
	order, err := NewOrder("order-1", "customer-1", orderLines(), "123 Main St", "ring twice")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if order.Status != StatusPending {
		t.Errorf("expected pending, got %s", order.Status)
	}
	if order.Total.Units != 5550 {
		t.Errorf("expected total 5550, got %d", order.Total.Units)
	}
	if order.Version != 0 {
		t.Errorf("expected version 0, got %d", order.Version)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Items[0].Subtotal.Units != 3000 || order.Items[1].Subtotal.Units != 2550 {
		t.Errorf("unexpected subtotals: %+v", order.Items)
	}

	// Total always equals the sum of subtotals.
	var sum int64
	for _, item := range order.Items {
		sum += item.Subtotal.Units
	}
	if sum != order.Total.Units {
		t.Errorf("total %d != sum of subtotals %d", order.Total.Units, sum)
	}
}

func TestNewOrder_NoItems(t *testing.T) {
	_, err := NewOrder("order-1", "customer-1", nil, "", "")
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}

func TestNewOrder_FieldLimits(t *testing.T) {
	_, err := NewOrder("order-1", "customer-1", orderLines(), strings.Repeat("x", 501), "")
	if !errors.Is(err, ErrAddressTooLong) {
		t.Errorf("expected ErrAddressTooLong, got %v", err)
	}

	_, err = NewOrder("order-1", "customer-1", orderLines(), "", strings.Repeat("x", 1001))
	if !errors.Is(err, ErrNotesTooLong) {
		t.Errorf("expected ErrNotesTooLong, got %v", err)
	}
}

func TestNewOrder_CurrencyMix(t *testing.T) {
	lines := []CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 1, UnitPrice: NewMoney(1000, "USD")},
		{ProductID: "prod-b", ProductName: "Gadget", Quantity: 1, UnitPrice: NewMoney(1000, "EUR")},
	}
	_, err := NewOrder("order-1", "customer-1", lines, "", "")
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusShipped, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestOrderStatus_NoSelfLoops(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled} {
		if s.CanTransitionTo(s) {
			t.Errorf("self-loop allowed for %s", s)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusDelivered, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped} {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("shipped")
	if err != nil || s != StatusShipped {
		t.Errorf("ParseOrderStatus(shipped) = %v, %v", s, err)
	}
	if _, err := ParseOrderStatus("mailed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestOrder_TransitionTo(t *testing.T) {
	order, err := NewOrder("order-1", "customer-1", orderLines(), "", "")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	for _, to := range []OrderStatus{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
		if err := order.TransitionTo(to); err != nil {
			t.Fatalf("transition to %s failed: %v", to, err)
		}
		if order.Status != to {
			t.Fatalf("expected %s, got %s", to, order.Status)
		}
	}

	err = order.TransitionTo(StatusCancelled)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition from delivered, got %v", err)
	}
	if order.Status != StatusDelivered {
		t.Errorf("failed transition must not change status, got %s", order.Status)
	}
}

func TestOrder_TransitionTo_SelfLoop(t *testing.T) {
	order, err := NewOrder("order-1", "customer-1", orderLines(), "", "")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	err = order.TransitionTo(StatusPending)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition for self-loop, got %v", err)
	}
}
