package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func seedInventory(t *testing.T, db *sql.DB, productID string, stock int) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO inventory (product_id, stock, version) VALUES (?, ?, 0)
		ON DUPLICATE KEY UPDATE stock = ?, version = 0`,
		productID, stock, stock)
	if err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func TestMySQLLedger_ReserveAndRelease(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	seedInventory(t, db, "test-ledger-item", 10)

	if err := ledger.TryReserve(ctx, "test-ledger-item", 4); err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}

	stock, err := ledger.GetStock(ctx, "test-ledger-item")
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if stock != 6 {
		t.Errorf("expected stock 6, got %d", stock)
	}

	var version int
	db.QueryRowContext(ctx,
		`SELECT version FROM inventory WHERE product_id = 'test-ledger-item'`).Scan(&version)
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	if err := ledger.Release(ctx, "test-ledger-item", 4); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	stock, _ = ledger.GetStock(ctx, "test-ledger-item")
	if stock != 10 {
		t.Errorf("expected stock 10 after release, got %d", stock)
	}
}

func TestMySQLLedger_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	seedInventory(t, db, "test-empty-item", 0)

	err := ledger.TryReserve(ctx, "test-empty-item", 1)
	if !errors.Is(err, port.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	err = ledger.TryReserve(ctx, "test-no-such-item", 1)
	if !errors.Is(err, port.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestMySQLLedger_ConcurrentReserve(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)

	const initialStock = 10
	const callers = 20
	seedInventory(t, db, "test-race-item", initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Conflicts past the bounded retries count as failures; stock
			// must still never oversell or go negative.
			if err := ledger.TryReserve(ctx, "test-race-item", 1); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	stock, err := ledger.GetStock(ctx, "test-race-item")
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if stock < 0 {
		t.Fatalf("stock went negative: %d", stock)
	}
	if int(successCount.Load()) != initialStock-stock {
		t.Errorf("successes %d inconsistent with stock drop %d",
			successCount.Load(), initialStock-stock)
	}
}

func inventoryStock(t *testing.T, db *sql.DB, productID string) int {
	t.Helper()
	var stock int
	err := db.QueryRowContext(context.Background(),
		`SELECT stock FROM inventory WHERE product_id = ?`, productID).Scan(&stock)
	if err != nil {
		t.Fatalf("read inventory for %s: %v", productID, err)
	}
	return stock
}

func TestMySQLOrderStore_RoundTrip(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)
	seedInventory(t, db, "prod-a", 10)
	seedInventory(t, db, "prod-b", 5)

	order, err := domain.NewOrder(uuid.NewString(), "test-customer", []domain.CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 3, UnitPrice: domain.NewMoney(1000, "USD")},
		{ProductID: "prod-b", ProductName: "Gadget", Quantity: 1, UnitPrice: domain.NewMoney(2550, "USD")},
	}, "123 Main St", "ring twice")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
		db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
	}()

	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := store.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.Total.Units != 5550 || loaded.Total.Currency != "USD" {
		t.Errorf("expected total 5550 USD, got %d %s", loaded.Total.Units, loaded.Total.Currency)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded.Items))
	}
	// Insertion order preserved via line_no.
	if loaded.Items[0].ProductID != "prod-a" || loaded.Items[1].ProductID != "prod-b" {
		t.Errorf("item order not preserved: %+v", loaded.Items)
	}
	// Subtotals are recomputed on load.
	if loaded.Items[0].Subtotal.Units != 3000 {
		t.Errorf("expected subtotal 3000, got %d", loaded.Items[0].Subtotal.Units)
	}

	// The durable count is decremented in the same transaction.
	if stock := inventoryStock(t, db, "prod-a"); stock != 7 {
		t.Errorf("expected prod-a inventory 7, got %d", stock)
	}
	if stock := inventoryStock(t, db, "prod-b"); stock != 4 {
		t.Errorf("expected prod-b inventory 4, got %d", stock)
	}
}

func TestMySQLOrderStore_Create_InsufficientInventoryRollsBack(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)
	seedInventory(t, db, "prod-a", 10)
	seedInventory(t, db, "prod-b", 0)

	order, err := domain.NewOrder(uuid.NewString(), "test-customer", []domain.CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 2, UnitPrice: domain.NewMoney(1000, "USD")},
		{ProductID: "prod-b", ProductName: "Gadget", Quantity: 1, UnitPrice: domain.NewMoney(2550, "USD")},
	}, "", "")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	err = store.Create(ctx, order)
	if !errors.Is(err, port.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Nothing persisted and the first line's decrement rolled back.
	if _, err := store.Get(ctx, order.ID); !errors.Is(err, port.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if stock := inventoryStock(t, db, "prod-a"); stock != 10 {
		t.Errorf("expected prod-a inventory unchanged at 10, got %d", stock)
	}
}

func TestMySQLOrderStore_CancelRestocksInventory(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)
	seedInventory(t, db, "prod-a", 10)

	order, err := domain.NewOrder(uuid.NewString(), "test-customer", []domain.CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 4, UnitPrice: domain.NewMoney(1000, "USD")},
	}, "", "")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
		db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
	}()

	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if stock := inventoryStock(t, db, "prod-a"); stock != 6 {
		t.Fatalf("expected prod-a inventory 6 after create, got %d", stock)
	}

	if err := order.TransitionTo(domain.StatusCancelled); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := store.UpdateStatus(ctx, order); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if stock := inventoryStock(t, db, "prod-a"); stock != 10 {
		t.Errorf("expected prod-a inventory restored to 10, got %d", stock)
	}
}

func TestMySQLOrderStore_UpdateStatus_OptimisticCheck(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLOrderStore(db)
	seedInventory(t, db, "prod-a", 10)

	order, err := domain.NewOrder(uuid.NewString(), "test-customer", []domain.CartItem{
		{ProductID: "prod-a", ProductName: "Widget", Quantity: 1, UnitPrice: domain.NewMoney(1000, "USD")},
	}, "", "")
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
		db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
	}()

	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, _ := store.Get(ctx, order.ID)
	second, _ := store.Get(ctx, order.ID)

	if err := first.TransitionTo(domain.StatusConfirmed); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := store.UpdateStatus(ctx, first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	if err := second.TransitionTo(domain.StatusCancelled); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	err = store.UpdateStatus(ctx, second)
	if !errors.Is(err, port.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}

	missing := *first
	missing.ID = uuid.NewString()
	err = store.UpdateStatus(ctx, &missing)
	if !errors.Is(err, port.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}
