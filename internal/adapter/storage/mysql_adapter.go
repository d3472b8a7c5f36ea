package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/port"
)

// reserveAttempts bounds the optimistic retry loop in TryReserve. Conflicts
// past this surface as port.ErrReserveConflict for the caller to retry.
const reserveAttempts = 4

// MySQLLedger is an InventoryLedger over the inventory table. Reservation is
// a read followed by a version-guarded conditional update, retried a bounded
// number of times; the WHERE clause makes the decrement indivisible.
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (l *MySQLLedger) GetStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := l.db.QueryRowContext(ctx,
		`SELECT stock FROM inventory WHERE product_id = ?`, productID,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (l *MySQLLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	for attempt := 0; attempt < reserveAttempts; attempt++ {
		var stock, version int
		err := l.db.QueryRowContext(ctx,
			`SELECT stock, version FROM inventory WHERE product_id = ?`, productID,
		).Scan(&stock, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
		}
		if err != nil {
			return fmt.Errorf("query inventory: %w", err)
		}

		if stock < quantity {
			return fmt.Errorf("%w: product %s has %d, want %d",
				port.ErrInsufficientStock, productID, stock, quantity)
		}

		result, err := l.db.ExecContext(ctx, `
			UPDATE inventory
			SET stock = stock - ?, version = version + 1, updated_at = NOW()
			WHERE product_id = ? AND version = ?`,
			quantity, productID, version,
		)
		if err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 1 {
			return nil
		}
		// Lost the version race; re-read and try again.
	}

	return fmt.Errorf("%w: product %s", port.ErrReserveConflict, productID)
}

func (l *MySQLLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE inventory
		SET stock = stock + ?, version = version + 1, updated_at = NOW()
		WHERE product_id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	return nil
}

// Records lists all inventory rows, used to warm a cache ledger at startup.
func (l *MySQLLedger) Records(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT product_id, stock, version, updated_at FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.ProductID, &rec.Stock, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MySQLOrderStore persists orders and their items transactionally. Status
// updates are guarded by the order's version column.
//
// The store also owns the durable side of stock: Create decrements the
// inventory table for every line in the order's transaction, and a transition
// into cancelled puts the quantities back, so the table always reflects
// persisted orders and survives a restart. The reservation gate in front of it
// must therefore be a separate ledger (Redis or memory), never MySQLLedger
// over the same table, or each sale would be decremented twice.
type MySQLOrderStore struct {
	db *sql.DB
}

func NewMySQLOrderStore(db *sql.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

func (s *MySQLOrderStore) Create(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, total_units, currency,
			shipping_address, notes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, string(o.Status), o.Total.Units, o.Total.Currency,
		o.ShippingAddress, o.Notes, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name,
				quantity, unit_price_units, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, i, item.ProductID, item.ProductName,
			item.Quantity, item.UnitPrice.Units, item.UnitPrice.Currency,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		// The floor check keeps the durable count non-negative even if it has
		// drifted from the reservation ledger; a miss rolls the whole order
		// back.
		result, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET stock = stock - ?, version = version + 1, updated_at = NOW()
			WHERE product_id = ? AND stock >= ?`,
			item.Quantity, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("%w: product %s", port.ErrInsufficientStock, item.ProductID)
		}
	}

	return tx.Commit()
}

func (s *MySQLOrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, total_units, currency,
			shipping_address, notes, version, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CustomerID, &status, &o.Total.Units, &o.Total.Currency,
		&o.ShippingAddress, &o.Notes, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price_units, currency
		FROM order_items WHERE order_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity,
			&item.UnitPrice.Units, &item.UnitPrice.Currency); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		// Subtotals are recomputed, never stored or trusted.
		item.Subtotal, err = item.UnitPrice.Mul(item.Quantity)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (s *MySQLOrderStore) UpdateStatus(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(o.Status), o.UpdatedAt, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM orders WHERE id = ?`, o.ID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", port.ErrOrderNotFound, o.ID)
		}
		if err != nil {
			return fmt.Errorf("query order: %w", err)
		}
		return fmt.Errorf("%w: order %s", port.ErrConcurrentModification, o.ID)
	}

	// Cancellation returns the order's quantities to the durable count in the
	// same transaction as the status write.
	if o.Status == domain.StatusCancelled {
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory i
			JOIN order_items oi ON oi.product_id = i.product_id AND oi.order_id = ?
			SET i.stock = i.stock + oi.quantity, i.version = i.version + 1,
				i.updated_at = NOW()`,
			o.ID,
		)
		if err != nil {
			return fmt.Errorf("restock inventory: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	o.Version++
	return nil
}

// MySQLCatalog reads product snapshots, joining inventory for the advisory
// stock hint.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (c *MySQLCatalog) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	var p domain.ProductSnapshot
	err := c.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.price_units, p.currency, p.active, COALESCE(i.stock, 0)
		FROM products p
		LEFT JOIN inventory i ON i.product_id = p.id
		WHERE p.id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.UnitPrice.Units, &p.UnitPrice.Currency, &p.Active, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}
