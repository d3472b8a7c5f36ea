package domain

import "time"

// InventoryRecord is the ledger's row for one product. Version increments on
// every successful mutation and is the optimistic concurrency token; Stock is
// never allowed to go negative.
type InventoryRecord struct {
	ProductID string
	Stock     int
	Version   int
	UpdatedAt time.Time
}
