package domain

// ProductSnapshot is the catalog's view of a product at a point in time.
// Name and UnitPrice are copied into carts and orders; Stock is an advisory
// hint only and is never trusted for the authoritative reservation check.
type ProductSnapshot struct {
	ID        string
	Name      string
	UnitPrice Money
	Stock     int
	Active    bool
}
