/*
store.go - Persistence interface for products, movements and price history

PURPOSE:
  Defines the interface between the ledger engine and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Product CRUD plus append/list for movements and price history
  TxStore: Store plus a transaction boundary for atomic multi-table writes

APPEND-ONLY CONTRACT:
  Movements and price history only have Append and list methods.
  There is no UpdateMovement. DeletePriceHistory exists solely for
  removing a product that never had movements.

TIMESTAMPS:
  Implementations persist timestamps in UTC and return them in the
  location they were configured with (time.Local by default).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: File-backed SQLite
  - inventory/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Runs every write inside WithTx
  - query.go: Read-side projections over Store
*/
package inventory

import "context"

// =============================================================================
// STORE - Interface for inventory persistence
// =============================================================================

// Store handles persistence of the three record kinds.
// IDs are assigned by the store; any ID set by the caller is ignored.
type Store interface {
	// CreateProduct persists p and returns the assigned ID.
	CreateProduct(ctx context.Context, p Product) (ProductID, error)

	// GetProduct returns ErrProductNotFound if id is unknown.
	GetProduct(ctx context.Context, id ProductID) (Product, error)

	// UpdateProduct overwrites the mutable fields of an existing product.
	UpdateProduct(ctx context.Context, p Product) error

	// DeleteProduct reports whether a row was removed.
	DeleteProduct(ctx context.Context, id ProductID) (bool, error)

	// ListProducts returns all products ordered by name.
	ListProducts(ctx context.Context) ([]Product, error)

	// SearchProducts matches keyword as a substring of name or description,
	// case-insensitive for ASCII. Ordered by name.
	SearchProducts(ctx context.Context, keyword string) ([]Product, error)

	// AppendMovement persists m and returns the assigned ID.
	AppendMovement(ctx context.Context, m StockMovement) (MovementID, error)

	// ListMovements returns movements matching filter, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	// CountMovements returns how many movements reference productID.
	CountMovements(ctx context.Context, productID ProductID) (int, error)

	// AppendPriceHistory persists e and returns the assigned ID.
	AppendPriceHistory(ctx context.Context, e PriceHistoryEntry) (PriceHistoryID, error)

	// PriceHistory returns all entries for productID, oldest first.
	PriceHistory(ctx context.Context, productID ProductID) ([]PriceHistoryEntry, error)

	// DeletePriceHistory removes all entries for productID.
	DeletePriceHistory(ctx context.Context, productID ProductID) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// MovementFilter narrows ListMovements. Nil fields match everything.
type MovementFilter struct {
	ProductID *ProductID
	Kind      *MovementKind
}

// Matches reports whether m passes the filter.
func (f MovementFilter) Matches(m StockMovement) bool {
	if f.ProductID != nil && m.ProductID != *f.ProductID {
		return false
	}
	if f.Kind != nil && m.Kind != *f.Kind {
		return false
	}
	return true
}
