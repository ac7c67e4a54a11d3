/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error kinds in one place. Presentation collaborators translate each
  kind into a user-facing message; the engine itself never logs.

ERROR CATEGORIES:
  1. Validation errors - detected before any write, never leave partial state
  2. Lookup errors - missing product
  3. Store errors - wrapped in StoreError, never retried

USAGE:
  conf, err := ledger.RecordMovement(ctx, req)
  var short *inventory.InsufficientStockError
  switch {
  case errors.As(err, &short):
      fmt.Printf("only %d left\n", short.Available)
  case errors.Is(err, inventory.ErrStoreFailure):
      // report and give up
  }

SEE ALSO:
  - ledger.go: Produces validation errors
  - store/sqlite/sqlite.go: Produces StoreError
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidQuantity is returned when a movement quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrInvalidMovementKind is returned for anything other than Receipt or Issue.
	ErrInvalidMovementKind = errors.New("invalid movement kind")

	// ErrProductNotFound is returned when a referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when an issue would drive quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrMissingSalePrice is returned when an issue has no sale price.
	ErrMissingSalePrice = errors.New("sale price is required for an issue")

	ErrNegativePrice    = errors.New("price must not be negative")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	ErrEmptyName        = errors.New("product name must not be empty")

	// ErrStoreFailure marks any persistence fault. See StoreError.
	ErrStoreFailure = errors.New("store failure")

	// ErrNoPriceHistory is returned by the costing engine for an empty history.
	ErrNoPriceHistory = errors.New("no price history")

	// ErrZeroHistoryQuantity is returned when the history sums to zero units,
	// which leaves the weighted average undefined.
	ErrZeroHistoryQuantity = errors.New("price history has zero total quantity")

	// ErrQuantityOverflow is returned when a receipt would push stock past
	// the largest representable quantity.
	ErrQuantityOverflow = errors.New("quantity would overflow")

	// ErrProductHasMovements is returned when deleting a product that is
	// still referenced by stock movements.
	ErrProductHasMovements = errors.New("product has stock movements")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID ProductID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// QuantityOverflowError reports a receipt that does not fit on top of the
// current stock.
type QuantityOverflowError struct {
	ProductID ProductID
	Current   int64
	Requested int64
}

func (e *QuantityOverflowError) Error() string {
	return fmt.Sprintf("quantity would overflow for %s: current %d, receiving %d",
		e.ProductID, e.Current, e.Requested)
}

func (e *QuantityOverflowError) Unwrap() error {
	return ErrQuantityOverflow
}

// StoreError wraps an underlying persistence failure with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// StoreFailure wraps err as a StoreError unless it is nil or already
// carries an engine error kind.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreFailure) || IsClientError(err) || IsNotFound(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidMovementKind) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrQuantityOverflow) ||
		errors.Is(err, ErrMissingSalePrice) ||
		errors.Is(err, ErrNegativePrice) ||
		errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrProductHasMovements)
}

// IsNotFound returns true if the error indicates a missing product.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}
