/*
ledger.go - Stock movement engine

PURPOSE:
  The Ledger decides how a receipt or issue mutates product state and
  writes the result atomically. It is the only writer of products,
  movements and price history.

CRITICAL INVARIANTS:
  1. NON-NEGATIVE STOCK: Product.Quantity never drops below zero
  2. ATOMIC: product update, movement insert and (receipts) history insert
     commit together or not at all
  3. FROZEN COST: an issue records the average cost as it was immediately
     before the issue, captured before any write
  4. IMMUTABLE: movements are never edited; corrections are new movements

VALIDATION ORDER:
  1. Quantity > 0                 → ErrInvalidQuantity
  2. Product exists               → ErrProductNotFound
  3. Kind is Receipt or Issue     → ErrInvalidMovementKind
  4. Supplied price not negative  → ErrNegativePrice
  5. Issue: sale price present    → ErrMissingSalePrice
  6. Issue: enough stock          → InsufficientStockError
  7. Receipt: stock stays in range → QuantityOverflowError

EXAMPLE FLOW:
  1. Add Widget: qty 10 @ 5.00          history [(5.00,10)]   avg 5.0
  2. Receipt 5 @ 7.00                    history [+(7.00,5)]   avg 5.7, price 7.00
  3. Issue 3 @ 9.00                      cost snapshot 5.7, profit 9.9
  4. Issue 20                            rejected, qty stays 12

SEE ALSO:
  - costing.go: AverageCost
  - catalog.go: Add/Update/Delete product
  - store.go: TxStore
*/
package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Write side of the engine
// =============================================================================

// Ledger validates and applies stock movements and catalog edits.
type Ledger struct {
	store TxStore

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewLedger creates a ledger over an injected store. The caller owns the
// store's lifecycle.
func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store, Clock: time.Now}
}

func (l *Ledger) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock()
}

// MovementRequest asks the ledger to record one movement.
type MovementRequest struct {
	ProductID ProductID
	Kind      MovementKind
	Quantity  int64

	// UnitPrice is the receipt cost (defaults to the product price when
	// absent) or the sale price (required for issues).
	UnitPrice decimal.NullDecimal
	Remark    string
}

// Confirmation is returned on success so callers can render the new state
// without a second read.
type Confirmation struct {
	Movement StockMovement
	Product  Product
}

// RecordMovement validates req against the current product state and
// commits the movement. On any error nothing is written.
func (l *Ledger) RecordMovement(ctx context.Context, req MovementRequest) (Confirmation, error) {
	if req.Quantity <= 0 {
		return Confirmation{}, ErrInvalidQuantity
	}

	var conf Confirmation
	err := l.store.WithTx(ctx, func(tx Store) error {
		product, err := tx.GetProduct(ctx, req.ProductID)
		if err != nil {
			return StoreFailure("load product", err)
		}
		if !req.Kind.Valid() {
			return fmt.Errorf("%w: %v", ErrInvalidMovementKind, req.Kind)
		}
		if req.UnitPrice.Valid && req.UnitPrice.Decimal.IsNegative() {
			return ErrNegativePrice
		}

		switch req.Kind {
		case Receipt:
			conf, err = l.receive(ctx, tx, product, req)
		case Issue:
			conf, err = l.issue(ctx, tx, product, req)
		}
		return err
	})
	if err != nil {
		return Confirmation{}, StoreFailure("record movement", err)
	}
	return conf, nil
}

// receive appends the receipt to price history, re-derives the average
// cost and moves the reference price to the effective receipt price.
func (l *Ledger) receive(ctx context.Context, tx Store, product Product, req MovementRequest) (Confirmation, error) {
	if req.Quantity > math.MaxInt64-product.Quantity {
		return Confirmation{}, &QuantityOverflowError{
			ProductID: product.ID,
			Current:   product.Quantity,
			Requested: req.Quantity,
		}
	}
	now := l.now()

	price := product.Price
	if req.UnitPrice.Valid {
		price = req.UnitPrice.Decimal
	}

	if _, err := tx.AppendPriceHistory(ctx, PriceHistoryEntry{
		ProductID: product.ID,
		Price:     price,
		Quantity:  req.Quantity,
		CreatedAt: now,
	}); err != nil {
		return Confirmation{}, StoreFailure("append price history", err)
	}

	history, err := tx.PriceHistory(ctx, product.ID)
	if err != nil {
		return Confirmation{}, StoreFailure("load price history", err)
	}
	avg, err := AverageCost(history)
	if err != nil {
		return Confirmation{}, err
	}

	product.Quantity += req.Quantity
	product.Price = price
	product.AvgPrice = avg
	product.UpdatedAt = now
	if err := tx.UpdateProduct(ctx, product); err != nil {
		return Confirmation{}, StoreFailure("update product", err)
	}

	mov := StockMovement{
		ProductID: product.ID,
		Kind:      Receipt,
		Quantity:  req.Quantity,
		Price:     Price(price),
		Remark:    req.Remark,
		CreatedAt: now,
	}
	return l.appendMovement(ctx, tx, mov, product)
}

// issue consumes stock at the existing average cost. Price and AvgPrice
// are left alone.
func (l *Ledger) issue(ctx context.Context, tx Store, product Product, req MovementRequest) (Confirmation, error) {
	if !req.UnitPrice.Valid {
		return Confirmation{}, ErrMissingSalePrice
	}

	// Snapshot before any write in this operation.
	costAtIssue := product.AvgPrice

	remaining := product.Quantity - req.Quantity
	if remaining < 0 {
		return Confirmation{}, &InsufficientStockError{
			ProductID: product.ID,
			Available: product.Quantity,
			Requested: req.Quantity,
		}
	}

	now := l.now()
	product.Quantity = remaining
	product.UpdatedAt = now
	if err := tx.UpdateProduct(ctx, product); err != nil {
		return Confirmation{}, StoreFailure("update product", err)
	}

	mov := StockMovement{
		ProductID:        product.ID,
		Kind:             Issue,
		Quantity:         req.Quantity,
		Price:            req.UnitPrice,
		CostPriceAtIssue: Price(costAtIssue),
		Remark:           req.Remark,
		CreatedAt:        now,
	}
	return l.appendMovement(ctx, tx, mov, product)
}

func (l *Ledger) appendMovement(ctx context.Context, tx Store, mov StockMovement, product Product) (Confirmation, error) {
	id, err := tx.AppendMovement(ctx, mov)
	if err != nil {
		return Confirmation{}, StoreFailure("append movement", err)
	}
	mov.ID = id
	return Confirmation{Movement: mov, Product: product}, nil
}
