/*
Package inventory provides the inventory ledger engine.

PURPOSE:
  This package holds the product catalog model, the stock movement ledger
  and the weighted-average costing rules. Presentation layers (CLI, export,
  any future UI) call into it through Ledger (writes) and Query (reads).

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: current on-hand state of one catalog item
  - StockMovement: an immutable receipt or issue record
  - PriceHistoryEntry: one (price, quantity) point feeding the cost basis
  - MovementKind: closed two-variant tag (Receipt, Issue)

DESIGN PRINCIPLES:
  1. Immutability: movements and price history are never edited.
     A correction is a new compensating movement.
  2. Precision: money uses decimal.Decimal, never float64.
  3. Back-references: movements and history point at a ProductID,
     the Product is looked up, never embedded.

USAGE:
  ledger := inventory.NewLedger(store)
  id, err := ledger.AddProduct(ctx, inventory.NewProduct{
      Name: "Widget", Quantity: 10, Price: decimal.RequireFromString("5.00"),
  })
  conf, err := ledger.RecordMovement(ctx, inventory.MovementRequest{
      ProductID: id, Kind: inventory.Receipt, Quantity: 5,
      UnitPrice: inventory.Price(decimal.RequireFromString("7.00")),
  })

SEE ALSO:
  - ledger.go: movement rules
  - costing.go: weighted-average cost
  - store.go: persistence interfaces
*/
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Display precision. Unit prices use two places, cost bases one.
const (
	PricePlaces int32 = 2
	CostPlaces  int32 = 1
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type MovementID string
type PriceHistoryID string

// =============================================================================
// MOVEMENT KIND - Closed two-variant tag
// =============================================================================

// MovementKind tells a receipt from an issue. The zero value is invalid.
type MovementKind int

const (
	Receipt MovementKind = iota + 1 // goods received, quantity goes up
	Issue                           // goods sold or consumed, quantity goes down
)

// Valid reports whether k is one of the declared kinds.
func (k MovementKind) Valid() bool {
	return k == Receipt || k == Issue
}

func (k MovementKind) String() string {
	switch k {
	case Receipt:
		return "receipt"
	case Issue:
		return "issue"
	default:
		return fmt.Sprintf("MovementKind(%d)", int(k))
	}
}

// ParseMovementKind accepts "receipt"/"in" and "issue"/"out".
func ParseMovementKind(s string) (MovementKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "receipt", "in":
		return Receipt, nil
	case "issue", "out":
		return Issue, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMovementKind, s)
}

// =============================================================================
// PRODUCT
// =============================================================================

type Product struct {
	ID          ProductID
	Name        string
	Quantity    int64
	Price       decimal.Decimal // reference price; last receipt price wins
	AvgPrice    decimal.Decimal // weighted-average cost over price history
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasHighAvgPrice reports whether the cost basis sits above the list price.
func (p Product) HasHighAvgPrice() bool {
	return p.AvgPrice.GreaterThan(p.Price)
}

// =============================================================================
// STOCK MOVEMENT - Immutable ledger entry
// =============================================================================

type StockMovement struct {
	ID               MovementID
	ProductID        ProductID
	Kind             MovementKind
	Quantity         int64
	Price            decimal.NullDecimal // receipt cost or sale price
	CostPriceAtIssue decimal.NullDecimal // avg cost frozen at issue time
	Remark           string
	CreatedAt        time.Time
}

// TotalPrice is price × quantity, absent when the movement has no price.
func (m StockMovement) TotalPrice() decimal.NullDecimal {
	if !m.Price.Valid {
		return decimal.NullDecimal{}
	}
	return Price(m.Price.Decimal.Mul(decimal.NewFromInt(m.Quantity)))
}

// Profit is (sale − cost) × quantity for issues carrying both prices.
func (m StockMovement) Profit() decimal.NullDecimal {
	if m.Kind != Issue || !m.Price.Valid || !m.CostPriceAtIssue.Valid {
		return decimal.NullDecimal{}
	}
	margin := m.Price.Decimal.Sub(m.CostPriceAtIssue.Decimal)
	return Price(margin.Mul(decimal.NewFromInt(m.Quantity)))
}

// =============================================================================
// PRICE HISTORY - Sole input of the costing engine
// =============================================================================

type PriceHistoryEntry struct {
	ID        PriceHistoryID
	ProductID ProductID
	Price     decimal.Decimal
	Quantity  int64
	CreatedAt time.Time
}

// Price wraps d as a present nullable decimal.
func Price(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
