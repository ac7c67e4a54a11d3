package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COSTING ENGINE - Weighted-average cost over price history
// =============================================================================

// AverageCost computes Σ(price × quantity) / Σ(quantity) over history,
// rounded to CostPlaces (half away from zero).
//
// An empty history yields ErrNoPriceHistory; a history whose quantities sum
// to zero yields ErrZeroHistoryQuantity. Neither is a store fault.
func AverageCost(history []PriceHistoryEntry) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, ErrNoPriceHistory
	}

	totalCost := decimal.Zero
	totalQty := decimal.Zero
	for _, e := range history {
		qty := decimal.NewFromInt(e.Quantity)
		totalCost = totalCost.Add(e.Price.Mul(qty))
		totalQty = totalQty.Add(qty)
	}
	if totalQty.IsZero() {
		return decimal.Zero, ErrZeroHistoryQuantity
	}
	return totalCost.Div(totalQty).Round(CostPlaces), nil
}

// AverageCost loads the price history for productID and computes its
// weighted-average cost. Store faults come back as ErrStoreFailure.
func (l *Ledger) AverageCost(ctx context.Context, productID ProductID) (decimal.Decimal, error) {
	history, err := l.store.PriceHistory(ctx, productID)
	if err != nil {
		return decimal.Zero, StoreFailure("load price history", err)
	}
	return AverageCost(history)
}
