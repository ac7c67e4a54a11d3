package inventory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY SERVICE - Read-side projections
// =============================================================================

// Query serves read-only views over the store. It never writes.
type Query struct {
	store Store
}

// NewQuery creates a query service over the same store the Ledger uses.
func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// MovementView is a movement joined with its product's current name and
// derived totals.
type MovementView struct {
	StockMovement
	ProductName string
	TotalPrice  decimal.NullDecimal
	Profit      decimal.NullDecimal
}

// ListProducts returns all products sorted by name.
func (q *Query) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := q.store.ListProducts(ctx)
	if err != nil {
		return nil, StoreFailure("list products", err)
	}
	return products, nil
}

// GetProduct returns ErrProductNotFound for an unknown id.
func (q *Query) GetProduct(ctx context.Context, id ProductID) (Product, error) {
	p, err := q.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, StoreFailure("get product", err)
	}
	return p, nil
}

// SearchProducts finds products whose name or description contains
// keyword. A blank keyword lists everything.
func (q *Query) SearchProducts(ctx context.Context, keyword string) ([]Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return q.ListProducts(ctx)
	}
	products, err := q.store.SearchProducts(ctx, keyword)
	if err != nil {
		return nil, StoreFailure("search products", err)
	}
	return products, nil
}

// ListMovements returns movements matching filter, newest first.
// Movements whose product no longer exists are dropped.
func (q *Query) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementView, error) {
	movements, err := q.store.ListMovements(ctx, filter)
	if err != nil {
		return nil, StoreFailure("list movements", err)
	}
	products, err := q.store.ListProducts(ctx)
	if err != nil {
		return nil, StoreFailure("list products", err)
	}

	names := make(map[ProductID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	views := make([]MovementView, 0, len(movements))
	for _, m := range movements {
		name, ok := names[m.ProductID]
		if !ok {
			continue
		}
		views = append(views, MovementView{
			StockMovement: m,
			ProductName:   name,
			TotalPrice:    m.TotalPrice(),
			Profit:        m.Profit(),
		})
	}
	return views, nil
}

// SumProfit totals the profit of views. Views without a profit count as zero.
func SumProfit(views []MovementView) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		if v.Profit.Valid {
			total = total.Add(v.Profit.Decimal)
		}
	}
	return total
}
