package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stockledger/inventory"
)

func seedCatalog(t *testing.T, l *inventory.Ledger) map[string]inventory.ProductID {
	t.Helper()
	ids := make(map[string]inventory.ProductID)
	for _, p := range []inventory.NewProduct{
		{Name: "Widget", Quantity: 10, Price: dec("5.00"), Description: "standard part"},
		{Name: "Bolt", Quantity: 100, Price: dec("0.20"), Description: "M6 steel"},
		{Name: "Anchor", Quantity: 5, Price: dec("12.00"), Description: "fits a WIDGET mount"},
	} {
		id, err := l.AddProduct(context.Background(), p)
		require.NoError(t, err)
		ids[p.Name] = id
	}
	return ids
}

func names(products []inventory.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

// =============================================================================
// PRODUCT QUERIES
// =============================================================================

func TestQuery_ListProducts_SortedByName(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		seedCatalog(t, newLedger(s))
		query := inventory.NewQuery(s)

		products, err := query.ListProducts(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"Anchor", "Bolt", "Widget"}, names(products))
	})
}

func TestQuery_ListProducts_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		seedCatalog(t, newLedger(s))
		query := inventory.NewQuery(s)
		ctx := context.Background()

		first, err := query.ListProducts(ctx)
		require.NoError(t, err)
		second, err := query.ListProducts(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

func TestQuery_SearchProducts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		seedCatalog(t, newLedger(s))
		query := inventory.NewQuery(s)
		ctx := context.Background()

		tests := []struct {
			keyword string
			want    []string
		}{
			{"widget", []string{"Anchor", "Widget"}}, // name or description, any case
			{"olt", []string{"Bolt"}},                // substring, not token
			{"steel", []string{"Bolt"}},
			{"nothing", []string{}},
			{"  ", []string{"Anchor", "Bolt", "Widget"}}, // blank lists all
			{"%", []string{}},                            // wildcards are literal
		}

		for _, tt := range tests {
			t.Run(tt.keyword, func(t *testing.T) {
				products, err := query.SearchProducts(ctx, tt.keyword)
				require.NoError(t, err)
				assert.Equal(t, tt.want, names(products))
			})
		}
	})
}

func TestQuery_SearchProducts_FoldsASCIIOnly(t *testing.T) {
	// Both stores fold A-Z only; other letters must match case exactly.
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		_, err := newLedger(s).AddProduct(context.Background(), inventory.NewProduct{
			Name: "Äpfel", Quantity: 1, Price: dec("2.00"),
		})
		require.NoError(t, err)
		query := inventory.NewQuery(s)

		tests := []struct {
			keyword string
			want    []string
		}{
			{"äpfel", []string{}},
			{"Äpfel", []string{"Äpfel"}},
			{"ÄPFEL", []string{"Äpfel"}},
			{"PFEL", []string{"Äpfel"}},
		}
		for _, tt := range tests {
			t.Run(tt.keyword, func(t *testing.T) {
				products, err := query.SearchProducts(context.Background(), tt.keyword)
				require.NoError(t, err)
				assert.Equal(t, tt.want, names(products))
			})
		}
	})
}

func TestQuery_GetProduct_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		_, err := inventory.NewQuery(s).GetProduct(context.Background(), "missing")

		assert.ErrorIs(t, err, inventory.ErrProductNotFound)
		assert.NotErrorIs(t, err, inventory.ErrStoreFailure)
	})
}

// =============================================================================
// MOVEMENT QUERIES
// =============================================================================

func TestQuery_ListMovements_NewestFirstWithDerivedTotals(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		ledger := newLedger(s)
		ids := seedCatalog(t, ledger)
		widget, bolt := ids["Widget"], ids["Bolt"]

		receive(t, ledger, widget, 5, "7.00")
		issue(t, ledger, widget, 3, "9.00")
		issue(t, ledger, bolt, 10, "0.50")

		views, err := inventory.NewQuery(s).ListMovements(context.Background(), inventory.MovementFilter{})
		require.NoError(t, err)
		require.Len(t, views, 3)

		assert.Equal(t, "Bolt", views[0].ProductName)
		assert.Equal(t, "Widget", views[1].ProductName)
		assert.Equal(t, inventory.Issue, views[1].Kind)
		assert.Equal(t, inventory.Receipt, views[2].Kind)

		widgetSale := views[1]
		assertDecimal(t, "27.00", widgetSale.TotalPrice.Decimal)
		require.True(t, widgetSale.Profit.Valid)
		assertDecimal(t, "9.9", widgetSale.Profit.Decimal)

		receipt := views[2]
		assertDecimal(t, "35.00", receipt.TotalPrice.Decimal)
		assert.False(t, receipt.Profit.Valid, "receipts have no profit")

		// Bolt: (0.50 - 0.2) * 10 = 3.0
		assertDecimal(t, "3.0", views[0].Profit.Decimal)
		assertDecimal(t, "12.9", inventory.SumProfit(views))
	})
}

func TestQuery_ListMovements_Filters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		ledger := newLedger(s)
		ids := seedCatalog(t, ledger)
		widget, bolt := ids["Widget"], ids["Bolt"]

		receive(t, ledger, widget, 5, "7.00")
		issue(t, ledger, widget, 3, "9.00")
		receive(t, ledger, bolt, 50, "0.18")

		query := inventory.NewQuery(s)
		ctx := context.Background()

		byProduct, err := query.ListMovements(ctx, inventory.MovementFilter{ProductID: &widget})
		require.NoError(t, err)
		assert.Len(t, byProduct, 2)

		receipts := inventory.Receipt
		byKind, err := query.ListMovements(ctx, inventory.MovementFilter{Kind: &receipts})
		require.NoError(t, err)
		require.Len(t, byKind, 2)
		assert.Equal(t, "Bolt", byKind[0].ProductName)
		assert.True(t, inventory.SumProfit(byKind).IsZero())

		issues := inventory.Issue
		both, err := query.ListMovements(ctx, inventory.MovementFilter{ProductID: &bolt, Kind: &issues})
		require.NoError(t, err)
		assert.Empty(t, both)
	})
}

func TestQuery_ListMovements_ReflectsCurrentProductName(t *testing.T) {
	forEachStore(t, func(t *testing.T, s inventory.TxStore) {
		ctx := context.Background()
		ledger := newLedger(s)
		id := addWidget(t, ledger)
		receive(t, ledger, id, 1, "5.00")

		_, err := ledger.UpdateProduct(ctx, id, inventory.ProductPatch{Name: ptr("Sprocket")})
		require.NoError(t, err)

		views, err := inventory.NewQuery(s).ListMovements(ctx, inventory.MovementFilter{})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "Sprocket", views[0].ProductName)
	})
}

func TestSumProfit_IgnoresMovementsWithoutPrices(t *testing.T) {
	views := []inventory.MovementView{
		{StockMovement: inventory.StockMovement{Kind: inventory.Issue, Quantity: 2}},
		{Profit: price("1.5")},
		{Profit: price("-0.5")},
	}

	assertDecimal(t, "1.0", inventory.SumProfit(views))
}
