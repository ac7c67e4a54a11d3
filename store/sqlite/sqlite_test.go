package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stockledger/inventory"
	"github.com/warp/stockledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	store, err := sqlite.New(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var march10 = time.Date(2025, time.March, 10, 14, 30, 0, 123456789, time.UTC)

func product(name string) inventory.Product {
	return inventory.Product{
		Name:      name,
		Quantity:  3,
		Price:     decimal.RequireFromString("19.99"),
		AvgPrice:  decimal.RequireFromString("18.5"),
		CreatedAt: march10,
		UpdatedAt: march10,
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)
	_, err = store.AppendMovement(ctx, inventory.StockMovement{
		ProductID: id, Kind: inventory.Receipt, Quantity: 2,
		Price: inventory.Price(decimal.RequireFromString("7.10")), CreatedAt: march10,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	p, err := reopened.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)
	n, err := reopened.CountMovements(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DecimalsRoundTripExactly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)

	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")), p.Price.String())
	assert.True(t, p.AvgPrice.Equal(decimal.RequireFromString("18.5")), p.AvgPrice.String())
}

func TestStore_NullablePricesOnMovements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)

	_, err = store.AppendMovement(ctx, inventory.StockMovement{
		ProductID: id, Kind: inventory.Receipt, Quantity: 1, CreatedAt: march10,
	})
	require.NoError(t, err)

	movs, err := store.ListMovements(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.False(t, movs[0].Price.Valid)
	assert.False(t, movs[0].CostPriceAtIssue.Valid)
	assert.Equal(t, inventory.Receipt, movs[0].Kind)
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

func TestStore_ReturnsTimestampsInConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	store := newTestStore(t, sqlite.WithLocation(tokyo))
	ctx := context.Background()

	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)

	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.CreatedAt.Equal(march10), "same instant")
	assert.Equal(t, tokyo, p.CreatedAt.Location())
	assert.Equal(t, 23, p.CreatedAt.Hour())
}

func TestStore_MovementsNewestFirst_TiesByInsertion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)

	var ids []inventory.MovementID
	for _, at := range []time.Time{march10, march10.Add(time.Hour), march10.Add(time.Hour)} {
		mid, err := store.AppendMovement(ctx, inventory.StockMovement{
			ProductID: id, Kind: inventory.Receipt, Quantity: 1, CreatedAt: at,
		})
		require.NoError(t, err)
		ids = append(ids, mid)
	}

	movs, err := store.ListMovements(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movs, 3)
	assert.Equal(t, []inventory.MovementID{ids[2], ids[1], ids[0]},
		[]inventory.MovementID{movs[0].ID, movs[1].ID, movs[2].ID})
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestStore_AppendForUnknownProduct_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AppendMovement(ctx, inventory.StockMovement{
		ProductID: "missing", Kind: inventory.Issue, Quantity: 1, CreatedAt: march10,
	})
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)

	_, err = store.AppendPriceHistory(ctx, inventory.PriceHistoryEntry{
		ProductID: "missing", Price: decimal.NewFromInt(1), Quantity: 1, CreatedAt: march10,
	})
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestStore_UpdateUnknownProduct_NotFound(t *testing.T) {
	store := newTestStore(t)

	p := product("Ghost")
	p.ID = "missing"
	err := store.UpdateProduct(context.Background(), p)

	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestStore_RejectsNegativeQuantity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.CreateProduct(ctx, product("Widget"))
	require.NoError(t, err)

	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	p.Quantity = -1

	assert.Error(t, store.UpdateProduct(ctx, p), "CHECK constraint backs the engine invariant")
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx inventory.Store) error {
		if _, err := tx.CreateProduct(ctx, product("Doomed")); err != nil {
			return err
		}
		return inventory.ErrInsufficientStock
	})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestStore_WithTx_ReadsOwnWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx inventory.Store) error {
		id, err := tx.CreateProduct(ctx, product("Widget"))
		if err != nil {
			return err
		}
		_, err = tx.AppendPriceHistory(ctx, inventory.PriceHistoryEntry{
			ProductID: id, Price: decimal.NewFromInt(5), Quantity: 10, CreatedAt: march10,
		})
		if err != nil {
			return err
		}
		history, err := tx.PriceHistory(ctx, id)
		if err != nil {
			return err
		}
		assert.Len(t, history, 1)
		return nil
	})
	require.NoError(t, err)
}
