// Package store provides in-process Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/stockledger/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements inventory.TxStore. WithTx is simulated with a
// snapshot that is restored when fn fails.
type Memory struct {
	mu   sync.RWMutex
	data memoryData
	loc  *time.Location
}

type memoryData struct {
	products  map[inventory.ProductID]inventory.Product
	movements []inventory.StockMovement // insertion order
	history   []inventory.PriceHistoryEntry
}

// NewMemory returns an empty store reporting timestamps in time.Local.
func NewMemory() *Memory {
	return NewMemoryIn(time.Local)
}

// NewMemoryIn returns an empty store reporting timestamps in loc.
func NewMemoryIn(loc *time.Location) *Memory {
	if loc == nil {
		loc = time.Local
	}
	return &Memory{
		data: memoryData{products: make(map[inventory.ProductID]inventory.Product)},
		loc:  loc,
	}
}

var _ inventory.TxStore = (*Memory)(nil)

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) CreateProduct(_ context.Context, p inventory.Product) (inventory.ProductID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createProductLocked(p), nil
}

func (m *Memory) createProductLocked(p inventory.Product) inventory.ProductID {
	p.ID = inventory.ProductID(uuid.NewString())
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	m.data.products[p.ID] = p
	return p.ID
}

func (m *Memory) GetProduct(_ context.Context, id inventory.ProductID) (inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProductLocked(id)
}

func (m *Memory) getProductLocked(id inventory.ProductID) (inventory.Product, error) {
	p, ok := m.data.products[id]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return m.localProduct(p), nil
}

func (m *Memory) UpdateProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateProductLocked(p)
}

func (m *Memory) updateProductLocked(p inventory.Product) error {
	existing, ok := m.data.products[p.ID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = p.UpdatedAt.UTC()
	m.data.products[p.ID] = p
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id inventory.ProductID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteProductLocked(id), nil
}

func (m *Memory) deleteProductLocked(id inventory.ProductID) bool {
	if _, ok := m.data.products[id]; !ok {
		return false
	}
	delete(m.data.products, id)
	return true
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchProductsLocked(""), nil
}

func (m *Memory) SearchProducts(_ context.Context, keyword string) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchProductsLocked(keyword), nil
}

func (m *Memory) searchProductsLocked(keyword string) []inventory.Product {
	needle := foldASCII(keyword)
	var result []inventory.Product
	for _, p := range m.data.products {
		if needle == "" ||
			strings.Contains(foldASCII(p.Name), needle) ||
			strings.Contains(foldASCII(p.Description), needle) {
			result = append(result, m.localProduct(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// foldASCII lowercases A-Z only, matching SQLite's LIKE.
func foldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func (m *Memory) AppendMovement(_ context.Context, mov inventory.StockMovement) (inventory.MovementID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mov)
}

func (m *Memory) appendMovementLocked(mov inventory.StockMovement) (inventory.MovementID, error) {
	if _, ok := m.data.products[mov.ProductID]; !ok {
		return "", inventory.ErrProductNotFound
	}
	mov.ID = inventory.MovementID(uuid.NewString())
	mov.CreatedAt = mov.CreatedAt.UTC()
	m.data.movements = append(m.data.movements, mov)
	return mov.ID, nil
}

func (m *Memory) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listMovementsLocked(filter), nil
}

func (m *Memory) listMovementsLocked(filter inventory.MovementFilter) []inventory.StockMovement {
	var result []inventory.StockMovement
	// Walk backwards so equal timestamps keep newest-inserted first.
	for i := len(m.data.movements) - 1; i >= 0; i-- {
		mov := m.data.movements[i]
		if filter.Matches(mov) {
			mov.CreatedAt = mov.CreatedAt.In(m.loc)
			result = append(result, mov)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m *Memory) CountMovements(_ context.Context, productID inventory.ProductID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countMovementsLocked(productID), nil
}

func (m *Memory) countMovementsLocked(productID inventory.ProductID) int {
	n := 0
	for _, mov := range m.data.movements {
		if mov.ProductID == productID {
			n++
		}
	}
	return n
}

// =============================================================================
// PRICE HISTORY
// =============================================================================

func (m *Memory) AppendPriceHistory(_ context.Context, e inventory.PriceHistoryEntry) (inventory.PriceHistoryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendPriceHistoryLocked(e)
}

func (m *Memory) appendPriceHistoryLocked(e inventory.PriceHistoryEntry) (inventory.PriceHistoryID, error) {
	if _, ok := m.data.products[e.ProductID]; !ok {
		return "", inventory.ErrProductNotFound
	}
	e.ID = inventory.PriceHistoryID(uuid.NewString())
	e.CreatedAt = e.CreatedAt.UTC()
	m.data.history = append(m.data.history, e)
	return e.ID, nil
}

func (m *Memory) PriceHistory(_ context.Context, productID inventory.ProductID) ([]inventory.PriceHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.priceHistoryLocked(productID), nil
}

func (m *Memory) priceHistoryLocked(productID inventory.ProductID) []inventory.PriceHistoryEntry {
	var result []inventory.PriceHistoryEntry
	for _, e := range m.data.history {
		if e.ProductID == productID {
			e.CreatedAt = e.CreatedAt.In(m.loc)
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) DeletePriceHistory(_ context.Context, productID inventory.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletePriceHistoryLocked(productID)
	return nil
}

func (m *Memory) deletePriceHistoryLocked(productID inventory.ProductID) {
	kept := m.data.history[:0:0]
	for _, e := range m.data.history {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	m.data.history = kept
}

func (m *Memory) localProduct(p inventory.Product) inventory.Product {
	p.CreatedAt = p.CreatedAt.In(m.loc)
	p.UpdatedAt = p.UpdatedAt.In(m.loc)
	return p
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryView{parent: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() memoryData {
	products := make(map[inventory.ProductID]inventory.Product, len(m.data.products))
	for k, v := range m.data.products {
		products[k] = v
	}
	return memoryData{
		products:  products,
		movements: append([]inventory.StockMovement(nil), m.data.movements...),
		history:   append([]inventory.PriceHistoryEntry(nil), m.data.history...),
	}
}

// memoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it calls the *Locked variants directly.
type memoryView struct {
	parent *Memory
}

func (v *memoryView) CreateProduct(_ context.Context, p inventory.Product) (inventory.ProductID, error) {
	return v.parent.createProductLocked(p), nil
}

func (v *memoryView) GetProduct(_ context.Context, id inventory.ProductID) (inventory.Product, error) {
	return v.parent.getProductLocked(id)
}

func (v *memoryView) UpdateProduct(_ context.Context, p inventory.Product) error {
	return v.parent.updateProductLocked(p)
}

func (v *memoryView) DeleteProduct(_ context.Context, id inventory.ProductID) (bool, error) {
	return v.parent.deleteProductLocked(id), nil
}

func (v *memoryView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	return v.parent.searchProductsLocked(""), nil
}

func (v *memoryView) SearchProducts(_ context.Context, keyword string) ([]inventory.Product, error) {
	return v.parent.searchProductsLocked(keyword), nil
}

func (v *memoryView) AppendMovement(_ context.Context, mov inventory.StockMovement) (inventory.MovementID, error) {
	return v.parent.appendMovementLocked(mov)
}

func (v *memoryView) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	return v.parent.listMovementsLocked(filter), nil
}

func (v *memoryView) CountMovements(_ context.Context, productID inventory.ProductID) (int, error) {
	return v.parent.countMovementsLocked(productID), nil
}

func (v *memoryView) AppendPriceHistory(_ context.Context, e inventory.PriceHistoryEntry) (inventory.PriceHistoryID, error) {
	return v.parent.appendPriceHistoryLocked(e)
}

func (v *memoryView) PriceHistory(_ context.Context, productID inventory.ProductID) ([]inventory.PriceHistoryEntry, error) {
	return v.parent.priceHistoryLocked(productID), nil
}

func (v *memoryView) DeletePriceHistory(_ context.Context, productID inventory.ProductID) error {
	v.parent.deletePriceHistoryLocked(productID)
	return nil
}
