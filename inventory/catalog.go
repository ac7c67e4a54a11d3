package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG - Product create / edit / delete
// =============================================================================

// NewProduct is the input to AddProduct.
type NewProduct struct {
	Name        string
	Quantity    int64
	Price       decimal.Decimal
	Description string
}

// ProductPatch is a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Quantity    *int64
	Price       *decimal.Decimal
	Description *string
}

// IsEmpty reports whether no field is set.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Quantity == nil && p.Price == nil && p.Description == nil
}

// AddProduct creates a product and seeds its price history with one
// (price, quantity) entry. AvgPrice starts equal to Price.
func (l *Ledger) AddProduct(ctx context.Context, in NewProduct) (ProductID, error) {
	in, err := in.normalize()
	if err != nil {
		return "", err
	}

	var id ProductID
	err = l.store.WithTx(ctx, func(tx Store) error {
		id, err = l.createProduct(ctx, tx, in)
		return err
	})
	if err != nil {
		return "", StoreFailure("add product", err)
	}
	return id, nil
}

// AddProducts creates every product in one transaction. All entries are
// validated before the first write; if any entry fails nothing is stored.
// Errors name the 1-based entry that failed.
func (l *Ledger) AddProducts(ctx context.Context, batch []NewProduct) ([]ProductID, error) {
	clean := make([]NewProduct, len(batch))
	for i, in := range batch {
		var err error
		if clean[i], err = in.normalize(); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, in.Name, err)
		}
	}

	ids := make([]ProductID, 0, len(clean))
	err := l.store.WithTx(ctx, func(tx Store) error {
		for i, in := range clean {
			id, err := l.createProduct(ctx, tx, in)
			if err != nil {
				return fmt.Errorf("entry %d (%s): %w", i+1, in.Name, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, StoreFailure("add products", err)
	}
	return ids, nil
}

// normalize trims the name and checks the fields AddProduct requires.
func (in NewProduct) normalize() (NewProduct, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrEmptyName
	}
	if in.Quantity < 0 {
		return in, ErrNegativeQuantity
	}
	if in.Price.IsNegative() {
		return in, ErrNegativePrice
	}
	return in, nil
}

func (l *Ledger) createProduct(ctx context.Context, tx Store, in NewProduct) (ProductID, error) {
	now := l.now()
	id, err := tx.CreateProduct(ctx, Product{
		Name:        in.Name,
		Quantity:    in.Quantity,
		Price:       in.Price,
		AvgPrice:    in.Price,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return "", StoreFailure("create product", err)
	}
	_, err = tx.AppendPriceHistory(ctx, PriceHistoryEntry{
		ProductID: id,
		Price:     in.Price,
		Quantity:  in.Quantity,
		CreatedAt: now,
	})
	if err != nil {
		return "", StoreFailure("append price history", err)
	}
	return id, nil
}

// UpdateProduct applies patch to product id. It returns false when the
// patch is empty. A price edit is treated as a manual cost correction: it
// appends a history entry at the (possibly also updated) quantity and
// re-derives AvgPrice.
func (l *Ledger) UpdateProduct(ctx context.Context, id ProductID, patch ProductPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return false, ErrEmptyName
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return false, ErrNegativeQuantity
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return false, ErrNegativePrice
	}

	err := l.store.WithTx(ctx, func(tx Store) error {
		product, err := tx.GetProduct(ctx, id)
		if err != nil {
			return StoreFailure("load product", err)
		}
		now := l.now()

		if patch.Name != nil {
			product.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Quantity != nil {
			product.Quantity = *patch.Quantity
		}
		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.Price != nil {
			product.Price = *patch.Price
			if _, err := tx.AppendPriceHistory(ctx, PriceHistoryEntry{
				ProductID: id,
				Price:     product.Price,
				Quantity:  product.Quantity,
				CreatedAt: now,
			}); err != nil {
				return StoreFailure("append price history", err)
			}
			history, err := tx.PriceHistory(ctx, id)
			if err != nil {
				return StoreFailure("load price history", err)
			}
			avg, err := AverageCost(history)
			switch {
			case errors.Is(err, ErrZeroHistoryQuantity):
				// Nothing has ever been stocked; fall back to the creation rule.
				avg = product.Price
			case err != nil:
				return err
			}
			product.AvgPrice = avg
		}

		product.UpdatedAt = now
		return StoreFailure("update product", tx.UpdateProduct(ctx, product))
	})
	if err != nil {
		return false, StoreFailure("update product", err)
	}
	return true, nil
}

// DeleteProduct removes a product and its price history. Products that
// are referenced by stock movements cannot be deleted; the movement log
// would otherwise point at nothing.
func (l *Ledger) DeleteProduct(ctx context.Context, id ProductID) (bool, error) {
	var deleted bool
	err := l.store.WithTx(ctx, func(tx Store) error {
		n, err := tx.CountMovements(ctx, id)
		if err != nil {
			return StoreFailure("count movements", err)
		}
		if n > 0 {
			return ErrProductHasMovements
		}
		if err := tx.DeletePriceHistory(ctx, id); err != nil {
			return StoreFailure("delete price history", err)
		}
		deleted, err = tx.DeleteProduct(ctx, id)
		return StoreFailure("delete product", err)
	})
	if err != nil {
		return false, StoreFailure("delete product", err)
	}
	return deleted, nil
}
