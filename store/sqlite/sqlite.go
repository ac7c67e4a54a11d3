/*
Package sqlite provides a SQLite-backed implementation of inventory.TxStore.

PURPOSE:
  Durable, single-file storage for the inventory ledger. The whole
  database is one local file; use ":memory:" for tests.

KEY TABLES:
  products:        Current product state (mutable)
  stock_movements: Immutable receipts and issues
  price_history:   Append-only (price, quantity) points for costing

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on stock_movements or price_history
  - price_history rows are deleted only together with their product,
    and only when no stock_movements reference it
  - Foreign keys keep movements and history pointing at real products

MONEY:
  Decimals are stored as TEXT (decimal.Decimal.String()) so no value
  ever round-trips through float64.

TIMESTAMPS:
  Stored as fixed-width UTC text, which sorts lexicographically in time
  order. Converted to the configured location on read.

CONCURRENCY:
  Single process, single writer. A mutex serializes access and the pool
  is capped at one connection, so ":memory:" databases stay visible
  across calls and WithTx holds the only handle for its whole callback.

USAGE:
  store, err := sqlite.New("./inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := inventory.NewLedger(store)
  query := inventory.NewQuery(store)

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/stockledger/inventory"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	loc *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the time zone timestamps are returned in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

var _ inventory.TxStore = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, loc: time.Local}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		price TEXT NOT NULL,
		avg_price TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_name
		ON products(name);

	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		kind TEXT NOT NULL CHECK (kind IN ('receipt', 'issue')),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price TEXT,
		cost_price_at_issue TEXT,
		remark TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_created
		ON stock_movements(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_movements_product_created
		ON stock_movements(product_id, created_at DESC);

	-- Price history (costing input, append-only)
	CREATE TABLE IF NOT EXISTS price_history (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_product
		ON price_history(product_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ENTRY POINTS (inventory.Store interface)
// =============================================================================

func (s *Store) conn() *ops {
	return &ops{q: s.db, loc: s.loc}
}

func (s *Store) CreateProduct(ctx context.Context, p inventory.Product) (inventory.ProductID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().CreateProduct(ctx, p)
}

func (s *Store) GetProduct(ctx context.Context, id inventory.ProductID) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().GetProduct(ctx, id)
}

func (s *Store) UpdateProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().UpdateProduct(ctx, p)
}

func (s *Store) DeleteProduct(ctx context.Context, id inventory.ProductID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().DeleteProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().ListProducts(ctx)
}

func (s *Store) SearchProducts(ctx context.Context, keyword string) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().SearchProducts(ctx, keyword)
}

func (s *Store) AppendMovement(ctx context.Context, m inventory.StockMovement) (inventory.MovementID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().AppendMovement(ctx, m)
}

func (s *Store) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().ListMovements(ctx, filter)
}

func (s *Store) CountMovements(ctx context.Context, productID inventory.ProductID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().CountMovements(ctx, productID)
}

func (s *Store) AppendPriceHistory(ctx context.Context, e inventory.PriceHistoryEntry) (inventory.PriceHistoryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().AppendPriceHistory(ctx, e)
}

func (s *Store) PriceHistory(ctx context.Context, productID inventory.ProductID) ([]inventory.PriceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().PriceHistory(ctx, productID)
}

func (s *Store) DeletePriceHistory(ctx context.Context, productID inventory.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn().DeletePriceHistory(ctx, productID)
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&ops{q: sqlTx, loc: s.loc}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by the pooled handle and open transactions
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops runs statements against q without locking; callers hold Store.mu.
type ops struct {
	q   querier
	loc *time.Location
}

const productColumns = `id, name, quantity, price, avg_price, description, created_at, updated_at`

func (o *ops) CreateProduct(ctx context.Context, p inventory.Product) (inventory.ProductID, error) {
	id := inventory.ProductID(uuid.NewString())

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := o.q.ExecContext(ctx, query,
		id, p.Name, p.Quantity, p.Price, p.AvgPrice, p.Description,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

func (o *ops) GetProduct(ctx context.Context, id inventory.ProductID) (inventory.Product, error) {
	rows, err := o.q.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return inventory.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	products, err := o.scanProducts(rows)
	if err != nil {
		return inventory.Product{}, err
	}
	if len(products) == 0 {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return products[0], nil
}

func (o *ops) UpdateProduct(ctx context.Context, p inventory.Product) error {
	query := `
		UPDATE products
		SET name = ?, quantity = ?, price = ?, avg_price = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := o.q.ExecContext(ctx, query,
		p.Name, p.Quantity, p.Price, p.AvgPrice, p.Description,
		formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

func (o *ops) DeleteProduct(ctx context.Context, id inventory.ProductID) (bool, error) {
	res, err := o.q.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return n > 0, nil
}

func (o *ops) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	rows, err := o.q.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return o.scanProducts(rows)
}

// SearchProducts uses LIKE, which is case-insensitive for ASCII only.
func (o *ops) SearchProducts(ctx context.Context, keyword string) ([]inventory.Product, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		ORDER BY name, id
	`
	rows, err := o.q.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return o.scanProducts(rows)
}

func (o *ops) scanProducts(rows *sql.Rows) ([]inventory.Product, error) {
	defer rows.Close()

	var products []inventory.Product
	for rows.Next() {
		var (
			p                    inventory.Product
			createdAt, updatedAt string
		)
		err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.Price, &p.AvgPrice,
			&p.Description, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.CreatedAt, err = o.parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = o.parseTime(updatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (o *ops) AppendMovement(ctx context.Context, m inventory.StockMovement) (inventory.MovementID, error) {
	id := inventory.MovementID(uuid.NewString())

	query := `
		INSERT INTO stock_movements
		(id, product_id, kind, quantity, price, cost_price_at_issue, remark, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := o.q.ExecContext(ctx, query,
		id, m.ProductID, m.Kind.String(), m.Quantity,
		m.Price, m.CostPriceAtIssue, m.Remark, formatTime(m.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return "", inventory.ErrProductNotFound
		}
		return "", fmt.Errorf("failed to append movement: %w", err)
	}
	return id, nil
}

func (o *ops) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProductID != nil {
		where = append(where, "product_id = ?")
		args = append(args, *filter.ProductID)
	}
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind.String())
	}

	query := `
		SELECT id, product_id, kind, quantity, price, cost_price_at_issue, remark, created_at
		FROM stock_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []inventory.StockMovement
	for rows.Next() {
		var (
			m         inventory.StockMovement
			kind      string
			createdAt string
		)
		err := rows.Scan(&m.ID, &m.ProductID, &kind, &m.Quantity,
			&m.Price, &m.CostPriceAtIssue, &m.Remark, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		if m.Kind, err = inventory.ParseMovementKind(kind); err != nil {
			return nil, fmt.Errorf("failed to scan movement %s: %w", m.ID, err)
		}
		if m.CreatedAt, err = o.parseTime(createdAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (o *ops) CountMovements(ctx context.Context, productID inventory.ProductID) (int, error) {
	var count int
	err := o.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stock_movements WHERE product_id = ?", productID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}
	return count, nil
}

func (o *ops) AppendPriceHistory(ctx context.Context, e inventory.PriceHistoryEntry) (inventory.PriceHistoryID, error) {
	id := inventory.PriceHistoryID(uuid.NewString())

	_, err := o.q.ExecContext(ctx, `
		INSERT INTO price_history (id, product_id, price, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, e.ProductID, e.Price, e.Quantity, formatTime(e.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return "", inventory.ErrProductNotFound
		}
		return "", fmt.Errorf("failed to append price history: %w", err)
	}
	return id, nil
}

func (o *ops) PriceHistory(ctx context.Context, productID inventory.ProductID) ([]inventory.PriceHistoryEntry, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT id, product_id, price, quantity, created_at
		FROM price_history
		WHERE product_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var history []inventory.PriceHistoryEntry
	for rows.Next() {
		var (
			e         inventory.PriceHistoryEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.Quantity, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		if e.CreatedAt, err = o.parseTime(createdAt); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func (o *ops) DeletePriceHistory(ctx context.Context, productID inventory.ProductID) error {
	_, err := o.q.ExecContext(ctx, "DELETE FROM price_history WHERE product_id = ?", productID)
	if err != nil {
		return fmt.Errorf("failed to delete price history: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (o *ops) parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.In(o.loc), nil
}

// escapeLike escapes LIKE wildcards so keyword matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
