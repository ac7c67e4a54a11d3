package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stockledger/config"
	"github.com/warp/stockledger/export"
	"github.com/warp/stockledger/inventory"
	"github.com/warp/stockledger/logging"
	"github.com/warp/stockledger/report"
	"github.com/warp/stockledger/store/sqlite"
	"gopkg.in/yaml.v3"
)

const (
	exitOK       = 0
	exitRejected = 1
	exitFailure  = 2
)

var errUsage = errors.New("invalid usage")

const usageText = `usage: inventory [-config FILE] [-db PATH] COMMAND [FLAGS]

commands:
  add        create a product
  update     edit a product
  delete     remove a product without movements
  receive    record a stock receipt
  issue      record a stock issue
  products   list all products
  search     find products by name or description
  movements  list stock movements, newest first
  cost       show the weighted-average cost of a product
  export     write receipts or issues to an .xlsx file
  seed       add products from a YAML catalog (all or nothing)

Run "inventory COMMAND -h" for command flags.
`

type app struct {
	cfg    *config.Config
	ledger *inventory.Ledger
	query  *inventory.Query
	format *report.Formatter
	log    *logging.Logger
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

type command func(ctx context.Context, args []string) error

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("inventory", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usageText) }
	configPath := global.String("config", "", "YAML config file")
	dbPath := global.String("db", "", "SQLite database path (overrides db.path)")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	logger := logging.New(logging.Config{
		Env: cfg.App.Env, Level: cfg.Log.Level, Name: cfg.App.Name, Out: stderr,
	})
	loc, err := cfg.Locale.Location()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}

	logger.Debug().Str("db", cfg.DB.Path).Str("tz", loc.String()).Msg("opening ledger")
	store, err := sqlite.New(cfg.DB.Path, sqlite.WithLocation(loc))
	if err != nil {
		logger.Error().Err(err).Str("db", cfg.DB.Path).Msg("failed to open database")
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	defer store.Close()

	a := &app{
		cfg:    cfg,
		ledger: inventory.NewLedger(store),
		query:  inventory.NewQuery(store),
		format: report.NewFormatter(cfg.Locale.Tag(), loc),
		log:    logger,
		out:    stdout,
		errOut: stderr,
		now:    time.Now,
	}
	return a.exit(a.dispatch(ctx, global.Arg(0), global.Args()[1:]))
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	commands := map[string]command{
		"add":       a.add,
		"update":    a.update,
		"delete":    a.remove,
		"receive":   a.record("receive", inventory.Receipt),
		"issue":     a.record("issue", inventory.Issue),
		"products":  a.products,
		"search":    a.search,
		"movements": a.movements,
		"cost":      a.cost,
		"export":    a.export,
		"seed":      a.seed,
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", name, usageText)
		return errUsage
	}
	a.log = a.log.Child(name)
	return cmd(ctx, args)
}

// exit reports err and maps it to a process exit code.
func (a *app) exit(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintln(a.errOut, "error:", err)
		}
		return exitFailure
	case isRejection(err):
		a.log.Warn().Err(err).Msg("request rejected")
		fmt.Fprintln(a.errOut, "error:", err)
		return exitRejected
	default:
		a.log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(a.errOut, "error:", err)
		return exitFailure
	}
}

func isRejection(err error) bool {
	return inventory.IsClientError(err) ||
		inventory.IsNotFound(err) ||
		errors.Is(err, inventory.ErrNoPriceHistory) ||
		errors.Is(err, inventory.ErrZeroHistoryQuantity) ||
		errors.Is(err, export.ErrNoRecords)
}

// =============================================================================
// FLAG HELPERS
// =============================================================================

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func required(fs *flag.FlagSet, names ...string) error {
	set := visited(fs)
	for _, n := range names {
		if !set[n] {
			fmt.Fprintf(fs.Output(), "%s: -%s is required\n", fs.Name(), n)
			return errUsage
		}
	}
	return nil
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", s, errUsage)
	}
	return d, nil
}

func (a *app) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// =============================================================================
// CATALOG COMMANDS
// =============================================================================

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	name := fs.String("name", "", "product name")
	qty := fs.Int64("qty", 0, "opening quantity")
	price := fs.String("price", "", "unit price")
	desc := fs.String("desc", "", "description")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "name", "price"); err != nil {
		return err
	}
	p, err := parseMoney(*price)
	if err != nil {
		return err
	}

	id, err := a.ledger.AddProduct(ctx, inventory.NewProduct{
		Name: *name, Quantity: *qty, Price: p, Description: *desc,
	})
	if err != nil {
		return err
	}
	a.log.Info().Str("product_id", string(id)).Msg("product added")
	fmt.Fprintf(a.out, "Added product %s\n", id)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := a.flags("update")
	id := fs.String("id", "", "product ID")
	name := fs.String("name", "", "new name")
	qty := fs.Int64("qty", 0, "corrected quantity")
	price := fs.String("price", "", "corrected price")
	desc := fs.String("desc", "", "new description")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}

	var patch inventory.ProductPatch
	set := visited(fs)
	if set["name"] {
		patch.Name = name
	}
	if set["qty"] {
		patch.Quantity = qty
	}
	if set["desc"] {
		patch.Description = desc
	}
	if set["price"] {
		p, err := parseMoney(*price)
		if err != nil {
			return err
		}
		patch.Price = &p
	}

	ok, err := a.ledger.UpdateProduct(ctx, inventory.ProductID(*id), patch)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}
	a.log.Info().Str("product_id", *id).Msg("product updated")
	fmt.Fprintf(a.out, "Updated product %s\n", *id)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := a.flags("delete")
	id := fs.String("id", "", "product ID")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}

	ok, err := a.ledger.DeleteProduct(ctx, inventory.ProductID(*id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", *id, inventory.ErrProductNotFound)
	}
	a.log.Info().Str("product_id", *id).Msg("product deleted")
	fmt.Fprintf(a.out, "Deleted product %s\n", *id)
	return nil
}

// =============================================================================
// MOVEMENT COMMANDS
// =============================================================================

func (a *app) record(name string, kind inventory.MovementKind) command {
	return func(ctx context.Context, args []string) error {
		fs := a.flags(name)
		id := fs.String("id", "", "product ID")
		qty := fs.Int64("qty", 0, "units moved")
		price := fs.String("price", "", "unit price")
		remark := fs.String("remark", "", "free-text note")
		if err := parse(fs, args); err != nil {
			return err
		}
		if err := required(fs, "id", "qty"); err != nil {
			return err
		}

		req := inventory.MovementRequest{
			ProductID: inventory.ProductID(*id),
			Kind:      kind,
			Quantity:  *qty,
			Remark:    *remark,
		}
		if visited(fs)["price"] {
			p, err := parseMoney(*price)
			if err != nil {
				return err
			}
			req.UnitPrice = inventory.Price(p)
		}

		conf, err := a.ledger.RecordMovement(ctx, req)
		if err != nil {
			return err
		}

		m, p := conf.Movement, conf.Product
		a.log.Info().
			Str("movement_id", string(m.ID)).
			Str("product_id", string(p.ID)).
			Str("kind", m.Kind.String()).
			Int64("quantity", m.Quantity).
			Msg("movement recorded")

		fmt.Fprintf(a.out, "Recorded %s of %s x %s at %s\n",
			strings.ToLower(report.KindLabel(m.Kind)), a.format.Quantity(m.Quantity), p.Name,
			a.format.OptionalMoney(m.Price))
		fmt.Fprintf(a.out, "Stock: %s  Price: %s\n",
			a.format.Quantity(p.Quantity), a.format.PriceDisplay(p))
		if profit := m.Profit(); profit.Valid {
			fmt.Fprintf(a.out, "Profit: %s\n", a.format.Money(profit.Decimal))
		}
		return nil
	}
}

func (a *app) movements(ctx context.Context, args []string) error {
	fs := a.flags("movements")
	productID := fs.String("product", "", "only this product ID")
	kindName := fs.String("kind", "", "receipt or issue")
	if err := parse(fs, args); err != nil {
		return err
	}

	var filter inventory.MovementFilter
	if *productID != "" {
		id := inventory.ProductID(*productID)
		filter.ProductID = &id
	}
	if *kindName != "" {
		kind, err := inventory.ParseMovementKind(*kindName)
		if err != nil {
			return err
		}
		filter.Kind = &kind
	}

	views, err := a.query.ListMovements(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([][]string, len(views))
	hasIssues := false
	for i, v := range views {
		rows[i] = a.format.MovementRow(v)
		hasIssues = hasIssues || v.Kind == inventory.Issue
	}
	if err := a.table(report.MovementHeaders, rows); err != nil {
		return err
	}
	if hasIssues {
		fmt.Fprintln(a.out, a.format.ProfitSummary(views))
	}
	return nil
}

// =============================================================================
// QUERY COMMANDS
// =============================================================================

func (a *app) products(ctx context.Context, args []string) error {
	fs := a.flags("products")
	if err := parse(fs, args); err != nil {
		return err
	}
	products, err := a.query.ListProducts(ctx)
	if err != nil {
		return err
	}
	return a.productTable(products)
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := a.flags("search")
	if err := parse(fs, args); err != nil {
		return err
	}
	products, err := a.query.SearchProducts(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	return a.productTable(products)
}

// productTable marks products whose average cost exceeds the list price.
func (a *app) productTable(products []inventory.Product) error {
	rows := make([][]string, len(products))
	flagged := false
	for i, p := range products {
		rows[i] = a.format.ProductRow(p)
		if p.HasHighAvgPrice() {
			rows[i][1] += " *"
			flagged = true
		}
	}
	if err := a.table(report.ProductHeaders, rows); err != nil {
		return err
	}
	if flagged {
		fmt.Fprintln(a.out, "* average cost above list price")
	}
	return nil
}

func (a *app) cost(ctx context.Context, args []string) error {
	fs := a.flags("cost")
	id := fs.String("id", "", "product ID")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}

	p, err := a.query.GetProduct(ctx, inventory.ProductID(*id))
	if err != nil {
		return err
	}
	avg, err := a.ledger.AverageCost(ctx, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: average cost %s (list price %s)\n",
		p.Name, a.format.Cost(avg), a.format.Money(p.Price))
	return nil
}

// =============================================================================
// FILE COMMANDS
// =============================================================================

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	kindName := fs.String("kind", "", "receipt or issue")
	out := fs.String("out", "", "output .xlsx path (default: export.dir/<kind>_<timestamp>.xlsx)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "kind"); err != nil {
		return err
	}
	kind, err := inventory.ParseMovementKind(*kindName)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(a.cfg.Export.Dir, export.DefaultFileName(kind, a.now().In(a.format.Location())))
	}

	views, err := a.query.ListMovements(ctx, inventory.MovementFilter{Kind: &kind})
	if err != nil {
		return err
	}
	if err := export.SaveMovements(path, views, kind, a.format); err != nil {
		return err
	}
	a.log.Info().Str("path", path).Int("records", len(views)).Msg("export written")
	fmt.Fprintf(a.out, "Exported %d %s records to %s\n", len(views), kind, path)
	return nil
}

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

// seedProduct keeps price as text so decimals are parsed exactly.
type seedProduct struct {
	Name        string `yaml:"name"`
	Quantity    int64  `yaml:"quantity"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
}

func (a *app) seed(ctx context.Context, args []string) error {
	fs := a.flags("seed")
	file := fs.String("file", "", "YAML catalog")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "file"); err != nil {
		return err
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	var catalog seedFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", *file, err)
	}

	batch := make([]inventory.NewProduct, len(catalog.Products))
	for i, sp := range catalog.Products {
		price, err := parseMoney(sp.Price)
		if err != nil {
			return fmt.Errorf("catalog entry %d (%s): %w", i+1, sp.Name, err)
		}
		batch[i] = inventory.NewProduct{
			Name: sp.Name, Quantity: sp.Quantity, Price: price, Description: sp.Description,
		}
	}

	ids, err := a.ledger.AddProducts(ctx, batch)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", *file, err)
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = strings.TrimSpace(batch[i].Name)
		a.log.Debug().Str("product_id", string(id)).Str("name", names[i]).Msg("seeded product")
	}

	sort.Strings(names)
	fmt.Fprintf(a.out, "Seeded %d products: %s\n", len(names), strings.Join(names, ", "))
	return nil
}
