/*
Package report renders inventory values for people: localized numbers,
timestamps in the configured zone, and the fixed row layouts shared by the
terminal tables and spreadsheet exports.

PRECISION:
  Money is shown with 2 decimals, average cost with 1. Values are rounded
  as decimals first; the float conversion only feeds the locale printer.

ABSENT VALUES:
  A missing price, total or profit renders as "-".
*/
package report

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stockledger/inventory"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// TimeLayout is how timestamps appear in tables and exports.
const TimeLayout = "2006-01-02 15:04:05"

// Absent marks a value that does not exist for a row.
const Absent = "-"

// MovementHeaders are the column titles of a movement listing.
var MovementHeaders = []string{
	"Time", "Product", "Type", "Quantity", "Unit Price",
	"Cost Price", "Total", "Profit", "Remark",
}

// ProductHeaders are the column titles of a product listing.
var ProductHeaders = []string{"ID", "Name", "Quantity", "Price", "Description"}

// Formatter formats values for one language and time zone.
type Formatter struct {
	printer *message.Printer
	loc     *time.Location
}

// NewFormatter creates a Formatter. A nil loc means time.Local.
func NewFormatter(tag language.Tag, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{printer: message.NewPrinter(tag), loc: loc}
}

// Location is the zone timestamps are rendered in.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

func (f *Formatter) fixed(d decimal.Decimal, places int32) string {
	v := d.Round(places).InexactFloat64()
	return f.printer.Sprint(number.Decimal(v, number.Scale(int(places))))
}

// Money formats d with 2 decimals and locale grouping.
func (f *Formatter) Money(d decimal.Decimal) string {
	return f.fixed(d, inventory.PricePlaces)
}

// Cost formats an average cost with 1 decimal.
func (f *Formatter) Cost(d decimal.Decimal) string {
	return f.fixed(d, inventory.CostPlaces)
}

// OptionalMoney formats d, or Absent when it is null.
func (f *Formatter) OptionalMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return Absent
	}
	return f.Money(d.Decimal)
}

// OptionalCost formats d with cost precision, or Absent when it is null.
func (f *Formatter) OptionalCost(d decimal.NullDecimal) string {
	if !d.Valid {
		return Absent
	}
	return f.Cost(d.Decimal)
}

// Quantity formats a unit count with locale grouping.
func (f *Formatter) Quantity(n int64) string {
	return f.printer.Sprint(number.Decimal(n))
}

// Time renders t in the formatter's zone.
func (f *Formatter) Time(t time.Time) string {
	if t.IsZero() {
		return Absent
	}
	return t.In(f.loc).Format(TimeLayout)
}

// PriceDisplay shows the list price, followed by the average cost when the
// two differ, e.g. "5.00 (avg 5.7)".
func (f *Formatter) PriceDisplay(p inventory.Product) string {
	price := f.Money(p.Price)
	if p.AvgPrice.Equal(p.Price) {
		return price
	}
	return price + " (avg " + f.Cost(p.AvgPrice) + ")"
}

// KindLabel is the display name of a movement kind.
func KindLabel(k inventory.MovementKind) string {
	switch k {
	case inventory.Receipt:
		return "Receipt"
	case inventory.Issue:
		return "Issue"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ProductRow lays out p under ProductHeaders.
func (f *Formatter) ProductRow(p inventory.Product) []string {
	desc := p.Description
	if desc == "" {
		desc = Absent
	}
	return []string{
		string(p.ID),
		p.Name,
		f.Quantity(p.Quantity),
		f.PriceDisplay(p),
		desc,
	}
}

// MovementRow lays out v under MovementHeaders.
func (f *Formatter) MovementRow(v inventory.MovementView) []string {
	remark := v.Remark
	if remark == "" {
		remark = Absent
	}
	return []string{
		f.Time(v.CreatedAt),
		v.ProductName,
		KindLabel(v.Kind),
		f.Quantity(v.Quantity),
		f.OptionalMoney(v.Price),
		f.OptionalCost(v.CostPriceAtIssue),
		f.OptionalMoney(v.TotalPrice),
		f.OptionalMoney(v.Profit),
		remark,
	}
}

// ProfitSummary is the footer line of an issue listing.
func (f *Formatter) ProfitSummary(views []inventory.MovementView) string {
	return "Total profit: " + f.Money(inventory.SumProfit(views))
}
