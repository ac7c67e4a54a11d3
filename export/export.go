// Package export writes movement listings to .xlsx workbooks.
//
// One workbook holds one movement kind. Numbers are written as numeric
// cells so the sheet stays usable for further calculation; absent values
// are written as "-".
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stockledger/inventory"
	"github.com/warp/stockledger/report"
	"github.com/xuri/excelize/v2"
)

// ErrNoRecords is returned when there is nothing of the requested kind to export.
var ErrNoRecords = errors.New("no records to export")

const (
	moneyFormat = 2 // built-in "0.00"
	colWidth    = 16
)

// SheetName is the worksheet title for a movement kind.
func SheetName(kind inventory.MovementKind) string {
	if kind == inventory.Issue {
		return "Issues"
	}
	return "Receipts"
}

// DefaultFileName is e.g. "issues_20250310_090000.xlsx".
func DefaultFileName(kind inventory.MovementKind, now time.Time) string {
	return strings.ToLower(SheetName(kind)) + "_" + now.Format("20060102_150405") + ".xlsx"
}

// WriteMovements writes the views of the given kind as a workbook to w.
// Views of any other kind are skipped. Issue workbooks end with a total
// profit row.
func WriteMovements(w io.Writer, views []inventory.MovementView, kind inventory.MovementKind, f *report.Formatter) error {
	if !kind.Valid() {
		return inventory.ErrInvalidMovementKind
	}

	var rows []inventory.MovementView
	for _, v := range views {
		if v.Kind == kind {
			rows = append(rows, v)
		}
	}
	if len(rows) == 0 {
		return ErrNoRecords
	}

	book, err := build(rows, kind, f)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveMovements writes the workbook to path, creating parent directories.
// The file is not created when there is nothing to export.
func SaveMovements(path string, views []inventory.MovementView, kind inventory.MovementKind, f *report.Formatter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteMovements(tmp, views, kind, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save export file: %w", err)
	}
	return nil
}

func build(rows []inventory.MovementView, kind inventory.MovementKind, f *report.Formatter) (*excelize.File, error) {
	book := excelize.NewFile()
	sheet := SheetName(kind)
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := fill(book, sheet, rows, kind, f); err != nil {
		book.Close()
		return nil, err
	}
	return book, nil
}

func fill(book *excelize.File, sheet string, rows []inventory.MovementView, kind inventory.MovementKind, f *report.Formatter) error {
	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	money, err := book.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	header := make([]any, len(report.MovementHeaders))
	for i, h := range report.MovementHeaders {
		header[i] = h
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := book.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, v := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := movementRow(v, f)
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	last := len(rows) + 1
	if err := book.SetCellStyle(sheet, "E2", fmt.Sprintf("H%d", last), money); err != nil {
		return fmt.Errorf("failed to style amounts: %w", err)
	}

	if kind == inventory.Issue {
		footer := last + 1
		if err := book.SetCellValue(sheet, fmt.Sprintf("G%d", footer), "Total profit"); err != nil {
			return err
		}
		total := inventory.SumProfit(rows).Round(inventory.PricePlaces).InexactFloat64()
		if err := book.SetCellValue(sheet, fmt.Sprintf("H%d", footer), total); err != nil {
			return err
		}
		if err := book.SetRowStyle(sheet, footer, footer, bold); err != nil {
			return err
		}
	}

	return book.SetColWidth(sheet, "A", "I", colWidth)
}

// movementRow mirrors report.MovementRow with numeric cells.
func movementRow(v inventory.MovementView, f *report.Formatter) []any {
	remark := v.Remark
	if remark == "" {
		remark = report.Absent
	}
	return []any{
		f.Time(v.CreatedAt),
		v.ProductName,
		report.KindLabel(v.Kind),
		v.Quantity,
		amount(v.Price, inventory.PricePlaces),
		amount(v.CostPriceAtIssue, inventory.CostPlaces),
		amount(v.TotalPrice, inventory.PricePlaces),
		amount(v.Profit, inventory.PricePlaces),
		remark,
	}
}

func amount(d decimal.NullDecimal, places int32) any {
	if !d.Valid {
		return report.Absent
	}
	return d.Decimal.Round(places).InexactFloat64()
}
