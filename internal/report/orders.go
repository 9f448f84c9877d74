// Package report renders vendor order exports.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shopvisit/internal/model"
)

const (
	OrdersSheet  = "Orders"
	SummarySheet = "Summary"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var orderColumns = []string{
	"Order number", "Visit date", "Visit time", "Catalog", "Sale price", "Final price",
	"Payment method", "Payment status", "Created at",
}

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limit.
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(1, w.row-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	_ = w.file.SetCellStyle(w.sheet, start, end, style)
	return nil
}

func (w *sheetWriter) writeRow(values []any) error {
	if w.sheet == "" {
		return errors.New("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// WriteOrders writes a workbook with one row per order, sorted by visit date and
// time, and a summary sheet with paid and unpaid totals of the final price.
func WriteOrders(out io.Writer, orders []model.Order) error {
	w := newSheetWriter()
	defer w.file.Close()

	sorted := append([]model.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].VisitDate != sorted[j].VisitDate {
			return sorted[i].VisitDate < sorted[j].VisitDate
		}
		return sorted[i].VisitTime < sorted[j].VisitTime
	})

	if err := w.addSheet(OrdersSheet); err != nil {
		return err
	}
	if err := w.writeHeader(orderColumns); err != nil {
		return err
	}

	paid, unpaid := decimal.Zero, decimal.Zero
	for _, o := range sorted {
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		err := w.writeRow([]any{
			o.OrderNumber, o.VisitDate, o.VisitTime, o.CatalogID,
			o.SalePrice.InexactFloat64(), o.FinalPrice.InexactFloat64(),
			string(o.PaymentMethod), string(o.PaymentStatus), created,
		})
		if err != nil {
			return err
		}
		if o.PaymentStatus == model.PaymentPaid {
			paid = paid.Add(o.FinalPrice)
		} else {
			unpaid = unpaid.Add(o.FinalPrice)
		}
	}

	if err := w.addSheet(SummarySheet); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Metric", "Value"}); err != nil {
		return err
	}
	summary := [][]any{
		{"Orders", len(sorted)},
		{"Paid total", paid.Round(2).InexactFloat64()},
		{"Unpaid total", unpaid.Round(2).InexactFloat64()},
	}
	for _, row := range summary {
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	w.file.SetActiveSheet(0)
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
