// Package export renders finalized receipts as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

// Sheet names
const (
	ItemsSheet      = "Productos"
	CategoriesSheet = "Categorias"
	SummarySheet    = "Resumen"
)

var itemHeaders = []string{"Producto", "Categoría", "Cantidad", "Precio unitario", "Total", "Peso (kg)", "Ajuste"}

// WriteReceipt builds a workbook with the items, category totals and the
// reconciliation summary of a receipt.
func WriteReceipt(receipt *models.FinalizedReceipt) (*bytes.Buffer, error) {
	if receipt == nil {
		return nil, fmt.Errorf("nil receipt")
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it so the items sheet comes first
	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return nil, err
	}
	for _, name := range []string{CategoriesSheet, SummarySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writeItems(f, receipt.Items)
	writeCategories(f, receipt.Categories)
	writeSummary(f, receipt)

	activeIndex, _ := f.GetSheetIndex(ItemsSheet)
	f.SetActiveSheet(activeIndex)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf, nil
}

// SaveReceipt writes the workbook to path
func SaveReceipt(path string, receipt *models.FinalizedReceipt) error {
	buf, err := WriteReceipt(receipt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeItems(f *excelize.File, items []models.LineItem) {
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ItemsSheet, cell, h)
	}

	for r, it := range items {
		row := r + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ItemsSheet, cell, v)
		}

		write(1, it.Name)
		write(2, it.Category)
		write(3, it.Quantity)
		write(4, it.UnitPrice.InexactFloat64())
		write(5, it.TotalPrice.InexactFloat64())
		if it.Weight != nil {
			write(6, it.Weight.InexactFloat64())
		}
		if it.Synthetic {
			write(7, "sí")
		}
	}

	_ = f.SetColWidth(ItemsSheet, "A", "A", 36)
	_ = f.SetColWidth(ItemsSheet, "B", "B", 28)
	_ = f.SetColWidth(ItemsSheet, "C", "F", 14)
}

func writeCategories(f *excelize.File, totals []models.CategoryTotal) {
	for i, h := range []string{"Categoría", "Productos", "Total"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(CategoriesSheet, cell, h)
	}
	for r, ct := range totals {
		row := r + 2
		_ = f.SetCellValue(CategoriesSheet, cellName(1, row), ct.Category)
		_ = f.SetCellValue(CategoriesSheet, cellName(2, row), ct.Items)
		_ = f.SetCellValue(CategoriesSheet, cellName(3, row), ct.Total.InexactFloat64())
	}
	_ = f.SetColWidth(CategoriesSheet, "A", "A", 28)
}

func writeSummary(f *excelize.File, receipt *models.FinalizedReceipt) {
	v := receipt.Validation
	rows := [][2]any{
		{"Total", receipt.Total.InexactFloat64()},
		{"Origen del total", v.TotalSource},
		{"Origen de productos", v.ItemSource},
		{"Suma calculada", v.ComputedSum.InexactFloat64()},
		{"Residuo", v.Residual.InexactFloat64()},
		{"Válido", v.Valid},
		{"Revisar", v.NeedsReview},
		{"Procesado", receipt.ProcessedAt.Format("2006-01-02 15:04:05")},
	}
	for i, r := range rows {
		_ = f.SetCellValue(SummarySheet, cellName(1, i+1), r[0])
		_ = f.SetCellValue(SummarySheet, cellName(2, i+1), r[1])
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
