package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
)

func sampleReceipt() *models.FinalizedReceipt {
	weight := money.MustParse("0,456")
	return &models.FinalizedReceipt{
		Items: []models.LineItem{
			{Name: "PAN BARRA", Category: "Panadería y Repostería", Quantity: 2, UnitPrice: money.MustParse("0,60"), TotalPrice: money.MustParse("1,20")},
			{Name: "PLATANO", Category: "Frutas y Verduras", Quantity: 1, UnitPrice: money.MustParse("2,19"), TotalPrice: money.MustParse("1,00"), Weight: &weight},
			{Name: models.AdjustmentName, Category: models.DefaultCategory, Quantity: 1, UnitPrice: money.MustParse("0,30"), TotalPrice: money.MustParse("0,30"), Synthetic: true},
		},
		Total: money.MustParse("2,50"),
		Categories: []models.CategoryTotal{
			{Category: "Panadería y Repostería", Total: money.MustParse("1,20"), Items: 1},
			{Category: "Frutas y Verduras", Total: money.MustParse("1,00"), Items: 1},
			{Category: models.DefaultCategory, Total: money.MustParse("0,30"), Items: 1},
		},
		Validation: models.ValidationRecord{
			ComputedSum: money.MustParse("2,50"),
			TotalSource: models.TotalFromValidation,
			ItemSource:  models.SourceLocal,
			Valid:       true,
		},
		ProcessedAt: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestWriteReceipt(t *testing.T) {
	buf, err := WriteReceipt(sampleReceipt())
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ItemsSheet, CategoriesSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ItemsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, itemHeaders, rows[0])
	assert.Equal(t, "PAN BARRA", rows[1][0])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "1.2", rows[1][4])
	assert.Equal(t, "0.456", rows[2][5])
	assert.Equal(t, "sí", rows[3][6])

	cats, err := f.GetRows(CategoriesSheet)
	require.NoError(t, err)
	require.Len(t, cats, 4)
	assert.Equal(t, "Frutas y Verduras", cats[2][0])

	source, err := f.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, models.TotalFromValidation, source)
}

func TestWriteReceipt_Nil(t *testing.T) {
	_, err := WriteReceipt(nil)
	assert.Error(t, err)
}

func TestSaveReceipt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.xlsx")
	require.NoError(t, SaveReceipt(path, sampleReceipt()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(ItemsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "PAN BARRA", v)
}
