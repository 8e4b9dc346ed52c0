package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
)

func codes(issues []models.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestReconciliationValidator_Clean(t *testing.T) {
	v := NewReconciliationValidator()
	printed := money.MustParse("10,00")

	var rec models.ValidationRecord
	v.Validate(&ReconciliationInput{
		ItemCount:      3,
		ComputedSum:    printed,
		PrintedTotal:   &printed,
		DeclaredAmount: money.Ptr(money.MustParse("10,01")),
		Authoritative:  printed,
		Residual:       decimal.Zero,
	}, &rec)

	assert.True(t, rec.Valid)
	assert.False(t, rec.NeedsReview)
	assert.Empty(t, rec.Errors)
	assert.Empty(t, rec.Warnings)
}

func TestReconciliationValidator_Warnings(t *testing.T) {
	v := NewReconciliationValidator()
	printed := money.MustParse("18,40")
	item := models.LineItem{Name: "ACEITE", TotalPrice: money.MustParse("6,00")}

	var rec models.ValidationRecord
	v.Validate(&ReconciliationInput{
		ItemCount:      4,
		ComputedSum:    printed,
		PrintedTotal:   &printed,
		DeclaredAmount: money.Ptr(money.MustParse("20,00")),
		FilenamePrice:  money.Ptr(money.MustParse("15,99")),
		Authoritative:  money.MustParse("15,99"),
		Residual:       money.MustParse("-2,41"),
		AdjustedItem:   &item,
		LocalAdjust:    money.Ptr(money.MustParse("1,20")),
	}, &rec)

	assert.True(t, rec.Valid)
	assert.True(t, rec.NeedsReview)
	assert.ElementsMatch(t,
		[]string{"declared_mismatch", "filename_mismatch", "unidentified_items", "residual_absorbed"},
		codes(rec.Warnings))
}

func TestReconciliationValidator_Errors(t *testing.T) {
	v := NewReconciliationValidator()

	t.Run("total without items", func(t *testing.T) {
		var rec models.ValidationRecord
		v.Validate(&ReconciliationInput{Authoritative: money.MustParse("12,00"), Residual: money.MustParse("12,00")}, &rec)
		require.False(t, rec.Valid)
		assert.Equal(t, []string{"unreconciled_total"}, codes(rec.Errors))
	})

	t.Run("empty receipt", func(t *testing.T) {
		var rec models.ValidationRecord
		v.Validate(&ReconciliationInput{}, &rec)
		assert.True(t, rec.Valid)
		assert.Equal(t, []string{"no_items"}, codes(rec.Warnings))
	})

	t.Run("correction leaves a non positive price", func(t *testing.T) {
		item := models.LineItem{Name: "PAN", TotalPrice: money.MustParse("-0,50")}
		var rec models.ValidationRecord
		v.Validate(&ReconciliationInput{
			ItemCount:     1,
			ComputedSum:   money.MustParse("1,00"),
			Authoritative: money.MustParse("-0,50"),
			Residual:      money.MustParse("-1,50"),
			AdjustedItem:  &item,
		}, &rec)
		assert.False(t, rec.Valid)
		assert.True(t, rec.NeedsReview)
		assert.Contains(t, codes(rec.Errors), "non_positive_item")
	})

	t.Run("gap without an absorbing item", func(t *testing.T) {
		var rec models.ValidationRecord
		v.Validate(&ReconciliationInput{
			ItemCount:     1,
			ComputedSum:   money.MustParse("3,00"),
			Authoritative: money.MustParse("5,00"),
			Residual:      money.MustParse("2,00"),
		}, &rec)
		assert.Equal(t, []string{"total_mismatch"}, codes(rec.Errors))
		assert.Empty(t, rec.Warnings)
		assert.True(t, rec.NeedsReview)
	})
}
