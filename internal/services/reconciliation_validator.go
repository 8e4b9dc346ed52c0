package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
)

// ReconciliationInput is what the orchestrator knows once it has chosen a total
type ReconciliationInput struct {
	ItemCount      int
	ComputedSum    decimal.Decimal  // Σ items before the final correction
	PrintedTotal   *decimal.Decimal // total read from the receipt or validation block
	DeclaredAmount *decimal.Decimal // amount typed by the user
	FilenamePrice  *decimal.Decimal // price embedded in the file name
	Authoritative  decimal.Decimal
	Residual       decimal.Decimal  // authoritative - computed
	AdjustedItem   *models.LineItem // item after absorbing the residual, if any
	LocalAdjust    *decimal.Decimal // amount of the synthetic row added by the parser
}

// ReconciliationValidator cross-checks the totals that describe one receipt
type ReconciliationValidator struct {
	tolerance decimal.Decimal
}

// NewReconciliationValidator creates a validator with the default one-cent tolerance
func NewReconciliationValidator() *ReconciliationValidator {
	return &ReconciliationValidator{tolerance: money.Tolerance}
}

// Validate fills the verdict part of a ValidationRecord
func (v *ReconciliationValidator) Validate(in *ReconciliationInput, rec *models.ValidationRecord) {
	rec.Errors = []models.ValidationIssue{}
	rec.Warnings = []models.ValidationIssue{}

	// 1. Something must have been extracted
	v.validateItems(in, rec)

	// 2. Printed total vs. what the user declared
	v.validateDeclared(in, rec)

	// 3. File name price vs. printed total
	v.validateFilename(in, rec)

	// 4. Unidentified products folded into an adjustment row
	v.validateLocalAdjustment(in, rec)

	// 5. Final correction applied to the most expensive item
	v.validateResidual(in, rec)

	rec.Valid = len(rec.Errors) == 0
	rec.NeedsReview = len(rec.Warnings) > 0 || len(rec.Errors) > 0
}

// validateItems flags receipts with nothing to reconcile
func (v *ReconciliationValidator) validateItems(in *ReconciliationInput, rec *models.ValidationRecord) {
	if in.ItemCount > 0 {
		return
	}
	if in.Authoritative.IsPositive() {
		rec.Errors = append(rec.Errors, models.ValidationIssue{
			Field:    "items",
			Code:     "unreconciled_total",
			Expected: money.Ptr(in.Authoritative),
			Actual:   money.Ptr(decimal.Zero),
			Message:  "No se identificaron productos para el importe del ticket",
		})
		return
	}
	rec.Warnings = append(rec.Warnings, models.ValidationIssue{
		Field:   "items",
		Code:    "no_items",
		Message: "No se identificaron productos",
	})
}

// validateDeclared checks the user's amount against the receipt's own total
func (v *ReconciliationValidator) validateDeclared(in *ReconciliationInput, rec *models.ValidationRecord) {
	if in.DeclaredAmount == nil || in.PrintedTotal == nil {
		return
	}
	if v.agree(*in.DeclaredAmount, *in.PrintedTotal) {
		return
	}
	rec.Warnings = append(rec.Warnings, models.ValidationIssue{
		Field:    "declared_amount",
		Code:     "declared_mismatch",
		Expected: in.PrintedTotal,
		Actual:   in.DeclaredAmount,
		Message:  "El importe declarado no coincide con el total del ticket",
	})
}

// validateFilename checks the price taken from the file name
func (v *ReconciliationValidator) validateFilename(in *ReconciliationInput, rec *models.ValidationRecord) {
	if in.FilenamePrice == nil {
		return
	}
	reference := in.PrintedTotal
	if reference == nil {
		reference = in.DeclaredAmount
	}
	if reference == nil || v.agree(*in.FilenamePrice, *reference) {
		return
	}
	rec.Warnings = append(rec.Warnings, models.ValidationIssue{
		Field:    "filename_price",
		Code:     "filename_mismatch",
		Expected: reference,
		Actual:   in.FilenamePrice,
		Message:  "El precio del nombre de archivo difiere del total del ticket",
	})
}

// validateLocalAdjustment reports spend the parser could not attribute
func (v *ReconciliationValidator) validateLocalAdjustment(in *ReconciliationInput, rec *models.ValidationRecord) {
	if in.LocalAdjust == nil || in.LocalAdjust.Abs().LessThanOrEqual(v.tolerance) {
		return
	}
	rec.Warnings = append(rec.Warnings, models.ValidationIssue{
		Field:   "items",
		Code:    "unidentified_items",
		Actual:  in.LocalAdjust,
		Message: fmt.Sprintf("%s € asignados a productos no identificados", in.LocalAdjust.StringFixed(2)),
	})
}

// validateResidual reports the final correction and rejects corrections that
// leave the absorbing item without a positive price
func (v *ReconciliationValidator) validateResidual(in *ReconciliationInput, rec *models.ValidationRecord) {
	if in.Residual.Abs().LessThanOrEqual(v.tolerance) {
		return
	}
	if in.AdjustedItem == nil {
		if in.ItemCount > 0 {
			rec.Errors = append(rec.Errors, models.ValidationIssue{
				Field:    "total",
				Code:     "total_mismatch",
				Expected: money.Ptr(in.Authoritative),
				Actual:   money.Ptr(in.ComputedSum),
				Message:  "La suma de productos no coincide con el total",
			})
		}
		return
	}

	rec.Warnings = append(rec.Warnings, models.ValidationIssue{
		Field:    "total",
		Code:     "residual_absorbed",
		Expected: money.Ptr(in.Authoritative),
		Actual:   money.Ptr(in.ComputedSum),
		Message:  fmt.Sprintf("Diferencia de %s € aplicada a %s", in.Residual.StringFixed(2), in.AdjustedItem.Name),
	})
	if !in.AdjustedItem.TotalPrice.IsPositive() {
		rec.Errors = append(rec.Errors, models.ValidationIssue{
			Field:   "items",
			Code:    "non_positive_item",
			Actual:  money.Ptr(in.AdjustedItem.TotalPrice),
			Message: "El ajuste deja un producto con precio no positivo",
		})
	}
}

func (v *ReconciliationValidator) agree(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(v.tolerance)
}
