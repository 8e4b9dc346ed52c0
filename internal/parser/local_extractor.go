// Package parser reads line items out of supermarket receipt text without any
// remote help. It never fails: unreadable input yields an empty result.
package parser

import (
	"github.com/shopspring/decimal"

	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
	"github.com/facturaIA/receipt-reconciler/internal/ocr"
	"github.com/facturaIA/receipt-reconciler/internal/services"
)

var log = logger.WithComponent("parser")

// ExtractLocal parses receipt text into line items and reconciles them with
// the printed total. When the items do not add up, an adjustment row carries
// the difference so the item sum always equals the printed total.
func ExtractLocal(text string) *models.ExtractionResult {
	result := &models.ExtractionResult{
		Items:         []models.LineItem{},
		ComputedTotal: decimal.Zero,
		Source:        models.SourceLocal,
	}

	lines := ocr.Lines(text)
	if len(lines) == 0 {
		return result
	}

	result.DeclaredTotal = detectTotal(lines)

	for _, l := range joinWeightLines(productBlock(lines)) {
		for _, cand := range scanLine(l) {
			if cand.kind == kindUnmatched {
				log.Debug().Int("line", cand.span.line).Str("text", cand.raw).Msg("no product on line")
				continue
			}
			result.Items = append(result.Items, cand.toItem())
		}
	}

	reconcile(result)
	return result
}

func (p parsedLine) toItem() models.LineItem {
	item := models.LineItem{
		Name:       p.name,
		Category:   services.ClassifyProduct(p.name),
		Quantity:   p.quantity,
		UnitPrice:  p.unitPrice,
		TotalPrice: p.total,
	}
	if p.kind == kindWeighted {
		item.Weight = money.Ptr(p.weight)
	}
	return item
}

// reconcile computes the totals and, when a printed total disagrees with the
// items, appends the adjustment row.
func reconcile(result *models.ExtractionResult) {
	identified := result.IdentifiedTotal()
	result.ComputedTotal = identified

	if result.DeclaredTotal == nil {
		return
	}
	gap := result.DeclaredTotal.Sub(identified)
	result.Discrepancy = &gap

	if gap.Abs().GreaterThan(money.Tolerance) {
		synthesizeAdjustment(result, gap)
	}
}

// synthesizeAdjustment makes unidentified spend visible as its own row, so
// per-category sums still add up to the printed total.
func synthesizeAdjustment(result *models.ExtractionResult, amount decimal.Decimal) {
	log.Info().
		Str("amount", amount.StringFixed(2)).
		Int("items", len(result.Items)).
		Msg("adding adjustment row for unidentified products")

	result.Items = append(result.Items, models.LineItem{
		Name:       models.AdjustmentName,
		Category:   models.DefaultCategory,
		Quantity:   1,
		UnitPrice:  amount,
		TotalPrice: amount,
		Synthetic:  true,
	})
	result.ComputedTotal = result.ComputedTotal.Add(amount)
	result.Adjusted = true
}
