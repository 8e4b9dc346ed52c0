package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
	"github.com/facturaIA/receipt-reconciler/internal/services"
)

// "factura_15,99.pdf", "ticket 7.50.txt"
var reFilenamePrice = regexp.MustCompile(`(?:^|[^\d])(\d+[.,]\d{2})$`)

// Orchestrator turns receipt text plus sidecar metadata into a finalized receipt
type Orchestrator struct {
	analyzer  *Analyzer
	validator *services.ReconciliationValidator
	now       func() time.Time
	log       zerolog.Logger
}

// NewOrchestrator creates an orchestrator around an analyzer
func NewOrchestrator(analyzer *Analyzer) *Orchestrator {
	return &Orchestrator{
		analyzer:  analyzer,
		validator: services.NewReconciliationValidator(),
		now:       time.Now,
		log:       logger.WithComponent("orchestrator"),
	}
}

// Analyzer exposes the escalation policy used by this orchestrator
func (o *Orchestrator) Analyzer() *Analyzer {
	return o.analyzer
}

// ProcessReceipt extracts the items, picks the authoritative total and makes
// the items add up to it. It never fails; problems end up in the validation record.
func (o *Orchestrator) ProcessReceipt(ctx context.Context, text string, meta models.SidecarMetadata) *models.FinalizedReceipt {
	extraction := o.analyzer.Analyze(ctx, text)

	items := make([]models.LineItem, len(extraction.Items))
	copy(items, extraction.Items)

	filenamePrice := PriceFromFilename(meta.Filename)
	var validated *decimal.Decimal
	if meta.Validation != nil {
		validated = meta.Validation.ImporteReal
	}
	// The receipt's own total is already reflected in computed (adjustment
	// row), so it only serves as a cross-check reference.
	printed := extraction.DeclaredTotal
	reference := printed
	if validated != nil {
		reference = validated
	}

	computed := models.SumItems(items, true)
	authoritative, source := authoritativeTotal(filenamePrice, validated, meta.DeclaredAmount, computed)
	residual := authoritative.Sub(computed)

	rec := models.ValidationRecord{
		ComputedSum:        computed,
		PrintedTotal:       printed,
		DeclaredAmount:     meta.DeclaredAmount,
		FilenamePrice:      filenamePrice,
		AuthoritativeTotal: authoritative,
		TotalSource:        source,
		ItemSource:         extraction.Source,
		Residual:           residual,
	}
	if len(items) == 0 {
		rec.ItemSource = models.SourceNone
	}

	var adjusted *models.LineItem
	if !money.WithinTolerance(authoritative, computed) {
		if idx := absorbResidual(items, residual); idx >= 0 {
			adjusted = &items[idx]
			rec.AdjustedItem = adjusted.Name
			o.log.Info().
				Str("item", adjusted.Name).
				Str("residual", residual.StringFixed(2)).
				Str("total_source", source).
				Msg("residual absorbed by most expensive item")
		}
	}

	o.validator.Validate(&services.ReconciliationInput{
		ItemCount:      countIdentified(items),
		ComputedSum:    computed,
		PrintedTotal:   reference,
		DeclaredAmount: meta.DeclaredAmount,
		FilenamePrice:  filenamePrice,
		Authoritative:  authoritative,
		Residual:       residual,
		AdjustedItem:   adjusted,
		LocalAdjust:    localAdjustment(extraction),
	}, &rec)

	return &models.FinalizedReceipt{
		Items:       items,
		Total:       authoritative,
		Categories:  CategoryTotals(items),
		Validation:  rec,
		ProcessedAt: o.now(),
	}
}

// authoritativeTotal returns the first available signal: file name price,
// validation block importeReal, declared amount, and finally the item sum.
func authoritativeTotal(filename, validated, declared *decimal.Decimal, computed decimal.Decimal) (decimal.Decimal, string) {
	switch {
	case filename != nil:
		return *filename, models.TotalFromFilename
	case validated != nil:
		return *validated, models.TotalFromValidation
	case declared != nil:
		return *declared, models.TotalFromDeclared
	default:
		return computed, models.TotalFromComputed
	}
}

// absorbResidual adds the whole residual to the most expensive identified
// item (the first one on ties) and returns its index. When only synthetic rows
// exist the adjustment row takes it; -1 means there are no items at all.
// Unit price is re-derived unless the item was sold by weight.
func absorbResidual(items []models.LineItem, residual decimal.Decimal) int {
	idx := mostExpensive(items, false)
	if idx < 0 {
		idx = mostExpensive(items, true)
	}
	if idx < 0 {
		return -1
	}

	it := &items[idx]
	it.TotalPrice = it.TotalPrice.Add(residual)
	if !it.IsWeighted() && it.Quantity > 0 {
		it.UnitPrice = it.TotalPrice.Div(decimal.NewFromInt(int64(it.Quantity))).Round(2)
	}
	return idx
}

func mostExpensive(items []models.LineItem, synthetic bool) int {
	idx := -1
	for i, it := range items {
		if it.Synthetic != synthetic {
			continue
		}
		if idx < 0 || it.TotalPrice.GreaterThan(items[idx].TotalPrice) {
			idx = i
		}
	}
	return idx
}

// PriceFromFilename reads a price written at the end of a file's base name
func PriceFromFilename(name string) *decimal.Decimal {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if dot := strings.LastIndex(name, "."); dot >= 0 && strings.ContainsFunc(name[dot+1:], unicode.IsLetter) {
		name = name[:dot]
	}

	m := reFilenamePrice.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return nil
	}
	d, err := money.ParseLocaleDecimal(m[1])
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

// CategoryTotals sums item totals per category, in order of first appearance
func CategoryTotals(items []models.LineItem) []models.CategoryTotal {
	index := make(map[string]int)
	totals := []models.CategoryTotal{}
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = models.DefaultCategory
		}
		i, ok := index[cat]
		if !ok {
			i = len(totals)
			index[cat] = i
			totals = append(totals, models.CategoryTotal{Category: cat, Total: decimal.Zero})
		}
		totals[i].Total = totals[i].Total.Add(it.TotalPrice)
		totals[i].Items++
	}
	return totals
}

func countIdentified(items []models.LineItem) int {
	n := 0
	for _, it := range items {
		if !it.Synthetic {
			n++
		}
	}
	return n
}

func localAdjustment(r *models.ExtractionResult) *decimal.Decimal {
	for _, it := range r.Items {
		if it.Synthetic {
			return money.Ptr(it.TotalPrice)
		}
	}
	return nil
}
