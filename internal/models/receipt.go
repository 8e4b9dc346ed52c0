package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item sources
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
	SourceNone   = "none"
)

// Category used for anything the classifier cannot place, and for adjustment rows
const DefaultCategory = "Otros"

// Product name bounds, in runes, for every retained line item
const (
	MinNameLength = 2
	MaxNameLength = 40
)

// AdjustmentName is the product name of the synthetic row that absorbs unidentified spend
const AdjustmentName = "Ajuste (productos no identificados)"

// LineItem represents one purchased product on a receipt
type LineItem struct {
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Quantity   int              `json:"quantity"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	TotalPrice decimal.Decimal  `json:"total_price"`
	Weight     *decimal.Decimal `json:"weight,omitempty"` // kg, weighted goods only

	// Synthetic marks rows that were not read from the receipt (adjustments)
	Synthetic bool `json:"synthetic,omitempty"`
}

// IsWeighted reports whether the item was sold by weight
func (li LineItem) IsWeighted() bool {
	return li.Weight != nil
}

// ExtractionResult is the output of one extraction attempt (local or remote)
type ExtractionResult struct {
	Items []LineItem `json:"items"`

	// ComputedTotal is the sum of every item's total, adjustment rows included
	ComputedTotal decimal.Decimal `json:"computed_total"`

	// DeclaredTotal is the total printed on the receipt, when one was found
	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`

	// Discrepancy is DeclaredTotal minus the sum of identified items, measured
	// before any adjustment row was added
	Discrepancy *decimal.Decimal `json:"discrepancy,omitempty"`

	Adjusted bool   `json:"adjusted"`
	Source   string `json:"source"`
}

// IdentifiedTotal sums the items that were read from the receipt
func (r *ExtractionResult) IdentifiedTotal() decimal.Decimal {
	return SumItems(r.Items, false)
}

// SumItems adds up item totals. Synthetic rows are included only when asked.
func SumItems(items []LineItem, includeSynthetic bool) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Synthetic && !includeSynthetic {
			continue
		}
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// ValidationBlock is a previously computed validation summary sent alongside the text
type ValidationBlock struct {
	ImporteReal   *decimal.Decimal `json:"importeReal,omitempty"`
	SumaCalculada *decimal.Decimal `json:"sumaCalculada,omitempty"`
}

// SidecarMetadata carries the signals that travel with a receipt besides its text
type SidecarMetadata struct {
	DeclaredAmount *decimal.Decimal `json:"declaredAmount,omitempty"` // amount typed by the user
	Filename       string           `json:"filename,omitempty"`
	Validation     *ValidationBlock `json:"validation,omitempty"`
}

// Authoritative total sources, in priority order
const (
	TotalFromFilename   = "filename"
	TotalFromValidation = "validation"
	TotalFromDeclared   = "declared"
	TotalFromComputed   = "computed"
)

// ValidationIssue is a single reconciliation finding
type ValidationIssue struct {
	Field    string           `json:"field"`
	Code     string           `json:"code"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   *decimal.Decimal `json:"actual,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// ValidationRecord summarizes how the final total was reached
type ValidationRecord struct {
	ComputedSum        decimal.Decimal  `json:"computed_sum"`
	PrintedTotal       *decimal.Decimal `json:"printed_total,omitempty"`
	DeclaredAmount     *decimal.Decimal `json:"declared_amount,omitempty"`
	FilenamePrice      *decimal.Decimal `json:"filename_price,omitempty"`
	AuthoritativeTotal decimal.Decimal  `json:"authoritative_total"`
	TotalSource        string           `json:"total_source"`
	ItemSource         string           `json:"item_source"`
	Residual           decimal.Decimal  `json:"residual"`
	AdjustedItem       string           `json:"adjusted_item,omitempty"`

	Valid       bool              `json:"valid"`
	NeedsReview bool              `json:"needs_review"`
	Errors      []ValidationIssue `json:"errors"`
	Warnings    []ValidationIssue `json:"warnings"`
}

// CategoryTotal is the spend attributed to one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Items    int             `json:"items"`
}

// FinalizedReceipt is the reconciled output handed to storage or the caller
type FinalizedReceipt struct {
	Items       []LineItem       `json:"items"`
	Total       decimal.Decimal  `json:"total"`
	Categories  []CategoryTotal  `json:"categories"`
	Validation  ValidationRecord `json:"validation"`
	ProcessedAt time.Time        `json:"processed_at"`
}

// ProcessRequest is the body of POST /api/process-receipt
type ProcessRequest struct {
	Text           string           `json:"text"`
	Filename       string           `json:"filename,omitempty"`
	DeclaredAmount *decimal.Decimal `json:"declaredAmount,omitempty"`
	Validation     *ValidationBlock `json:"validation,omitempty"`
}

// Metadata extracts the sidecar part of the request
func (r *ProcessRequest) Metadata() SidecarMetadata {
	return SidecarMetadata{
		DeclaredAmount: r.DeclaredAmount,
		Filename:       r.Filename,
		Validation:     r.Validation,
	}
}

// ProcessResponse represents the output of receipt processing
type ProcessResponse struct {
	Success bool              `json:"success"`
	RunID   string            `json:"runId,omitempty"`
	Receipt *FinalizedReceipt `json:"receipt,omitempty"`
	Error   string            `json:"error,omitempty"`

	TotalDuration float64 `json:"totalDuration"` // seconds
}
