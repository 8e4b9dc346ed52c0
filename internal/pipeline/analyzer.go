// Package pipeline sequences local parsing, remote escalation and the final
// reconciliation of a receipt.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facturaIA/receipt-reconciler/internal/ai"
	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
	"github.com/facturaIA/receipt-reconciler/internal/parser"
)

// RemoteInferrer extracts items with an external model
type RemoteInferrer interface {
	InferRemote(ctx context.Context, text string) ([]models.LineItem, error)
}

// Analyzer decides whether the local parse is good enough or the receipt has
// to be escalated to the remote model.
type Analyzer struct {
	remote RemoteInferrer
	log    zerolog.Logger
}

// NewAnalyzer creates an analyzer. A nil remote means local-only mode.
func NewAnalyzer(remote RemoteInferrer) *Analyzer {
	return &Analyzer{
		remote: remote,
		log:    logger.WithComponent("analyzer"),
	}
}

// RemoteEnabled reports whether escalation is possible
func (a *Analyzer) RemoteEnabled() bool {
	return a.remote != nil
}

// Analyze never fails. The local result is accepted when the receipt shows a
// total and the identified items match it; otherwise the remote model is asked
// once, and any remote failure falls back to the local result.
func (a *Analyzer) Analyze(ctx context.Context, text string) *models.ExtractionResult {
	local := parser.ExtractLocal(text)

	if accepted(local) {
		a.log.Debug().Int("items", len(local.Items)).Msg("local extraction matches printed total")
		return local
	}
	if a.remote == nil || strings.TrimSpace(text) == "" {
		return local
	}

	ev := a.log.Info().Int("local_items", len(local.Items))
	if local.Discrepancy != nil {
		ev = ev.Str("discrepancy", local.Discrepancy.StringFixed(2))
	}
	ev.Msg("escalating to remote extraction")

	startTime := time.Now()
	items, err := a.remote.InferRemote(ctx, text)
	if err != nil {
		var ie *ai.InferenceError
		stage := "unknown"
		if errors.As(err, &ie) {
			stage = string(ie.Stage)
		}
		a.log.Warn().Err(err).Str("stage", stage).Msg("remote extraction failed, using local result")
		return local
	}
	if len(items) == 0 {
		a.log.Warn().Msg("remote extraction returned no items, using local result")
		return local
	}

	remote := &models.ExtractionResult{
		Items:         items,
		ComputedTotal: models.SumItems(items, true),
		DeclaredTotal: local.DeclaredTotal,
		Source:        models.SourceRemote,
	}
	if local.DeclaredTotal != nil {
		gap := local.DeclaredTotal.Sub(remote.ComputedTotal)
		remote.Discrepancy = &gap
	}

	a.log.Info().
		Int("items", len(items)).
		Dur("duration", time.Since(startTime)).
		Msg("remote extraction accepted")
	return remote
}

// accepted is measured on the identified items, before any adjustment row
func accepted(r *models.ExtractionResult) bool {
	if r.DeclaredTotal == nil || r.Discrepancy == nil {
		return false
	}
	return r.Discrepancy.Abs().LessThanOrEqual(money.Tolerance)
}
