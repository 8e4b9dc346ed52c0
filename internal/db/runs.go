package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

// Run is one row of the reconciliation audit log
type Run struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ItemSource  string    `json:"item_source"`
	TotalSource string    `json:"total_source"`
	ItemCount   int       `json:"item_count"`
	Total       string    `json:"total"`
	ComputedSum string    `json:"computed_sum"`
	Residual    string    `json:"residual"`
	Valid       bool      `json:"valid"`
	NeedsReview bool      `json:"needs_review"`
	ResultJSON  string    `json:"result_json,omitempty"`
	ArchivePath string    `json:"archive_path,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRun builds the audit row for a finalized receipt
func NewRun(id uuid.UUID, filename string, receipt *models.FinalizedReceipt, duration time.Duration) (*Run, error) {
	result, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}

	v := receipt.Validation
	return &Run{
		ID:          id,
		Filename:    filename,
		ItemSource:  v.ItemSource,
		TotalSource: v.TotalSource,
		ItemCount:   len(receipt.Items),
		Total:       receipt.Total.StringFixed(2),
		ComputedSum: v.ComputedSum.StringFixed(2),
		Residual:    v.Residual.StringFixed(2),
		Valid:       v.Valid,
		NeedsReview: v.NeedsReview,
		ResultJSON:  string(result),
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   receipt.ProcessedAt,
	}, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the audit table when missing
func EnsureSchema(ctx context.Context, conn execer) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.receipt_runs (
			id            uuid PRIMARY KEY,
			filename      text NOT NULL DEFAULT '',
			item_source   text NOT NULL,
			total_source  text NOT NULL,
			item_count    integer NOT NULL,
			total         numeric(12,2) NOT NULL,
			computed_sum  numeric(12,2) NOT NULL,
			residual      numeric(12,2) NOT NULL,
			valid         boolean NOT NULL,
			needs_review  boolean NOT NULL,
			result_json   jsonb NOT NULL,
			archive_path  text NOT NULL DEFAULT '',
			duration_ms   bigint NOT NULL,
			created_at    timestamptz NOT NULL DEFAULT now()
		)
	`, SchemaName())

	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create receipt_runs: %w", err)
	}
	return nil
}

// SaveRun appends a run to the audit log
func SaveRun(ctx context.Context, run *Run) error {
	if Pool == nil {
		return ErrNotConfigured
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.receipt_runs (
			id, filename, item_source, total_source, item_count,
			total, computed_sum, residual, valid, needs_review,
			result_json, archive_path, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11::jsonb, $12, $13, $14)
	`, SchemaName())

	_, err := Pool.Exec(ctx, query,
		run.ID, run.Filename, run.ItemSource, run.TotalSource, run.ItemCount,
		run.Total, run.ComputedSum, run.Residual, run.Valid, run.NeedsReview,
		run.ResultJSON, run.ArchivePath, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRuns returns the most recent runs without their result payload
func GetRuns(ctx context.Context, limit int) ([]Run, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := fmt.Sprintf(`
		SELECT id, filename, item_source, total_source, item_count,
		       total::text, computed_sum::text, residual::text, valid, needs_review,
		       archive_path, duration_ms, created_at
		FROM %s.receipt_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, SchemaName())

	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.ID, &r.Filename, &r.ItemSource, &r.TotalSource, &r.ItemCount,
			&r.Total, &r.ComputedSum, &r.Residual, &r.Valid, &r.NeedsReview,
			&r.ArchivePath, &r.DurationMS, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunByID retrieves a single run with its result payload
func GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := fmt.Sprintf(`
		SELECT id, filename, item_source, total_source, item_count,
		       total::text, computed_sum::text, residual::text, valid, needs_review,
		       result_json::text, archive_path, duration_ms, created_at
		FROM %s.receipt_runs
		WHERE id = $1
	`, SchemaName())

	var r Run
	err := Pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Filename, &r.ItemSource, &r.TotalSource, &r.ItemCount,
		&r.Total, &r.ComputedSum, &r.Residual, &r.Valid, &r.NeedsReview,
		&r.ResultJSON, &r.ArchivePath, &r.DurationMS, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MonthlyStats summarizes the current month of runs
type MonthlyStats struct {
	Month       string `json:"month"`
	Runs        int    `json:"runs"`
	Remote      int    `json:"remote"`
	NeedsReview int    `json:"needs_review"`
	TotalSpend  string `json:"total_spend"`
}

// GetMonthlyStats returns statistics for the current month
func GetMonthlyStats(ctx context.Context) (*MonthlyStats, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE item_source = 'remote'),
			COUNT(*) FILTER (WHERE needs_review),
			COALESCE(SUM(total), 0)::text
		FROM %s.receipt_runs
		WHERE DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)
	`, SchemaName())

	stats := &MonthlyStats{
		Month: time.Now().Format("2006-01"),
	}
	err := Pool.QueryRow(ctx, query).Scan(&stats.Runs, &stats.Remote, &stats.NeedsReview, &stats.TotalSpend)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
