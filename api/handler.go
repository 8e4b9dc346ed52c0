package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/facturaIA/receipt-reconciler/internal/auth"
	"github.com/facturaIA/receipt-reconciler/internal/db"
	"github.com/facturaIA/receipt-reconciler/internal/export"
	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/pipeline"
	"github.com/facturaIA/receipt-reconciler/internal/services"
	"github.com/facturaIA/receipt-reconciler/internal/storage"
)

const (
	MaxBodySize = 1 * 1024 * 1024 // 1MB of receipt text is plenty
	Version     = "1.0.0"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler handles HTTP requests for receipt reconciliation
type Handler struct {
	config       *models.Config
	orchestrator *pipeline.Orchestrator
	providerName string
	log          zerolog.Logger
}

// NewHandler creates a new API handler. providerName is the remote model in
// use, empty when running local-only.
func NewHandler(config *models.Config, orchestrator *pipeline.Orchestrator, providerName string) *Handler {
	return &Handler{
		config:       config,
		orchestrator: orchestrator,
		providerName: providerName,
		log:          logger.WithComponent("api"),
	}
}

// SetupRoutes configures the HTTP routes. Everything under /api goes through
// the JWT middleware, which is a pass-through while auth is disabled.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)

	// Main endpoints
	api.HandleFunc("/process-receipt", h.ProcessReceipt).Methods("POST")
	api.HandleFunc("/analyze", h.Analyze).Methods("POST")
	api.HandleFunc("/classify", h.Classify).Methods("POST")
	api.HandleFunc("/export", h.ExportReceipt).Methods("POST")

	// Audit log
	api.HandleFunc("/runs", h.GetRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
	Auth      bool              `json:"auth"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of an optional sink
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint. The sinks are optional, so the service is healthy without them.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mode := "local-only"
	if h.orchestrator.Analyzer().RemoteEnabled() {
		mode = "escalation"
	}
	provider := h.providerName
	if provider == "" {
		provider = "none"
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		AI: map[string]string{
			"provider": provider,
			"mode":     mode,
		},
		Auth: auth.Enabled(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) checkDatabase() ServiceStatus {
	if !db.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "audit log disabled",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

func (h *Handler) checkStorage() ServiceStatus {
	if !storage.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "archive disabled",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ProcessReceipt reconciles one receipt and records the run in the optional sinks
func (h *Handler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	start := time.Now()

	req, ok := h.decodeProcessRequest(w, r)
	if !ok {
		return
	}

	runID := uuid.New()
	log := h.log.With().Str("run_id", runID.String()).Logger()
	if claims, err := auth.GetClaimsFromContext(ctx); err == nil {
		log = log.With().Str("client", claims.Client).Logger()
	}

	receipt := h.orchestrator.ProcessReceipt(ctx, req.Text, req.Metadata())
	duration := time.Since(start)

	log.Info().
		Int("items", len(receipt.Items)).
		Str("total", receipt.Total.StringFixed(2)).
		Str("item_source", receipt.Validation.ItemSource).
		Str("total_source", receipt.Validation.TotalSource).
		Bool("needs_review", receipt.Validation.NeedsReview).
		Dur("duration", duration).
		Msg("receipt processed")

	h.recordRun(ctx, log, runID, req, receipt, duration)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.ProcessResponse{
		Success:       true,
		RunID:         runID.String(),
		Receipt:       receipt,
		TotalDuration: duration.Seconds(),
	})
}

// recordRun archives the raw text and writes the audit row. Sink failures are
// logged and never reach the caller.
func (h *Handler) recordRun(ctx context.Context, log zerolog.Logger, runID uuid.UUID, req *models.ProcessRequest, receipt *models.FinalizedReceipt, duration time.Duration) {
	if !db.Available() && !storage.Available() {
		return
	}

	run, err := db.NewRun(runID, req.Filename, receipt, duration)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build audit row")
		return
	}

	if storage.Available() {
		path, err := storage.ArchiveRun(ctx, runID.String(), receipt.ProcessedAt, req.Text, []byte(run.ResultJSON))
		if err != nil {
			log.Warn().Err(err).Msg("failed to archive run")
		} else {
			run.ArchivePath = path
		}
	}

	if db.Available() {
		if err := db.SaveRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("failed to save run")
		}
	}
}

// Analyze runs extraction and escalation without the final reconciliation
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req, ok := h.decodeProcessRequest(w, r)
	if !ok {
		return
	}

	result := h.orchestrator.Analyzer().Analyze(r.Context(), req.Text)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// ClassifyRequest is the body of POST /api/classify
type ClassifyRequest struct {
	Name  string   `json:"name"`
	Names []string `json:"names,omitempty"`
}

// Classify maps one or more product names to categories
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req ClassifyRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" && len(req.Names) == 0 {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	response := map[string]interface{}{
		"success": true,
	}
	if req.Name != "" {
		response["category"] = services.ClassifyProduct(req.Name)
	}
	if len(req.Names) > 0 {
		categories := make(map[string]string, len(req.Names))
		for _, n := range req.Names {
			categories[n] = services.ClassifyProduct(n)
		}
		response["categories"] = categories
	}

	json.NewEncoder(w).Encode(response)
}

// ExportReceipt reconciles a receipt and returns it as an XLSX workbook
func (h *Handler) ExportReceipt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProcessRequest(w, r)
	if !ok {
		return
	}

	receipt := h.orchestrator.ProcessReceipt(r.Context(), req.Text, req.Metadata())
	buf, err := export.WriteReceipt(receipt)
	if err != nil {
		h.log.Error().Err(err).Msg("xlsx export failed")
		h.sendError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	name := "receipt.xlsx"
	if req.Filename != "" {
		name = strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename)) + ".xlsx"
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetRuns returns the most recent runs of the audit log
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			h.sendError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	runs, err := db.GetRuns(r.Context(), limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get runs: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"runs":    runs,
		"count":   len(runs),
	})
}

// GetRun returns a single run, with a temporary link to its archive when available
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	ctx := r.Context()
	run, err := db.GetRunByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		h.sendError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run: %v", err))
		return
	}

	response := map[string]interface{}{
		"success": true,
		"run":     run,
	}
	if run.ArchivePath != "" && storage.Available() {
		if url, err := storage.GetPresignedURL(ctx, run.ArchivePath+"/raw.txt"); err == nil {
			response["raw_text_url"] = url
		}
	}

	json.NewEncoder(w).Encode(response)
}

// GetStats returns monthly statistics of the audit log
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetMonthlyStats(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (h *Handler) decodeProcessRequest(w http.ResponseWriter, r *http.Request) (*models.ProcessRequest, bool) {
	var req models.ProcessRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
