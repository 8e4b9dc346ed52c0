package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
	"github.com/facturaIA/receipt-reconciler/internal/services"
)

// Stage names where a remote inference attempt can fail
type Stage string

const (
	StageRateLimit    Stage = "rate_limit"
	StageConnectivity Stage = "connectivity"
	StageRequest      Stage = "request"
	StageStatus       Stage = "status"
	StageParse        Stage = "parse"
	StageEmpty        Stage = "empty"
)

// InferenceError reports why the remote model produced no usable items
type InferenceError struct {
	Stage Stage
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("remote inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

var (
	errRateLimited = errors.New("outbound request budget exhausted")
	errNoItems     = errors.New("no usable items in response")
)

const systemPrompt = "Eres un experto en facturas de supermercado."

var maxItemPrice = decimal.NewFromInt(500)

// RemoteExtractor asks a chat model to segment receipt text into products
type RemoteExtractor struct {
	provider    Provider
	limiter     *rate.Limiter
	httpClient  *http.Client
	probeURL    string
	timeout     time.Duration
	temperature float32
	maxTokens   int
	categories  []string
	log         zerolog.Logger
}

// NewRemoteExtractor creates an extractor around a provider
func NewRemoteExtractor(provider Provider, cfg models.AIConfig) *RemoteExtractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &RemoteExtractor{
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		httpClient:  &http.Client{},
		probeURL:    cfg.ProbeURL,
		timeout:     timeout,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		categories:  services.CategoryLabels(),
		log:         logger.WithComponent("remote-extractor"),
	}
}

// Provider returns the backing provider name
func (e *RemoteExtractor) Provider() string {
	return e.provider.Name()
}

// InferRemote runs the probe and the completion under one deadline and maps
// the answer to line items. Every failure is an *InferenceError.
func (e *RemoteExtractor) InferRemote(ctx context.Context, text string) ([]models.LineItem, error) {
	if !e.limiter.Allow() {
		return nil, &InferenceError{Stage: StageRateLimit, Err: errRateLimited}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()

	if e.probeURL != "" {
		if err := probeReachable(ctx, e.httpClient, e.probeURL); err != nil {
			return nil, &InferenceError{Stage: StageConnectivity, Err: err}
		}
	}

	response, err := e.provider.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      e.buildPrompt(text),
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, classifyCompletionError(err)
	}

	e.log.Debug().
		Str("provider", e.provider.Name()).
		Int("response_len", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("completion received")

	items, err := e.parseResponse(response)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// classifyCompletionError separates HTTP status failures from everything else
func classifyCompletionError(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.Is(err, ErrEmptyCompletion):
		return &InferenceError{Stage: StageEmpty, Err: err}
	case errors.As(err, &apiErr), errors.As(err, &reqErr):
		return &InferenceError{Stage: StageStatus, Err: err}
	default:
		return &InferenceError{Stage: StageRequest, Err: err}
	}
}

// buildPrompt creates the segmentation prompt for Spanish supermarket tickets
func (e *RemoteExtractor) buildPrompt(text string) string {
	return fmt.Sprintf(`Eres un asistente experto en extraer productos de tickets de supermercado, especialmente de Mercadona España.
Analiza el siguiente texto extraído de un ticket.
ATENCIÓN: Los productos pueden estar pegados, sin saltos de línea. Cada producto sigue el patrón: cantidad (número al inicio), nombre del producto (puede contener números y letras) y precio decimal (por ejemplo 1,10 o 2.30) al final.
Separa cada producto aunque estén pegados, detectando el inicio de cada uno por la cantidad.
EXCLUYE cualquier línea que contenga: TOTAL, SUBTOTAL, IVA, PAGO, CAMBIO, TARJETA, EFECTIVO, DEVOLUCIÓN, REDONDEO, PROMOCIÓN, DESCUENTO, SALDO, APORTACIÓN, DONACIÓN, RECIBIDO, VUELTO, ENTREGADO, CLIENTE, NÚMERO, NRO, N°.
Extrae solo productos comprados, con:
- "producto": nombre completo del producto (los números enteros antes del precio forman parte del nombre)
- "categoria": una de: %s
- "precio": importe total de la línea en euros (número decimal, sin símbolo €)
- "cantidad": unidades compradas (entero, opcional)
Devuelve SOLO un array JSON como este ejemplo:
[
  { "producto": "Manzanas", "categoria": "Frutas y Verduras", "precio": 2.50 },
  { "producto": "Champú", "categoria": "Higiene", "precio": 3.00 }
]
No incluyas totales, subtotales, IVA ni líneas de pago.
Texto del ticket:
%s`, strings.Join(e.categories, ", "), text)
}

// remoteItem accepts both key sets; numbers may arrive as strings with commas
type remoteItem struct {
	Producto  string      `json:"producto"`
	Name      string      `json:"name"`
	Categoria string      `json:"categoria"`
	Category  string      `json:"category"`
	Precio    interface{} `json:"precio"`
	Price     interface{} `json:"price"`
	Cantidad  interface{} `json:"cantidad"`
}

// parseResponse strips markdown fences, validates and maps the JSON array
func (e *RemoteExtractor) parseResponse(response string) ([]models.LineItem, error) {
	cleaned := cleanResponse(response)
	if cleaned == "" {
		return nil, &InferenceError{Stage: StageEmpty, Err: ErrEmptyCompletion}
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &InferenceError{Stage: StageParse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if err := validateItems(doc); err != nil {
		return nil, &InferenceError{Stage: StageParse, Err: err}
	}

	var raw []remoteItem
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &InferenceError{Stage: StageParse, Err: fmt.Errorf("decode items: %w", err)}
	}

	items := make([]models.LineItem, 0, len(raw))
	for _, r := range raw {
		item, ok := r.toLineItem()
		if !ok {
			e.log.Debug().Str("product", firstNonEmpty(r.Producto, r.Name)).Msg("remote item dropped")
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, &InferenceError{Stage: StageEmpty, Err: errNoItems}
	}
	return items, nil
}

func (r remoteItem) toLineItem() (models.LineItem, bool) {
	name := strings.TrimSpace(firstNonEmpty(r.Producto, r.Name))
	if n := utf8.RuneCountInString(name); n < models.MinNameLength || n > models.MaxNameLength {
		return models.LineItem{}, false
	}

	priceRaw := r.Precio
	if priceRaw == nil {
		priceRaw = r.Price
	}
	total := parseAmount(priceRaw)
	if !total.IsPositive() || !total.LessThan(maxItemPrice) {
		return models.LineItem{}, false
	}

	qty := parseQuantity(r.Cantidad)
	return models.LineItem{
		Name:       name,
		Category:   services.NormalizeCategory(firstNonEmpty(r.Categoria, r.Category), name),
		Quantity:   qty,
		UnitPrice:  total.Div(decimal.NewFromInt(int64(qty))).Round(2),
		TotalPrice: total,
	}, true
}

// cleanResponse removes ``` fences and any prose around the JSON array
func cleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

// parseAmount converts a JSON number or a locale string to decimal, rounded to cents
func parseAmount(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val).Round(2)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return d.Round(2)
	case string:
		d, err := money.ParseLocaleDecimal(val)
		if err != nil {
			return decimal.Zero
		}
		return d.Round(2)
	default:
		return decimal.Zero
	}
}

// parseQuantity returns the unit count, defaulting to 1
func parseQuantity(v interface{}) int {
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case string:
		n, _ = strconv.Atoi(strings.TrimSpace(val))
	}
	if n < 1 {
		return 1
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
