package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

// fakeProvider returns a canned answer or error
type fakeProvider struct {
	response string
	err      error
	calls    int
	last     CompletionRequest
	block    bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

func testConfig(probeURL string) models.AIConfig {
	cfg := models.DefaultConfig().AI
	cfg.ProbeURL = probeURL
	cfg.Timeout = 2 * time.Second
	return cfg
}

func probeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func inferenceStage(t *testing.T, err error) Stage {
	t.Helper()
	var ie *InferenceError
	require.True(t, errors.As(err, &ie), "expected *InferenceError, got %v", err)
	return ie.Stage
}

func TestInferRemote_Success(t *testing.T) {
	probe := probeServer(t)
	provider := &fakeProvider{response: "```json\n[{\"producto\": \"Manzanas\", \"categoria\": \"Frutas y Verduras\", \"precio\": 2.5}, {\"producto\": \"Champú\", \"categoria\": \"Higiene\", \"precio\": \"3,00\", \"cantidad\": 2}]\n```"}

	extractor := NewRemoteExtractor(provider, testConfig(probe.URL))
	items, err := extractor.InferRemote(context.Background(), "1 MANZANAS 2,50\n2 CHAMPU 1,50 3,00")

	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Manzanas", items[0].Name)
	assert.Equal(t, "Frutas y Verduras", items[0].Category)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "2.50", items[0].TotalPrice.StringFixed(2))

	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, "3.00", items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, "1.50", items[1].UnitPrice.StringFixed(2))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, systemPrompt, provider.last.System)
	assert.Contains(t, provider.last.Prompt, "2 CHAMPU 1,50 3,00")
	assert.Contains(t, provider.last.Prompt, "TARJETA")
	assert.InDelta(t, 0.2, provider.last.Temperature, 0.0001)
	assert.Equal(t, 2000, provider.last.MaxTokens)
}

func TestInferRemote_Failures(t *testing.T) {
	probe := probeServer(t)

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	testCases := []struct {
		name     string
		probeURL string
		provider *fakeProvider
		want     Stage
	}{
		{name: "unreachable network", probeURL: deadURL, provider: &fakeProvider{response: "[]"}, want: StageConnectivity},
		{name: "transport error", probeURL: probe.URL, provider: &fakeProvider{err: errors.New("connection reset")}, want: StageRequest},
		{name: "empty completion", probeURL: probe.URL, provider: &fakeProvider{err: ErrEmptyCompletion}, want: StageEmpty},
		{name: "not json", probeURL: probe.URL, provider: &fakeProvider{response: "no puedo ayudar con eso"}, want: StageParse},
		{name: "schema violation", probeURL: probe.URL, provider: &fakeProvider{response: `[{"producto": "Pan"}]`}, want: StageParse},
		{name: "empty array", probeURL: probe.URL, provider: &fakeProvider{response: "[]"}, want: StageEmpty},
		{name: "only invalid prices", probeURL: probe.URL, provider: &fakeProvider{response: `[{"producto": "Pan", "precio": 0}, {"producto": "Tele", "precio": 899.99}]`}, want: StageEmpty},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			extractor := NewRemoteExtractor(tc.provider, testConfig(tc.probeURL))
			items, err := extractor.InferRemote(context.Background(), "1 PAN 0,85")

			require.Error(t, err)
			assert.Nil(t, items)
			assert.Equal(t, tc.want, inferenceStage(t, err))
		})
	}

	t.Run("connectivity failure skips the completion", func(t *testing.T) {
		provider := &fakeProvider{response: "[]"}
		_, err := NewRemoteExtractor(provider, testConfig(deadURL)).InferRemote(context.Background(), "x")
		require.Error(t, err)
		assert.Zero(t, provider.calls)
	})
}

func TestInferRemote_DeadlineCoversCompletion(t *testing.T) {
	provider := &fakeProvider{block: true}
	cfg := testConfig("")
	cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewRemoteExtractor(provider, cfg).InferRemote(context.Background(), "1 PAN 0,85")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestInferRemote_RateLimit(t *testing.T) {
	provider := &fakeProvider{response: `[{"producto": "Pan", "precio": 0.85}]`}
	cfg := testConfig("")
	cfg.RequestsPerMinute = 1
	extractor := NewRemoteExtractor(provider, cfg)

	_, err := extractor.InferRemote(context.Background(), "1 PAN 0,85")
	require.NoError(t, err)

	_, err = extractor.InferRemote(context.Background(), "1 PAN 0,85")
	require.Error(t, err)
	assert.Equal(t, StageRateLimit, inferenceStage(t, err))
	assert.Equal(t, 1, provider.calls)
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, cleanResponse("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[1]`, cleanResponse("Aquí tienes los productos:\n[1]\nEspero que ayude."))
	assert.Equal(t, "", cleanResponse("  ``` ```  "))
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, "2.50", parseAmount(2.5).StringFixed(2))
	assert.Equal(t, "1234.56", parseAmount("1.234,56 €").StringFixed(2))
	assert.Equal(t, "0.88", parseAmount(json.Number("0.875")).StringFixed(2))
	assert.True(t, parseAmount(nil).IsZero())
	assert.True(t, parseAmount("abc").IsZero())
}

func TestParseResponse_EnglishKeysAndUnknownCategory(t *testing.T) {
	e := NewRemoteExtractor(&fakeProvider{}, testConfig(""))
	items, err := e.parseResponse(`[{"name": "Yogur natural", "category": "Dairy", "price": 1.35, "cantidad": "3"}]`)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Lácteos y Huevos", items[0].Category)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "0.45", items[0].UnitPrice.StringFixed(2))
}

func TestParseResponse_NameBounds(t *testing.T) {
	e := NewRemoteExtractor(&fakeProvider{}, testConfig(""))
	long := strings.Repeat("QUESO CURADO ", 5)
	items, err := e.parseResponse(`[
		{"producto": "X", "precio": 1.00},
		{"producto": "` + long + `", "precio": 2.00},
		{"producto": "Pan", "precio": 0.85}
	]`)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pan", items[0].Name)

	_, err = e.parseResponse(`[{"producto": "X", "precio": 1.00}]`)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, StageEmpty, ie.Stage)
}
