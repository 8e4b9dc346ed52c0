package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider calls Google Gemini. A client is opened per call since
// remote inference only happens on escalation.
type GeminiProvider struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(apiKey, model string, opts ...option.ClientOption) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
		opts:   opts,
	}
}

// Name returns the provider label
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete runs one generation with the system message as system instruction
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
