package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

var (
	// ErrProviderDisabled means the service runs in local-only mode
	ErrProviderDisabled = errors.New("remote inference disabled")
	// ErrMissingAPIKey is returned when the selected provider has no key configured
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrEmptyCompletion is returned when a provider answers without any text
	ErrEmptyCompletion = errors.New("empty completion")
)

// CompletionRequest is one system + user exchange with a chat model
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Provider is a chat completion backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NewProvider builds the provider selected in the configuration
func NewProvider(cfg models.AIConfig) (Provider, error) {
	switch cfg.DefaultProvider {
	case "", "none":
		return nil, ErrProviderDisabled

	case "deepseek":
		if cfg.DeepSeek.APIKey == "" {
			return nil, fmt.Errorf("deepseek: %w", ErrMissingAPIKey)
		}
		p := NewOpenAIProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.BaseURL, cfg.DeepSeek.Model)
		p.name = "deepseek"
		return p, nil

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model), nil

	case "ollama":
		return NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.DefaultProvider)
	}
}
