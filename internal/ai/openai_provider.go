package ai

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion API
// (OpenAI, DeepSeek, Ollama's /v1 endpoint).
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. An empty baseURL keeps the OpenAI default.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{
		name:   "openai",
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// NewOllamaProvider creates a provider for a local Ollama server
func NewOllamaProvider(baseURL, model string) *OpenAIProvider {
	p := NewOpenAIProvider("ollama", baseURL, model)
	p.name = "ollama"
	return p
}

// Name returns the provider label used in logs and health output
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete sends the system and user messages and returns the first choice
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
