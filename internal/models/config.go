package models

import "time"

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Logging
	Log LogConfig `yaml:"log"`
}

// AIConfig represents remote inference configuration
type AIConfig struct {
	// Default provider: "deepseek", "openai", "gemini", "ollama" or "none"
	DefaultProvider string `yaml:"default_provider"`

	DeepSeek OpenAIConfig `yaml:"deepseek"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Ollama   OllamaConfig `yaml:"ollama"`

	Timeout           time.Duration `yaml:"timeout"`             // probe + completion budget
	ProbeURL          string        `yaml:"probe_url"`           // reachability check target
	Temperature       float32       `yaml:"temperature"`         // low favours determinism
	MaxTokens         int           `yaml:"max_tokens"`          // response bound
	RequestsPerMinute int           `yaml:"requests_per_minute"` // outbound limit
}

// OpenAIConfig for any OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama (OpenAI-compatible /v1 API)
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434/v1"
	Model   string `yaml:"model"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the values used when no config file is present
func DefaultConfig() Config {
	return Config{
		Port: 8080,
		Host: "0.0.0.0",
		AI: AIConfig{
			DefaultProvider: "deepseek",
			DeepSeek: OpenAIConfig{
				BaseURL: "https://api.deepseek.com/v1",
				Model:   "deepseek-chat",
			},
			OpenAI: OpenAIConfig{
				Model: "gpt-4o-mini",
			},
			Gemini: GeminiConfig{
				Model: "gemini-1.5-flash",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434/v1",
				Model:   "llama3",
			},
			Timeout:           10 * time.Second,
			ProbeURL:          "https://www.google.com",
			Temperature:       0.2,
			MaxTokens:         2000,
			RequestsPerMinute: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
