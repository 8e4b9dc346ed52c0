package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "HOST", "AI_PROVIDER", "DEEPSEEK_API_KEY", "OPENAI_API_KEY",
		"OPENAI_BASE_URL", "OPENAI_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"OLLAMA_BASE_URL", "AI_TIMEOUT", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "deepseek", cfg.AI.DefaultProvider)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
ai:
  default_provider: gemini
  timeout: 5s
  gemini:
    model: gemini-1.5-pro
log:
  level: debug
`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("AI_TIMEOUT", "3s")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, "k", cfg.AI.Gemini.APIKey)
	assert.Equal(t, 3*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "deepseek-chat", cfg.AI.DeepSeek.Model)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	t.Setenv("PORT", "eighty")
	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
