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
		"GEMINI_API_KEY", "GENERATIVE_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL",
		"GMAIL_ENDPOINT", "GMAIL_THREAD_LIMIT", "TASK_LANGUAGE",
		"SERVER_PORT", "SERVER_DEBUG", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"MQ_URL", "JWT_SECRET", "OTEL_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFrom_RepoConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k-123")

	cfg, err := LoadFrom(".", "local")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "k-123", cfg.Genai.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Genai.Model)
	assert.Equal(t, 30*time.Second, cfg.Genai.Timeout)
	assert.Equal(t, 5, cfg.Genai.Breaker.FailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.Gmail.Timeout)
	assert.Equal(t, 20, cfg.Gmail.ThreadLimit)
	assert.Equal(t, 100, cfg.Analysis.SummaryCap)
	assert.Equal(t, 10*time.Minute, cfg.Inflight.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "mailintel", cfg.Otel.ServiceName)
}

func TestLoadFrom_MissingDirUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope"), "local")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Gmail.ThreadLimit)
	assert.Empty(t, cfg.Genai.APIKey)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
genai:
  model: from-file
noise:
  sender_patterns:
    bank: "alerts@bank"
  disabled: [feedback]
`), 0o644))

	t.Setenv("GENERATIVE_API_KEY", "fallback-key")
	t.Setenv("GEMINI_MODEL", "from-env")
	t.Setenv("GMAIL_ENDPOINT", "http://localhost:9999/")
	t.Setenv("GMAIL_THREAD_LIMIT", "7")
	t.Setenv("SERVER_PORT", ":9090")

	cfg, err := LoadFrom(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "fallback-key", cfg.Genai.APIKey)
	assert.Equal(t, "from-env", cfg.Genai.Model)
	assert.Equal(t, "http://localhost:9999/", cfg.Gmail.Endpoint)
	assert.Equal(t, 7, cfg.Gmail.ThreadLimit)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "alerts@bank", cfg.Noise.SenderPatterns["bank"])
	assert.Equal(t, []string{"feedback"}, cfg.Noise.Disabled)

	t.Setenv("GEMINI_API_KEY", "primary-key")
	cfg, err = LoadFrom(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "primary-key", cfg.Genai.APIKey)
}
