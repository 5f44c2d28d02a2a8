package config_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emailwriter/internal/config"
)

func TestLoadFromRepositoryConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-from-env")

	cfg, err := config.LoadFrom("local", filepath.Join("..", "..", "config"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.NotEmpty(t, cfg.Gemini.APIURL)
	assert.Equal(t, "secret-from-env", cfg.Gemini.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, http.StatusOK, cfg.Reply.FailureStatus)
	assert.Contains(t, cfg.Server.AllowedOrigins, "https://mail.google.com")
	assert.False(t, cfg.Otel.Enabled)
}

func TestLoadFromKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
gemini:
  api_url: https://example.test/generate
reply:
  failure_status: 502
`), 0o644))

	cfg, err := config.LoadFrom("local", dir)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 5, cfg.Gemini.CircuitBreaker.FailureThreshold)
	assert.Equal(t, http.StatusBadGateway, cfg.Reply.FailureStatus)
}

func TestLoadFromUnsetAPIKeyIsEmpty(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))

	cfg, err := config.LoadFrom("local", filepath.Join("..", "..", "config"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Gemini.APIKey)
}

func TestLoadFromFailureStatus(t *testing.T) {
	cases := []struct {
		name     string
		yaml     string
		expected int
		wantErr  bool
	}{
		{name: "unset defaults to 200", yaml: "reply: {}\n", expected: http.StatusOK},
		{name: "valid override", yaml: "reply:\n  failure_status: 503\n", expected: http.StatusServiceUnavailable},
		{name: "below range", yaml: "reply:\n  failure_status: 42\n", wantErr: true},
		{name: "above range", yaml: "reply:\n  failure_status: 1000\n", wantErr: true},
		{name: "negative", yaml: "reply:\n  failure_status: -1\n", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(tc.yaml), 0o644))

			cfg, err := config.LoadFrom("local", dir)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg.Reply.FailureStatus)
		})
	}
}
