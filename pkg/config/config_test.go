package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxSchemaRetries)
	assert.Equal(t, 8, cfg.Runtime.MaxToolIterations)
	assert.Equal(t, 30*time.Minute, cfg.Runtime.SessionIdleTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
}

func TestLoad_MissingAPIKeyRejected(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "taskmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
  shutdown_timeout: 20s
llm:
  model: gpt-4o-mini
  requests_per_minute: 60
runtime:
  max_tool_iterations: 4
database:
  host: db.internal
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, float64(60), cfg.LLM.RequestsPerMinute)
	assert.Equal(t, 4, cfg.Runtime.MaxToolIterations)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	// Unset YAML fields keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("LLM_MODEL", "gpt-4.1")
	t.Setenv("MAX_TOOL_ITERATIONS", "12")
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("DB_HOST", "env-db")

	path := filepath.Join(t.TempDir(), "taskmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, 12, cfg.Runtime.MaxToolIterations)
	assert.Equal(t, 10*time.Minute, cfg.Runtime.SessionIdleTimeout)
	assert.Equal(t, "env-db", cfg.Database.Host)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_MalformedYAMLRejected(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "taskmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
