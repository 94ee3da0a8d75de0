// ABOUTME: Tests for YAML config loading, env expansion, and validation
// ABOUTME: Covers defaults, duration parsing, and error cases

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":memory:", cfg.Database.Path)

	// Defaults
	assert.Equal(t, "local", cfg.Index.Embedder)
	assert.Equal(t, DefaultMaxPages, cfg.Ingest.MaxPages)
	assert.Equal(t, DefaultDepthLimit, cfg.Ingest.DepthLimit)
	assert.Equal(t, DefaultDelay, cfg.Ingest.Delay)
	assert.Equal(t, DefaultResponseTimeout, cfg.Chat.ResponseTimeout)
	assert.Equal(t, DefaultHistoryLimit, cfg.Chat.HistoryLimit)
}

func TestLoad_Durations(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
ingest:
  delay: "250ms"
chat:
  response_timeout: "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.Delay)
	assert.Equal(t, 10*time.Second, cfg.Chat.ResponseTimeout)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
ingest:
  delay: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.delay")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PORTALBOT_TEST_SECRET", "s3cret")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  jwt_secret: "${PORTALBOT_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_UnsetEnvExpandsToEmpty(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  jwt_secret: "${PORTALBOT_DEFINITELY_UNSET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing http_addr",
			content: "database:\n  path: \":memory:\"\n",
			wantErr: "server.http_addr",
		},
		{
			name:    "missing database path",
			content: "server:\n  http_addr: \"localhost:8080\"\n",
			wantErr: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmbedderValidation(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
index:
  embedder: "openai"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder_url")

	path = writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
index:
  embedder: "quantum"
`)

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.embedder")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
