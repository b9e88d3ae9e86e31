package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vaultd/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8484, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "chromem", cfg.VectorIndex.Provider)
	assert.Equal(t, "vaultd_entries", cfg.VectorIndex.Chromem.Collection)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9999
log:
  level: debug
  format: console
vectorindex:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 7334
search:
  default_limit: 5
  max_limit: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "qdrant", cfg.VectorIndex.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorIndex.Qdrant.Host)
	assert.Equal(t, 7334, cfg.VectorIndex.Qdrant.Port)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 25, cfg.Search.MaxLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9999\n"), 0o600))

	t.Setenv("VAULTD_SERVER_HTTP_PORT", "7777")
	t.Setenv("VAULTD_VECTORINDEX_CHROMEM_PATH", "/tmp/vaultd-index")
	t.Setenv("VAULTD_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "/tmp/vaultd-index", cfg.VectorIndex.Chromem.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8484, cfg.Server.Port)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("VAULTD_VECTORINDEX_PROVIDER", "pinecone")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vectorindex provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = -1 }, "invalid server port"},
		{"bad embeddings provider", func(c *config.Config) { c.Embeddings.Provider = "none" }, "unsupported embeddings provider"},
		{"max below default", func(c *config.Config) { c.Search.MaxLimit = 1 }, "max_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
