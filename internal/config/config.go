// Package config provides configuration loading for vaultd.
//
// Configuration is loaded from an optional YAML file, then overridden
// by VAULTD_* environment variables, then validated. Missing values
// fall back to defaults.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vaultd/internal/logging"
)

// Config holds the complete vaultd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         logging.Config    `koanf:"log"`
	Store       StoreConfig       `koanf:"store"`
	VectorIndex VectorIndexConfig `koanf:"vectorindex"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Search      SearchConfig      `koanf:"search"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds entry store configuration.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: "~/.local/share/vaultd/vaultd.db"
	Path string `koanf:"path"`
}

// VectorIndexConfig holds vector index configuration.
type VectorIndexConfig struct {
	// Provider selects the backend: "chromem" (embedded, default) or
	// "qdrant" (external server).
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds embedded chromem-go backend configuration.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// QdrantConfig holds Qdrant gRPC backend configuration.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	VectorSize uint64 `koanf:"vector_size"`
	UseTLS     bool   `koanf:"use_tls"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "fastembed" (local ONNX, default)
	// or "tei" (HTTP text-embeddings-inference endpoint).
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`
}

// SearchConfig holds hybrid search configuration.
type SearchConfig struct {
	// DefaultLimit is used when a search request omits the limit.
	DefaultLimit int `koanf:"default_limit"`

	// MaxLimit caps the per-request result count.
	MaxLimit int `koanf:"max_limit"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8484
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	cfg.Log.ApplyDefaults()
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/vaultd/vaultd.db"
	}
	if cfg.VectorIndex.Provider == "" {
		cfg.VectorIndex.Provider = "chromem"
	}
	if cfg.VectorIndex.Chromem.Path == "" {
		cfg.VectorIndex.Chromem.Path = "~/.local/share/vaultd/vectorindex"
	}
	if cfg.VectorIndex.Chromem.Collection == "" {
		cfg.VectorIndex.Chromem.Collection = "vaultd_entries"
	}
	if cfg.VectorIndex.Qdrant.Host == "" {
		cfg.VectorIndex.Qdrant.Host = "localhost"
	}
	if cfg.VectorIndex.Qdrant.Port == 0 {
		cfg.VectorIndex.Qdrant.Port = 6334
	}
	if cfg.VectorIndex.Qdrant.Collection == "" {
		cfg.VectorIndex.Qdrant.Collection = "vaultd_entries"
	}
	if cfg.VectorIndex.Qdrant.VectorSize == 0 {
		cfg.VectorIndex.Qdrant.VectorSize = 384
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "~/.cache/vaultd/models"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 50
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.VectorIndex.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorindex provider: %s (supported: chromem, qdrant)", c.VectorIndex.Provider)
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("unsupported embeddings provider: %s (supported: fastembed, tei)", c.Embeddings.Provider)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search default_limit must be positive")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search max_limit must be >= default_limit")
	}
	return nil
}
