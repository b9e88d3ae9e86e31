// Vaultd is a personal knowledge vault daemon with hybrid search.
//
// It stores knowledge entries (notes, YouTube links, X posts) in
// SQLite and indexes them in a vector backend for semantic retrieval.
// Search blends nearest-neighbor hits with substring matches; when the
// vector backend misbehaves, vaultd degrades to text-only search and
// keeps serving.
//
// Configuration is loaded from an optional YAML file and VAULTD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem index, local fastembed)
//	vaultd
//
//	# Configure via file and environment
//	vaultd -config /etc/vaultd/config.yaml
//	VAULTD_SERVER_HTTP_PORT=9090 VAULTD_EMBEDDINGS_PROVIDER=tei vaultd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/config"
	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/extract"
	vaulthttp "github.com/fyrsmithlabs/vaultd/internal/http"
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/logging"
	"github.com/fyrsmithlabs/vaultd/internal/search"
	"github.com/fyrsmithlabs/vaultd/internal/vault"
	"github.com/fyrsmithlabs/vaultd/internal/vectorindex"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vaultd           Start the vaultd daemon\n")
			fmt.Fprintf(os.Stderr, "  vaultd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("vaultd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the vaultd server and blocks until the context is
// cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Open the SQLite entry store
//  4. Create the embedding provider and vector backend; wrap both in
//     the resilient index so failures degrade rather than abort
//  5. Wire the hybrid search engine and vault service
//  6. Start the HTTP server, shut it down on cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting vaultd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	store, err := knowledge.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("opening entry store: %w", err)
	}
	defer store.Close()

	index := initIndex(cfg, logger)
	defer index.Close()

	engine := search.NewEngine(index, store, logger)

	extractor := extract.NewOEmbedExtractor(extract.OEmbedConfig{}, logger)

	service := vault.NewService(store, index, engine, extractor, vault.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	}, logger)

	srv, err := vaulthttp.NewServer(service, logger, &vaulthttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// initIndex builds the embedding provider and vector backend. Any
// failure here degrades the index instead of failing startup: vaultd
// stays up with text-only search.
func initIndex(cfg *config.Config, logger *zap.Logger) *vectorindex.Resilient {
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		logger.Warn("embedding provider unavailable, search will be text-only", zap.Error(err))
		return vectorindex.NewResilient(nil, logger)
	}

	logger.Info("Embedding provider initialized",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", embedder.Dimension()))

	backend, err := vectorindex.NewBackend(
		cfg.VectorIndex.Provider,
		vectorindex.ChromemConfig{
			Path:       cfg.VectorIndex.Chromem.Path,
			Collection: cfg.VectorIndex.Chromem.Collection,
			Compress:   cfg.VectorIndex.Chromem.Compress,
		},
		vectorindex.QdrantConfig{
			Host:       cfg.VectorIndex.Qdrant.Host,
			Port:       cfg.VectorIndex.Qdrant.Port,
			Collection: cfg.VectorIndex.Qdrant.Collection,
			VectorSize: cfg.VectorIndex.Qdrant.VectorSize,
			UseTLS:     cfg.VectorIndex.Qdrant.UseTLS,
		},
		embedder,
		logger,
	)
	if err != nil {
		logger.Warn("vector backend unavailable, search will be text-only", zap.Error(err))
		_ = embedder.Close()
		return vectorindex.NewResilient(nil, logger)
	}

	logger.Info("Vector backend initialized",
		zap.String("provider", cfg.VectorIndex.Provider))

	return vectorindex.NewResilient(backend, logger)
}
