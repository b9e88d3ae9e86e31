package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("vaultd.vectorindex.chromem")

// Compile-time check that ChromemBackend implements Backend.
var _ Backend = (*ChromemBackend)(nil)

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/vaultd/vectorindex"
	Path string

	// Collection is the collection name for entry vectors.
	// Default: "vaultd_entries"
	Collection string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/vaultd/vectorindex"
	}
	if c.Collection == "" {
		c.Collection = "vaultd_entries"
	}
}

// ChromemBackend implements Backend using chromem-go.
//
// chromem-go is an embeddable pure-Go vector database with persistence
// to gob files, so the default vaultd setup needs no external vector
// service.
type ChromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger
}

// NewChromemBackend creates a ChromemBackend with the given configuration.
func NewChromemBackend(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemBackend, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	expanded, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expanded, err)
	}

	db, err := chromem.NewPersistentDB(expanded, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(config.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem vector backend initialized",
		zap.String("path", expanded),
		zap.String("collection", config.Collection),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemBackend{
		db:         db,
		collection: collection,
		embedder:   embedder,
		config:     config,
		logger:     logger,
	}, nil
}

// Upsert stores or overwrites the vector for id. chromem keys
// documents by id, so adding an existing id replaces it in place.
func (b *ChromemBackend) Upsert(ctx context.Context, id, text string, metadata map[string]any) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}

	embedding, err := b.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata:  stringifyMetadata(metadata),
	}
	if err := b.collection.AddDocument(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding document %s: %w", id, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Remove deletes the vector for id.
func (b *ChromemBackend) Remove(ctx context.Context, id string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	if err := b.collection.Delete(ctx, nil, nil, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// QueryNearest returns up to limit hits by ascending distance.
func (b *ChromemBackend) QueryNearest(ctx context.Context, text string, limit int) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.QueryNearest")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if limit < 1 {
		return nil, nil
	}

	// chromem rejects queries asking for more results than documents.
	if count := b.collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := b.collection.Query(ctx, text, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{
			ID:       res.ID,
			Distance: 1 - float64(res.Similarity),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// Close releases resources. chromem persists synchronously, so there
// is nothing to flush.
func (b *ChromemBackend) Close() error {
	return nil
}

func stringifyMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
