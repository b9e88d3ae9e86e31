package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("vaultd.vectorindex.qdrant")

// Compile-time check that QdrantBackend implements Backend.
var _ Backend = (*QdrantBackend)(nil)

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int

	// Collection is the collection for entry vectors.
	// Default: "vaultd_entries"
	Collection string

	// VectorSize is the embedding dimensionality. Must match the
	// embedder's output dimension. Default: 384
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 8MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "vaultd_entries"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 8 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// QdrantBackend implements Backend using Qdrant's native gRPC client.
//
// Entry ids are uuids, so they are used directly as Qdrant point ids;
// the id is also mirrored into the payload for retrieval.
type QdrantBackend struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantBackend creates a QdrantBackend, connects, health-checks the
// server, and ensures the collection exists.
func NewQdrantBackend(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantBackend, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	b := &QdrantBackend{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	if err := b.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant vector backend initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)

	return b, nil
}

func (b *QdrantBackend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", b.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     b.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", b.config.Collection, err)
	}
	return nil
}

// Upsert stores or overwrites the vector for id.
func (b *QdrantBackend) Upsert(ctx context.Context, id, text string, metadata map[string]any) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("id", id),
		attribute.String("collection", b.config.Collection),
	)

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: id must be a uuid, got %q", ErrInvalidConfig, id)
	}

	embedding, err := b.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	payload := map[string]*qdrant.Value{
		"id": {Kind: &qdrant.Value_StringValue{StringValue: id}},
	}
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		}
	}

	_, err = b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.config.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: payload,
		}},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting point %s: %w", id, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Remove deletes the vector for id.
func (b *QdrantBackend) Remove(ctx context.Context, id string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.config.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewIDUUID(id)}},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting point %s: %w", id, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// QueryNearest returns up to limit hits by ascending distance.
// Qdrant reports cosine similarity scores; distance = 1 - score.
func (b *QdrantBackend) QueryNearest(ctx context.Context, text string, limit int) ([]Hit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.QueryNearest")
	defer span.End()
	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("collection", b.config.Collection),
	)

	if limit < 1 {
		return nil, nil
	}

	queryVector, err := b.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	results, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.config.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", b.config.Collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, point := range results {
		id := pointID(point)
		if id == "" {
			continue
		}
		hits = append(hits, Hit{ID: id, Distance: 1 - float64(point.Score)})
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// pointID recovers the entry id from a scored point, preferring the
// payload mirror over the point id.
func pointID(point *qdrant.ScoredPoint) string {
	if point.Payload != nil {
		if v, ok := point.Payload["id"]; ok {
			if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
				return s.StringValue
			}
		}
	}
	if point.Id != nil {
		return point.Id.GetUuid()
	}
	return ""
}

// Close closes the gRPC connection.
func (b *QdrantBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
