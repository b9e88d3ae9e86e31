// Package search implements hybrid retrieval over knowledge entries:
// a semantic tier backed by the vector index, topped up by a substring
// tier from the authoritative store.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/vectorindex"
)

const instrumentationName = "github.com/fyrsmithlabs/vaultd/internal/search"

var tracer = otel.Tracer("vaultd.search")

// Source identifies which tier produced a result.
type Source string

const (
	SourceVector Source = "vector"
	SourceText   Source = "text"
)

// Result is one ranked search hit.
type Result struct {
	Entry *knowledge.Entry `json:"entry"`

	// Similarity is 1 - cosine distance for vector results; nil for
	// text results, which carry no meaningful score.
	Similarity *float64 `json:"similarity,omitempty"`

	Source Source `json:"source"`
}

// Index is the vector tier consumed by the engine. All methods are
// total; a degraded index simply returns no hits.
type Index interface {
	QueryNearest(ctx context.Context, text string, limit int) []vectorindex.Hit
}

// EntryFinder is the slice of the entry store the engine needs.
type EntryFinder interface {
	GetByID(ctx context.Context, id, ownerID string) (*knowledge.Entry, error)
	FindByText(ctx context.Context, ownerID, substring string, excludeIDs []string, limit int) ([]*knowledge.Entry, error)
}

// Engine runs hybrid searches. Vector results always rank before text
// results; within the vector tier, order follows ascending distance as
// reported by the index.
type Engine struct {
	index  Index
	store  EntryFinder
	logger *zap.Logger

	searchesTotal metric.Int64Counter
}

// NewEngine creates a hybrid search engine.
func NewEngine(index Index, store EntryFinder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		index:  index,
		store:  store,
		logger: logger,
	}

	meter := otel.Meter(instrumentationName)
	searchesTotal, err := meter.Int64Counter(
		"vaultd.search.requests_total",
		metric.WithDescription("Hybrid search requests by tier usage (vector_only, text_only, mixed, empty)."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create search counter", zap.Error(err))
	}
	e.searchesTotal = searchesTotal

	return e
}

// Search returns up to limit results for the owner's query.
//
// Half the budget (rounded up) goes to the vector tier. Hits are
// resolved against the store; a hit whose entry no longer exists (or
// belongs to someone else) is dropped silently, since the index is
// best-effort and may lag deletions. The remainder of the budget is
// filled by substring matching, excluding ids the vector tier already
// returned.
func (e *Engine) Search(ctx context.Context, ownerID, query string, limit int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query required", knowledge.ErrValidation)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", knowledge.ErrValidation, limit)
	}

	vectorBudget := (limit + 1) / 2

	results := make([]Result, 0, limit)
	seen := make([]string, 0, vectorBudget)

	hits := e.index.QueryNearest(ctx, query, vectorBudget)
	for _, hit := range hits {
		entry, err := e.store.GetByID(ctx, hit.ID, ownerID)
		if err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				// Stale or cross-owner vector; the store is authoritative.
				e.logger.Debug("skipping unresolvable vector hit", zap.String("id", hit.ID))
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("resolving vector hit %s: %w", hit.ID, err)
		}

		similarity := 1 - hit.Distance
		results = append(results, Result{
			Entry:      entry,
			Similarity: &similarity,
			Source:     SourceVector,
		})
		seen = append(seen, entry.ID)
		if len(results) == limit {
			break
		}
	}
	vectorCount := len(results)

	if remaining := limit - len(results); remaining > 0 {
		entries, err := e.store.FindByText(ctx, ownerID, query, seen, remaining)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("text search: %w", err)
		}
		for _, entry := range entries {
			results = append(results, Result{Entry: entry, Source: SourceText})
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}

	span.SetAttributes(
		attribute.Int("vector_results", vectorCount),
		attribute.Int("text_results", len(results)-vectorCount),
	)
	span.SetStatus(codes.Ok, "success")
	e.recordSearch(ctx, vectorCount, len(results)-vectorCount)

	return results, nil
}

func (e *Engine) recordSearch(ctx context.Context, vectorCount, textCount int) {
	if e.searchesTotal == nil {
		return
	}

	tier := "empty"
	switch {
	case vectorCount > 0 && textCount > 0:
		tier = "mixed"
	case vectorCount > 0:
		tier = "vector_only"
	case textCount > 0:
		tier = "text_only"
	}
	e.searchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}
