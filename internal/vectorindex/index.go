// Package vectorindex adapts an external approximate-nearest-neighbour
// text index behind a stable, always-available-looking client.
//
// Two layers:
//
//   - Backend: a fallible adapter over a concrete vector store
//     (embedded chromem-go or an external Qdrant server).
//   - Index: the total client the rest of vaultd sees. Every method
//     returns a value and never an error; backend failures flip the
//     client into a sticky degraded state instead (see Resilient).
//
// The embedding backend is an optional enhancement, not a dependency
// the rest of the system can block on.
package vectorindex

import (
	"context"
	"errors"
)

// Sentinel errors for vector index operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector backend")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Hit is one nearest-neighbour result.
type Hit struct {
	// ID is the vector key, equal to the entry id that was upserted.
	ID string

	// Distance is the similarity distance; lower is more similar.
	Distance float64
}

// Backend is the fallible adapter over a concrete vector store.
// Implementations: ChromemBackend (embedded), QdrantBackend (gRPC).
type Backend interface {
	// Upsert stores or overwrites the vector for id. Re-indexing the
	// same id replaces the prior vector in place.
	Upsert(ctx context.Context, id, text string, metadata map[string]any) error

	// Remove deletes the vector for id. Removing an unknown id is not
	// an error.
	Remove(ctx context.Context, id string) error

	// QueryNearest returns up to limit hits ordered by ascending
	// distance (most similar first).
	QueryNearest(ctx context.Context, text string, limit int) ([]Hit, error)

	// Close releases backend resources.
	Close() error
}

// State is the availability state of an Index.
type State int32

const (
	// StateUninitialized means no backend call has completed yet.
	StateUninitialized State = iota

	// StateAvailable means the last backend interaction succeeded.
	StateAvailable

	// StateDegraded means a backend call failed. Degraded is sticky
	// for the remainder of the process; the backend is not retried.
	StateDegraded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAvailable:
		return "available"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Index is the total (never-failing) client used by the write path and
// the hybrid search engine. Construct one per process and share it;
// the availability state lives inside it.
type Index interface {
	// Upsert stores the vector for id best-effort and returns the id
	// unchanged, even when the backend is unavailable, so callers can
	// record it as a best-effort reference.
	Upsert(ctx context.Context, id, text string, metadata map[string]any) string

	// Remove deletes the vector for id best-effort.
	Remove(ctx context.Context, id string)

	// QueryNearest returns up to limit hits by ascending distance, or
	// an empty slice when the backend is unavailable or fails.
	QueryNearest(ctx context.Context, text string, limit int) []Hit

	// State reports the current availability state.
	State() State

	// Close releases backend resources.
	Close() error
}
