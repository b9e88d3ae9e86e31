package vectorindex

import (
	"fmt"

	"go.uber.org/zap"
)

// NewBackend creates a Backend from the provider name.
//
//   - "chromem" (default): embedded chromem-go, no external service.
//   - "qdrant": external Qdrant server over gRPC.
func NewBackend(provider string, chromemCfg ChromemConfig, qdrantCfg QdrantConfig, embedder Embedder, logger *zap.Logger) (Backend, error) {
	switch provider {
	case "chromem", "":
		return NewChromemBackend(chromemCfg, embedder, logger)
	case "qdrant":
		return NewQdrantBackend(qdrantCfg, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, provider)
	}
}
