package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "openai"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_TEI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider: "tei",
		Model:    "BAAI/bge-small-en-v1.5",
		BaseURL:  "http://localhost:8080",
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 384, p.Dimension())
}

func TestNewProvider_TEI_RequiresBaseURL(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "tei"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"some-large-model", 1024},
		{"some-base-model", 768},
		{"unknown", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
