package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   knowledge.ContentType
	}{
		{"youtube watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", knowledge.ContentTypeYouTubeLink},
		{"youtube short url", "https://youtu.be/dQw4w9WgXcQ", knowledge.ContentTypeYouTubeLink},
		{"x post", "https://x.com/someone/status/123", knowledge.ContentTypeXPostLink},
		{"legacy twitter post", "https://twitter.com/someone/status/123", knowledge.ContentTypeXPostLink},
		{"arbitrary url is text", "https://example.com/article", knowledge.ContentTypeText},
		{"plain text", "remember to read about the piotroski f-score", knowledge.ContentTypeText},
		{"text mentioning youtube without url", "that youtube.com video was great", knowledge.ContentTypeText},
		{"empty", "", knowledge.ContentTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.source))
		})
	}
}

func TestNopExtractor(t *testing.T) {
	_, err := NopExtractor{}.Extract(context.Background(), "anything", knowledge.ContentTypeText)
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
}

func TestOEmbedExtractor_PlainTextPassesThrough(t *testing.T) {
	e := NewOEmbedExtractor(OEmbedConfig{}, zap.NewNop())

	got, err := e.Extract(context.Background(), "first line\nsecond line", knowledge.ContentTypeText)
	require.NoError(t, err)
	assert.Equal(t, "first line", got.Title)
	assert.Equal(t, "first line\nsecond line", got.Text)
}

func TestOEmbedExtractor_YouTube(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://youtu.be/abc", r.URL.Query().Get("url"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"title":       "Value Investing Explained",
			"author_name": "Some Channel",
		})
	}))
	defer srv.Close()

	e := NewOEmbedExtractor(OEmbedConfig{YouTubeEndpoint: srv.URL}, zap.NewNop())
	got, err := e.Extract(context.Background(), "https://youtu.be/abc", knowledge.ContentTypeYouTubeLink)
	require.NoError(t, err)
	assert.Equal(t, "Value Investing Explained", got.Title)
	assert.Equal(t, "Value Investing Explained by Some Channel", got.Text)
}

func TestOEmbedExtractor_XPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"author_name": "someone",
			"html":        `<blockquote><p>Markets are efficient, mostly.</p></blockquote>`,
		})
	}))
	defer srv.Close()

	e := NewOEmbedExtractor(OEmbedConfig{XEndpoint: srv.URL}, zap.NewNop())
	got, err := e.Extract(context.Background(), "https://x.com/someone/status/1", knowledge.ContentTypeXPostLink)
	require.NoError(t, err)
	assert.Equal(t, "Post by someone", got.Title)
	assert.Contains(t, got.Text, "Markets are efficient, mostly.")
}

func TestOEmbedExtractor_UnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOEmbedExtractor(OEmbedConfig{YouTubeEndpoint: srv.URL}, zap.NewNop())
	_, err := e.Extract(context.Background(), "https://youtu.be/gone", knowledge.ContentTypeYouTubeLink)
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
}
