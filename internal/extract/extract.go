// Package extract classifies submitted content and pulls displayable
// titles and text out of supported link types.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
)

// ErrExtractionUnavailable indicates the extractor could not produce
// content for the source. Callers are expected to fall back to storing
// the raw source.
var ErrExtractionUnavailable = errors.New("extraction unavailable")

// Extracted is the result of content extraction.
type Extracted struct {
	Title string
	Text  string
}

// DetectContentType classifies raw user input. YouTube and X links are
// recognized by hostname; everything else is plain text.
func DetectContentType(source string) knowledge.ContentType {
	s := strings.TrimSpace(strings.ToLower(source))
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return knowledge.ContentTypeText
	}

	switch {
	case strings.Contains(s, "youtube.com/") || strings.Contains(s, "youtu.be/"):
		return knowledge.ContentTypeYouTubeLink
	case strings.Contains(s, "x.com/") || strings.Contains(s, "twitter.com/"):
		return knowledge.ContentTypeXPostLink
	default:
		return knowledge.ContentTypeText
	}
}

// Extractor pulls a title and searchable text out of a source of the
// given type.
type Extractor interface {
	Extract(ctx context.Context, source string, contentType knowledge.ContentType) (*Extracted, error)
}

// NopExtractor never extracts anything. It keeps vaultd functional
// when outbound fetching is disabled.
type NopExtractor struct{}

// Extract always reports extraction as unavailable.
func (NopExtractor) Extract(_ context.Context, _ string, _ knowledge.ContentType) (*Extracted, error) {
	return nil, ErrExtractionUnavailable
}
