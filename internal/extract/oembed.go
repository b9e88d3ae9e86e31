package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
)

// OEmbedConfig holds endpoints for the oEmbed extractor. The defaults
// point at the public YouTube and X endpoints; tests override them.
type OEmbedConfig struct {
	YouTubeEndpoint string
	XEndpoint       string
	Timeout         time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *OEmbedConfig) ApplyDefaults() {
	if c.YouTubeEndpoint == "" {
		c.YouTubeEndpoint = "https://www.youtube.com/oembed"
	}
	if c.XEndpoint == "" {
		c.XEndpoint = "https://publish.twitter.com/oembed"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// OEmbedExtractor resolves YouTube and X links to titles and text via
// the providers' oEmbed endpoints. Plain text passes through untouched.
type OEmbedExtractor struct {
	config OEmbedConfig
	client *http.Client
	logger *zap.Logger
}

// NewOEmbedExtractor creates an OEmbedExtractor.
func NewOEmbedExtractor(config OEmbedConfig, logger *zap.Logger) *OEmbedExtractor {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OEmbedExtractor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// oembedResponse is the subset of the oEmbed payload vaultd reads.
type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	HTML       string `json:"html"`
}

// Extract resolves the source according to its content type. Link
// types that cannot be resolved return ErrExtractionUnavailable so the
// caller can fall back to the raw source.
func (e *OEmbedExtractor) Extract(ctx context.Context, source string, contentType knowledge.ContentType) (*Extracted, error) {
	switch contentType {
	case knowledge.ContentTypeYouTubeLink:
		return e.fromYouTube(ctx, source)
	case knowledge.ContentTypeXPostLink:
		return e.fromX(ctx, source)
	default:
		return &Extracted{Title: firstLine(source), Text: source}, nil
	}
}

func (e *OEmbedExtractor) fromYouTube(ctx context.Context, source string) (*Extracted, error) {
	resp, err := e.fetch(ctx, e.config.YouTubeEndpoint, source)
	if err != nil {
		return nil, err
	}
	if resp.Title == "" {
		return nil, fmt.Errorf("%w: no title in oembed response", ErrExtractionUnavailable)
	}

	text := resp.Title
	if resp.AuthorName != "" {
		text = fmt.Sprintf("%s by %s", resp.Title, resp.AuthorName)
	}
	return &Extracted{Title: resp.Title, Text: text}, nil
}

func (e *OEmbedExtractor) fromX(ctx context.Context, source string) (*Extracted, error) {
	resp, err := e.fetch(ctx, e.config.XEndpoint, source)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(stripHTML(resp.HTML))
	if text == "" {
		return nil, fmt.Errorf("%w: empty post body", ErrExtractionUnavailable)
	}

	title := text
	if resp.AuthorName != "" {
		title = fmt.Sprintf("Post by %s", resp.AuthorName)
	}
	return &Extracted{Title: truncate(title, 100), Text: text}, nil
}

func (e *OEmbedExtractor) fetch(ctx context.Context, endpoint, source string) (*oembedResponse, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint: %v", ErrExtractionUnavailable, err)
	}
	q := u.Query()
	q.Set("url", source)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Debug("oembed fetch failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", ErrExtractionUnavailable, resp.StatusCode)
	}

	var parsed oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrExtractionUnavailable, err)
	}
	return &parsed, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from an oEmbed html snippet, leaving the
// visible text.
func stripHTML(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(strings.TrimSpace(s), 100)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
