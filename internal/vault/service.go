// Package vault wires the entry store, vector index, extractor and
// search engine into the operations the HTTP layer exposes.
package vault

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/extract"
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/search"
	"github.com/fyrsmithlabs/vaultd/internal/vectorindex"
)

var tracer = otel.Tracer("vaultd.vault")

// maxTitleLen caps derived titles.
const maxTitleLen = 100

// Index is the slice of the vector index the service needs. All
// methods are total; State reports whether indexing actually works.
type Index interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]any) string
	Remove(ctx context.Context, id string)
	State() vectorindex.State
}

// Searcher runs hybrid searches.
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]search.Result, error)
}

// Config holds service-level limits.
type Config struct {
	// DefaultLimit applies when a request omits or zeroes its limit.
	DefaultLimit int

	// MaxLimit caps any requested limit.
	MaxLimit int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 50
	}
}

// Service implements entry lifecycle and search on top of the
// authoritative store, with best-effort vector indexing.
type Service struct {
	store     knowledge.EntryStore
	index     Index
	searcher  Searcher
	extractor extract.Extractor
	config    Config
	logger    *zap.Logger
}

// NewService creates a Service. A nil extractor disables extraction
// and stores raw sources as-is.
func NewService(store knowledge.EntryStore, index Index, searcher Searcher, extractor extract.Extractor, config Config, logger *zap.Logger) *Service {
	config.ApplyDefaults()
	if extractor == nil {
		extractor = extract.NopExtractor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		index:     index,
		searcher:  searcher,
		extractor: extractor,
		config:    config,
		logger:    logger,
	}
}

// CreateInput is the user-facing input for creating an entry.
type CreateInput struct {
	// Source is the raw submission: literal text or a link.
	Source string

	// Tags must come from the fixed vocabulary.
	Tags []knowledge.Tag
}

// Create classifies, extracts, persists and indexes a new entry.
//
// Extraction is best-effort: when the extractor cannot resolve a link,
// the raw source becomes the searchable text. Indexing is best-effort
// too; the entry's VectorID is only recorded when the index accepted
// the vector.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*knowledge.Entry, error) {
	ctx, span := tracer.Start(ctx, "Service.Create")
	defer span.End()

	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		return nil, fmt.Errorf("%w: source required", knowledge.ErrValidation)
	}
	if err := knowledge.ValidateTags(input.Tags); err != nil {
		return nil, err
	}

	contentType := extract.DetectContentType(source)
	span.SetAttributes(attribute.String("content_type", string(contentType)))

	title, text := s.resolveContent(ctx, source, contentType)

	entry, err := s.store.Create(ctx, &knowledge.Entry{
		Title:            title,
		TextForEmbedding: fmt.Sprintf("%s\n\n%s", title, text),
		OriginalSource:   source,
		ContentType:      contentType,
		Tags:             input.Tags,
		OwnerID:          ownerID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	s.reindex(ctx, entry)

	span.SetStatus(codes.Ok, "success")
	return entry, nil
}

// resolveContent runs extraction and falls back to the raw source.
func (s *Service) resolveContent(ctx context.Context, source string, contentType knowledge.ContentType) (title, text string) {
	extracted, err := s.extractor.Extract(ctx, source, contentType)
	if err != nil {
		s.logger.Debug("extraction failed, storing raw source",
			zap.String("content_type", string(contentType)),
			zap.Error(err),
		)
		return deriveTitle(source), source
	}

	title = extracted.Title
	if title == "" {
		title = deriveTitle(source)
	}
	text = extracted.Text
	if text == "" {
		text = source
	}
	return title, text
}

// reindex upserts the entry's vector and records the vector id when
// the index is healthy. Patch failures are logged, not surfaced; the
// store already holds the entry and search degrades gracefully.
func (s *Service) reindex(ctx context.Context, entry *knowledge.Entry) {
	vectorID := s.index.Upsert(ctx, entry.ID, entry.TextForEmbedding, map[string]any{
		"owner_id":     entry.OwnerID,
		"content_type": string(entry.ContentType),
	})

	if s.index.State() == vectorindex.StateDegraded {
		return
	}
	if entry.VectorID == vectorID {
		return
	}

	updated, err := s.store.Update(ctx, entry.ID, entry.OwnerID, knowledge.UpdateFields{VectorID: &vectorID})
	if err != nil {
		s.logger.Warn("failed to record vector id",
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return
	}
	*entry = *updated
}

// UpdateInput holds the user-mutable fields for updates. Nil pointers
// leave fields unchanged.
type UpdateInput struct {
	Title *string
	Text  *string
	Tags  *[]knowledge.Tag
}

func (in UpdateInput) empty() bool {
	return in.Title == nil && in.Text == nil && in.Tags == nil
}

// Update applies a partial update and re-embeds the entry. Re-indexing
// happens on every update, even title-only ones, so the vector always
// reflects the current searchable text.
func (s *Service) Update(ctx context.Context, ownerID, id string, input UpdateInput) (*knowledge.Entry, error) {
	ctx, span := tracer.Start(ctx, "Service.Update")
	defer span.End()
	span.SetAttributes(attribute.String("entry_id", id))

	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: entry id required", knowledge.ErrValidation)
	}
	if input.empty() {
		return nil, fmt.Errorf("%w: no fields to update", knowledge.ErrValidation)
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be blank", knowledge.ErrValidation)
	}
	if input.Tags != nil {
		if err := knowledge.ValidateTags(*input.Tags); err != nil {
			return nil, err
		}
	}

	fields := knowledge.UpdateFields{
		Title: input.Title,
		Tags:  input.Tags,
	}
	if input.Text != nil || input.Title != nil {
		current, err := s.store.GetByID(ctx, id, ownerID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		title := current.Title
		if input.Title != nil {
			title = *input.Title
		}
		text := textBody(current)
		if input.Text != nil {
			text = *input.Text
		}
		combined := fmt.Sprintf("%s\n\n%s", title, text)
		fields.TextForEmbedding = &combined
	}

	entry, err := s.store.Update(ctx, id, ownerID, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.reindex(ctx, entry)

	span.SetStatus(codes.Ok, "success")
	return entry, nil
}

// textBody strips the prepended title from the searchable text, so
// re-combining with a new title does not stack titles.
func textBody(e *knowledge.Entry) string {
	body := strings.TrimPrefix(e.TextForEmbedding, e.Title+"\n\n")
	return body
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*knowledge.Entry, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: entry id required", knowledge.ErrValidation)
	}
	return s.store.GetByID(ctx, id, ownerID)
}

// Delete removes the entry and, best-effort, its vector. The store is
// authoritative: once the row is gone the delete succeeded, whatever
// the index thinks.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := tracer.Start(ctx, "Service.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("entry_id", id))

	if ownerID == "" {
		return fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	if id == "" {
		return fmt.Errorf("%w: entry id required", knowledge.ErrValidation)
	}

	entry, err := s.store.GetByID(ctx, id, ownerID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if entry.VectorID != "" {
		s.index.Remove(ctx, entry.VectorID)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// List returns a page of the owner's entries, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit int, cursor string) (*knowledge.Page, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	return s.store.List(ctx, ownerID, s.clampLimit(limit), cursor)
}

// Search runs a hybrid search for the owner.
func (s *Service) Search(ctx context.Context, ownerID, query string, limit int) ([]search.Result, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", knowledge.ErrValidation)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query required", knowledge.ErrValidation)
	}
	return s.searcher.Search(ctx, ownerID, query, s.clampLimit(limit))
}

func (s *Service) clampLimit(limit int) int {
	if limit < 1 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

// deriveTitle produces a title from raw source text: its first line,
// capped at maxTitleLen characters.
func deriveTitle(source string) string {
	if i := strings.IndexByte(source, '\n'); i >= 0 {
		source = source[:i]
	}
	source = strings.TrimSpace(source)
	if len(source) > maxTitleLen {
		source = source[:maxTitleLen]
	}
	return source
}
