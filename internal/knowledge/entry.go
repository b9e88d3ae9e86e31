// Package knowledge defines the knowledge entry model and its
// authoritative store.
package knowledge

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for entry operations.
var (
	// ErrNotFound is returned when an entry does not exist or does not
	// belong to the requesting owner. The two cases are deliberately
	// indistinguishable so non-owners cannot probe for existence.
	ErrNotFound = errors.New("entry not found")

	// ErrValidation indicates invalid input, rejected before touching
	// any store.
	ErrValidation = errors.New("validation failed")
)

// ContentType classifies what the user submitted.
type ContentType string

const (
	ContentTypeText        ContentType = "TEXT"
	ContentTypeYouTubeLink ContentType = "YOUTUBE_LINK"
	ContentTypeXPostLink   ContentType = "X_POST_LINK"
)

// Valid reports whether t is a member of the closed content type set.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeYouTubeLink, ContentTypeXPostLink:
		return true
	}
	return false
}

// Tag is a label from the fixed vaultd vocabulary.
type Tag string

// Vocabulary is the fixed set of permitted tags.
var Vocabulary = []Tag{
	"To Do Research On",
	"Important",
	"Learning",
	"Investing",
	"AI",
	"Finance",
}

// ValidTag reports whether t is in the vocabulary.
func ValidTag(t Tag) bool {
	for _, v := range Vocabulary {
		if t == v {
			return true
		}
	}
	return false
}

// ValidateTags checks every tag against the vocabulary. An empty set
// is legal.
func ValidateTags(tags []Tag) error {
	for _, t := range tags {
		if !ValidTag(t) {
			return fmt.Errorf("%w: unknown tag %q", ErrValidation, t)
		}
	}
	return nil
}

// Entry is the unit of storage and retrieval.
type Entry struct {
	// ID is assigned at creation and immutable.
	ID string `json:"id"`

	// Title is a short human-readable label.
	Title string `json:"title"`

	// TextForEmbedding is the searchable body used for both keyword
	// matching and embedding (title prepended for searchability).
	TextForEmbedding string `json:"text_for_embedding"`

	// OriginalSource is the raw user input (URL or literal text).
	OriginalSource string `json:"original_source,omitempty"`

	ContentType ContentType `json:"content_type"`

	// Tags is an unordered subset of Vocabulary.
	Tags []Tag `json:"tags"`

	// VectorID references the vector index entry. Empty means "not
	// indexed"; when set it equals ID (the persisted id is used as the
	// vector key and re-indexing overwrites in place).
	VectorID string `json:"vector_id,omitempty"`

	// OwnerID scopes every read and write.
	OwnerID string `json:"owner_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
