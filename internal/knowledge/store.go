package knowledge

import "context"

// UpdateFields holds the mutable entry fields for partial updates.
// Nil pointers leave the stored value untouched.
type UpdateFields struct {
	Title            *string
	TextForEmbedding *string
	OriginalSource   *string
	ContentType      *ContentType
	Tags             *[]Tag
	VectorID         *string
}

// Page is one page of a cursor-paginated listing.
type Page struct {
	Entries []*Entry

	// NextCursor is the id of the last entry in this page, present
	// only when more rows exist beyond it.
	NextCursor string
}

// EntryStore is the authoritative persistence boundary for entries.
//
// Every operation is scoped by owner; a mismatched owner behaves
// exactly like a missing entry (ErrNotFound).
type EntryStore interface {
	// Create persists a new entry. ID, CreatedAt and UpdatedAt are
	// assigned by the store.
	Create(ctx context.Context, e *Entry) (*Entry, error)

	// GetByID returns the entry, or ErrNotFound.
	GetByID(ctx context.Context, id, ownerID string) (*Entry, error)

	// Update applies the set fields and returns the updated entry.
	// Returns ErrNotFound when id does not belong to ownerID.
	Update(ctx context.Context, id, ownerID string, fields UpdateFields) (*Entry, error)

	// Delete removes the entry. Returns ErrNotFound when id does not
	// belong to ownerID.
	Delete(ctx context.Context, id, ownerID string) error

	// List returns entries ordered by creation time descending.
	// cursor is the last-seen entry id from the previous page; empty
	// starts from the newest entry.
	List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error)

	// FindByText returns entries whose title, searchable text or
	// serialized tags contain substring, ordered by creation time
	// descending, skipping ids in excludeIDs. Matching is
	// case-insensitive (ASCII).
	FindByText(ctx context.Context, ownerID, substring string, excludeIDs []string, limit int) ([]*Entry, error)

	// Close releases store resources.
	Close() error
}
