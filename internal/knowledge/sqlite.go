package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Compile-time check that SQLiteStore implements EntryStore.
var _ EntryStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	text_for_embedding TEXT NOT NULL,
	original_source    TEXT NOT NULL DEFAULT '',
	content_type       TEXT NOT NULL,
	tags               TEXT NOT NULL DEFAULT '[]',
	vector_id          TEXT NOT NULL DEFAULT '',
	owner_id           TEXT NOT NULL,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_owner_created ON entries(owner_id, created_at DESC, id DESC);
`

// SQLiteStore implements EntryStore on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// runs schema setup. Path "~" prefixes are expanded.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	expanded, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if dir := filepath.Dir(expanded); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("entry store opened", zap.String("path", expanded))

	return &SQLiteStore{db: db, logger: logger}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create persists a new entry, assigning id and timestamps.
func (s *SQLiteStore) Create(ctx context.Context, e *Entry) (*Entry, error) {
	if e.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id required", ErrValidation)
	}
	if !e.ContentType.Valid() {
		return nil, fmt.Errorf("%w: invalid content type %q", ErrValidation, e.ContentType)
	}
	if err := ValidateTags(e.Tags); err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	stored := *e
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	tags, err := marshalTags(stored.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, title, text_for_embedding, original_source, content_type, tags, vector_id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.Title, stored.TextForEmbedding, stored.OriginalSource,
		string(stored.ContentType), tags, stored.VectorID, stored.OwnerID,
		formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}

	return &stored, nil
}

// GetByID returns the owner's entry or ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, id, ownerID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting entry %s: %w", id, err)
	}
	return e, nil
}

// Update applies the set fields. ErrNotFound when id is not the owner's.
func (s *SQLiteStore) Update(ctx context.Context, id, ownerID string, fields UpdateFields) (*Entry, error) {
	set := []string{"updated_at = ?"}
	args := []any{formatTime(timeNow().UTC())}

	if fields.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.TextForEmbedding != nil {
		set = append(set, "text_for_embedding = ?")
		args = append(args, *fields.TextForEmbedding)
	}
	if fields.OriginalSource != nil {
		set = append(set, "original_source = ?")
		args = append(args, *fields.OriginalSource)
	}
	if fields.ContentType != nil {
		if !fields.ContentType.Valid() {
			return nil, fmt.Errorf("%w: invalid content type %q", ErrValidation, *fields.ContentType)
		}
		set = append(set, "content_type = ?")
		args = append(args, string(*fields.ContentType))
	}
	if fields.Tags != nil {
		if err := ValidateTags(*fields.Tags); err != nil {
			return nil, err
		}
		tags, err := marshalTags(*fields.Tags)
		if err != nil {
			return nil, err
		}
		set = append(set, "tags = ?")
		args = append(args, tags)
	}
	if fields.VectorID != nil {
		set = append(set, "vector_id = ?")
		args = append(args, *fields.VectorID)
	}

	args = append(args, id, ownerID)
	res, err := s.db.ExecContext(ctx,
		"UPDATE entries SET "+strings.Join(set, ", ")+" WHERE id = ? AND owner_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}

	return s.GetByID(ctx, id, ownerID)
}

// Delete removes the owner's entry. ErrNotFound when absent.
func (s *SQLiteStore) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns one page ordered by created_at descending, with keyset
// pagination on (created_at, id).
func (s *SQLiteStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}

	query := selectColumns + ` WHERE owner_id = ?`
	args := []any{ownerID}

	if cursor != "" {
		var createdAt string
		err := s.db.QueryRowContext(ctx,
			`SELECT created_at FROM entries WHERE id = ? AND owner_id = ?`, cursor, ownerID).Scan(&createdAt)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: unknown cursor %q", ErrValidation, cursor)
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, createdAt, createdAt, cursor)
	}

	// Probe one row beyond the page to detect whether more exist.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	page := &Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = entries[limit-1].ID
	}
	return page, nil
}

// FindByText returns entries containing substring in title, searchable
// text, or serialized tags, case-insensitively (SQLite LIKE folds
// ASCII case), newest first.
func (s *SQLiteStore) FindByText(ctx context.Context, ownerID, substring string, excludeIDs []string, limit int) ([]*Entry, error) {
	if limit < 1 {
		return nil, nil
	}

	pattern := "%" + escapeLike(substring) + "%"
	query := selectColumns + ` WHERE owner_id = ?
		AND (title LIKE ? ESCAPE '\' OR text_for_embedding LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`
	args := []any{ownerID, pattern, pattern, pattern}

	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(excludeIDs)-1) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

const selectColumns = `SELECT id, title, text_for_embedding, original_source, content_type, tags, vector_id, owner_id, created_at, updated_at FROM entries`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                    Entry
		contentType          string
		tags                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &e.Title, &e.TextForEmbedding, &e.OriginalSource,
		&contentType, &tags, &e.VectorID, &e.OwnerID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.ContentType = ContentType(contentType)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags for entry %s: %w", e.ID, err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for entry %s: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for entry %s: %w", e.ID, err)
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

func marshalTags(tags []Tag) (string, error) {
	if tags == nil {
		tags = []Tag{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshaling tags: %w", err)
	}
	return string(data), nil
}

// formatTime stores timestamps as RFC3339Nano so lexical ordering in
// SQL matches chronological ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
