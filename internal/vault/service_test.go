package vault_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/extract"
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/search"
	"github.com/fyrsmithlabs/vaultd/internal/vault"
	"github.com/fyrsmithlabs/vaultd/internal/vectorindex"
)

// memStore is an in-memory EntryStore for service tests.
type memStore struct {
	entries map[string]*knowledge.Entry
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*knowledge.Entry)}
}

func (m *memStore) Create(_ context.Context, e *knowledge.Entry) (*knowledge.Entry, error) {
	m.nextID++
	stored := *e
	stored.ID = fmt.Sprintf("id-%d", m.nextID)
	m.entries[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memStore) GetByID(_ context.Context, id, ownerID string) (*knowledge.Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return nil, knowledge.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (m *memStore) Update(_ context.Context, id, ownerID string, fields knowledge.UpdateFields) (*knowledge.Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return nil, knowledge.ErrNotFound
	}
	if fields.Title != nil {
		e.Title = *fields.Title
	}
	if fields.TextForEmbedding != nil {
		e.TextForEmbedding = *fields.TextForEmbedding
	}
	if fields.Tags != nil {
		e.Tags = *fields.Tags
	}
	if fields.VectorID != nil {
		e.VectorID = *fields.VectorID
	}
	out := *e
	return &out, nil
}

func (m *memStore) Delete(_ context.Context, id, ownerID string) error {
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return knowledge.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) List(_ context.Context, ownerID string, limit int, _ string) (*knowledge.Page, error) {
	page := &knowledge.Page{}
	for _, e := range m.entries {
		if e.OwnerID != ownerID {
			continue
		}
		out := *e
		page.Entries = append(page.Entries, &out)
		if len(page.Entries) == limit {
			break
		}
	}
	return page, nil
}

func (m *memStore) FindByText(_ context.Context, _, _ string, _ []string, _ int) ([]*knowledge.Entry, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

// recordingIndex implements vault.Index with a scriptable state.
type recordingIndex struct {
	state    vectorindex.State
	upserts  []string
	removals []string
}

func (r *recordingIndex) Upsert(_ context.Context, id, _ string, _ map[string]any) string {
	r.upserts = append(r.upserts, id)
	return id
}

func (r *recordingIndex) Remove(_ context.Context, id string) {
	r.removals = append(r.removals, id)
}

func (r *recordingIndex) State() vectorindex.State { return r.state }

// recordingSearcher captures the clamped limit.
type recordingSearcher struct {
	lastLimit int
	lastQuery string
	results   []search.Result
}

func (r *recordingSearcher) Search(_ context.Context, _, query string, limit int) ([]search.Result, error) {
	r.lastQuery = query
	r.lastLimit = limit
	return r.results, nil
}

// fixedExtractor always returns the same content.
type fixedExtractor struct {
	title string
	text  string
	err   error
}

func (f fixedExtractor) Extract(_ context.Context, _ string, _ knowledge.ContentType) (*extract.Extracted, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Extracted{Title: f.title, Text: f.text}, nil
}

type fixture struct {
	svc      *vault.Service
	store    *memStore
	index    *recordingIndex
	searcher *recordingSearcher
}

func newFixture(t *testing.T, extractor extract.Extractor) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		index:    &recordingIndex{state: vectorindex.StateAvailable},
		searcher: &recordingSearcher{},
	}
	f.svc = vault.NewService(f.store, f.index, f.searcher, extractor, vault.Config{DefaultLimit: 10, MaxLimit: 50}, zap.NewNop())
	return f
}

func TestService_CreateTextEntry(t *testing.T) {
	f := newFixture(t, nil)

	entry, err := f.svc.Create(context.Background(), "alice", vault.CreateInput{
		Source: "the piotroski f-score grades financial strength on nine signals",
		Tags:   []knowledge.Tag{"Investing", "Learning"},
	})
	require.NoError(t, err)

	assert.Equal(t, knowledge.ContentTypeText, entry.ContentType)
	assert.Equal(t, "the piotroski f-score grades financial strength on nine signals", entry.Title)
	assert.True(t, strings.HasPrefix(entry.TextForEmbedding, entry.Title+"\n\n"))
	assert.Equal(t, "alice", entry.OwnerID)

	// Healthy index: vector id recorded, equal to the entry id.
	assert.Equal(t, entry.ID, entry.VectorID)
	assert.Equal(t, []string{entry.ID}, f.index.upserts)
}

func TestService_CreateLongTextTruncatesTitle(t *testing.T) {
	f := newFixture(t, nil)

	long := strings.Repeat("a", 300)
	entry, err := f.svc.Create(context.Background(), "alice", vault.CreateInput{Source: long})
	require.NoError(t, err)

	assert.Len(t, entry.Title, 100)
	assert.Equal(t, long, entry.OriginalSource)
}

func TestService_CreateDegradedIndexSkipsVectorID(t *testing.T) {
	f := newFixture(t, nil)
	f.index.state = vectorindex.StateDegraded

	entry, err := f.svc.Create(context.Background(), "alice", vault.CreateInput{Source: "some note"})
	require.NoError(t, err)

	assert.Empty(t, entry.VectorID)
	stored, err := f.store.GetByID(context.Background(), entry.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, stored.VectorID)
}

func TestService_CreateUsesExtractor(t *testing.T) {
	f := newFixture(t, fixedExtractor{title: "Video Title", text: "Video Title by Channel"})

	entry, err := f.svc.Create(context.Background(), "alice", vault.CreateInput{
		Source: "https://youtu.be/abc",
	})
	require.NoError(t, err)

	assert.Equal(t, knowledge.ContentTypeYouTubeLink, entry.ContentType)
	assert.Equal(t, "Video Title", entry.Title)
	assert.Equal(t, "Video Title\n\nVideo Title by Channel", entry.TextForEmbedding)
	assert.Equal(t, "https://youtu.be/abc", entry.OriginalSource)
}

func TestService_CreateFallsBackWhenExtractionFails(t *testing.T) {
	f := newFixture(t, fixedExtractor{err: extract.ErrExtractionUnavailable})

	entry, err := f.svc.Create(context.Background(), "alice", vault.CreateInput{
		Source: "https://youtu.be/unreachable",
	})
	require.NoError(t, err)

	// Raw source survives as both title and body.
	assert.Equal(t, "https://youtu.be/unreachable", entry.Title)
	assert.Contains(t, entry.TextForEmbedding, "https://youtu.be/unreachable")
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "", vault.CreateInput{Source: "x"})
	assert.ErrorIs(t, err, knowledge.ErrValidation)

	_, err = f.svc.Create(ctx, "alice", vault.CreateInput{Source: "   "})
	assert.ErrorIs(t, err, knowledge.ErrValidation)

	_, err = f.svc.Create(ctx, "alice", vault.CreateInput{Source: "x", Tags: []knowledge.Tag{"NotATag"}})
	assert.ErrorIs(t, err, knowledge.ErrValidation)
}

func TestService_UpdateReembedsEveryTime(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, "alice", vault.CreateInput{Source: "original body"})
	require.NoError(t, err)
	require.Len(t, f.index.upserts, 1)

	// Even a tags-only update re-embeds.
	tags := []knowledge.Tag{"AI"}
	updated, err := f.svc.Update(ctx, "alice", entry.ID, vault.UpdateInput{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, tags, updated.Tags)
	assert.Len(t, f.index.upserts, 2)
}

func TestService_UpdateTitleRecombinesText(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, "alice", vault.CreateInput{Source: "body text"})
	require.NoError(t, err)

	title := "New title"
	updated, err := f.svc.Update(ctx, "alice", entry.ID, vault.UpdateInput{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "New title\n\nbody text", updated.TextForEmbedding)
}

func TestService_UpdateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, "alice", "id", vault.UpdateInput{})
	assert.ErrorIs(t, err, knowledge.ErrValidation)

	blank := "   "
	_, err = f.svc.Update(ctx, "alice", "id", vault.UpdateInput{Title: &blank})
	assert.ErrorIs(t, err, knowledge.ErrValidation)

	title := "ok"
	_, err = f.svc.Update(ctx, "alice", "missing", vault.UpdateInput{Title: &title})
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestService_DeleteRemovesVector(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, "alice", vault.CreateInput{Source: "doomed"})
	require.NoError(t, err)
	require.NotEmpty(t, entry.VectorID)

	require.NoError(t, f.svc.Delete(ctx, "alice", entry.ID))

	assert.Equal(t, []string{entry.VectorID}, f.index.removals)
	_, err = f.svc.Get(ctx, "alice", entry.ID)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestService_DeleteUnindexedEntrySkipsRemove(t *testing.T) {
	f := newFixture(t, nil)
	f.index.state = vectorindex.StateDegraded
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, "alice", vault.CreateInput{Source: "never indexed"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "alice", entry.ID))
	assert.Empty(t, f.index.removals)
}

func TestService_DeleteWrongOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, "alice", vault.CreateInput{Source: "private"})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, "mallory", entry.ID)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestService_SearchClampsLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, "alice", "query", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, f.searcher.lastLimit)

	_, err = f.svc.Search(ctx, "alice", "query", 500)
	require.NoError(t, err)
	assert.Equal(t, 50, f.searcher.lastLimit)

	_, err = f.svc.Search(ctx, "alice", "query", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, f.searcher.lastLimit)
}

func TestService_SearchValidatesQuery(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Search(context.Background(), "alice", "  ", 5)
	assert.ErrorIs(t, err, knowledge.ErrValidation)
}

func TestService_SearchTrimsQuery(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Search(context.Background(), "alice", "  AI  ", 5)
	require.NoError(t, err)
	assert.Equal(t, "AI", f.searcher.lastQuery)
}
