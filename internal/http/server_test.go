package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/auth"
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/search"
	"github.com/fyrsmithlabs/vaultd/internal/vault"
)

// stubService is a scriptable EntryService.
type stubService struct {
	entry   *knowledge.Entry
	page    *knowledge.Page
	results []search.Result
	err     error

	lastOwner string
	lastLimit int
	lastQuery string
}

func (s *stubService) Create(_ context.Context, ownerID string, _ vault.CreateInput) (*knowledge.Entry, error) {
	s.lastOwner = ownerID
	return s.entry, s.err
}

func (s *stubService) Get(_ context.Context, ownerID, _ string) (*knowledge.Entry, error) {
	s.lastOwner = ownerID
	return s.entry, s.err
}

func (s *stubService) Update(_ context.Context, ownerID, _ string, _ vault.UpdateInput) (*knowledge.Entry, error) {
	s.lastOwner = ownerID
	return s.entry, s.err
}

func (s *stubService) Delete(_ context.Context, ownerID, _ string) error {
	s.lastOwner = ownerID
	return s.err
}

func (s *stubService) List(_ context.Context, ownerID string, limit int, _ string) (*knowledge.Page, error) {
	s.lastOwner = ownerID
	s.lastLimit = limit
	return s.page, s.err
}

func (s *stubService) Search(_ context.Context, ownerID, query string, limit int) ([]search.Result, error) {
	s.lastOwner = ownerID
	s.lastQuery = query
	s.lastLimit = limit
	return s.results, s.err
}

func newTestServer(t *testing.T, svc EntryService) *Server {
	t.Helper()
	srv, err := NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	if authed {
		req.Header.Set(auth.UserHeader, "alice")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	rec := doRequest(srv, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	rec := doRequest(srv, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	rec := doRequest(srv, http.MethodGet, "/api/v1/entries", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CreateEntry(t *testing.T) {
	svc := &stubService{entry: &knowledge.Entry{ID: "e1", Title: "note"}}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodPost, "/api/v1/entries", `{"source":"a note","tags":["AI"]}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var entry knowledge.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "e1", entry.ID)

	// Owner is derived from the header, never the body.
	want, err := auth.DeriveOwnerID("alice")
	require.NoError(t, err)
	assert.Equal(t, want, svc.lastOwner)
}

func TestServer_CreateEntry_ValidationError(t *testing.T) {
	svc := &stubService{err: knowledge.ErrValidation}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodPost, "/api/v1/entries", `{"source":""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetEntry_NotFound(t *testing.T) {
	svc := &stubService{err: knowledge.ErrNotFound}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/entries/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListEntries(t *testing.T) {
	svc := &stubService{page: &knowledge.Page{
		Entries:    []*knowledge.Entry{{ID: "e1"}, {ID: "e2"}},
		NextCursor: "e2",
	}}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/entries?limit=2", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.lastLimit)

	var resp ListEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, "e2", resp.NextCursor)
}

func TestServer_ListEntries_EmptyPageIsArray(t *testing.T) {
	svc := &stubService{page: &knowledge.Page{}}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/entries", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestServer_UpdateEntry(t *testing.T) {
	svc := &stubService{entry: &knowledge.Entry{ID: "e1", Title: "renamed"}}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodPatch, "/api/v1/entries/e1", `{"title":"renamed"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_DeleteEntry(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	rec := doRequest(srv, http.MethodDelete, "/api/v1/entries/e1", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_Search(t *testing.T) {
	similarity := 0.9
	svc := &stubService{results: []search.Result{
		{Entry: &knowledge.Entry{ID: "v1"}, Similarity: &similarity, Source: search.SourceVector},
		{Entry: &knowledge.Entry{ID: "t1"}, Source: search.SourceText},
	}}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/search?q=AI&limit=5", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AI", svc.lastQuery)
	assert.Equal(t, 5, svc.lastLimit)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "v1", resp.Results[0].Entry.ID)
	require.NotNil(t, resp.Results[0].Similarity)
	assert.InDelta(t, 0.9, *resp.Results[0].Similarity, 1e-9)
	assert.Nil(t, resp.Results[1].Similarity)
}

func TestServer_Search_EmptyQuery(t *testing.T) {
	svc := &stubService{err: knowledge.ErrValidation}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/search?q=", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Search_NoResultsIsArray(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	rec := doRequest(srv, http.MethodGet, "/api/v1/search?q=nothing", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestServer_InternalError(t *testing.T) {
	svc := &stubService{err: errors.New("disk on fire")}
	srv := newTestServer(t, svc)

	rec := doRequest(srv, http.MethodGet, "/api/v1/entries/e1", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal detail never leaks to the client.
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}
