package http

import (
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/search"
)

// CreateEntryRequest is the request body for POST /api/v1/entries.
type CreateEntryRequest struct {
	Source string          `json:"source"`
	Tags   []knowledge.Tag `json:"tags,omitempty"`
}

// UpdateEntryRequest is the request body for PATCH /api/v1/entries/:id.
// Absent fields are left unchanged.
type UpdateEntryRequest struct {
	Title *string          `json:"title,omitempty"`
	Text  *string          `json:"text,omitempty"`
	Tags  *[]knowledge.Tag `json:"tags,omitempty"`
}

// ListEntriesResponse is the response body for GET /api/v1/entries.
type ListEntriesResponse struct {
	Entries    []*knowledge.Entry `json:"entries"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// SearchResponse is the response body for GET /api/v1/search.
type SearchResponse struct {
	Results []search.Result `json:"results"`
}
