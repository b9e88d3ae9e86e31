package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vaultd/internal/auth"
)

func TestDeriveOwnerID(t *testing.T) {
	a, err := auth.DeriveOwnerID("alice")
	require.NoError(t, err)
	b, err := auth.DeriveOwnerID("alice")
	require.NoError(t, err)
	c, err := auth.DeriveOwnerID("bob")
	require.NoError(t, err)

	// Deterministic per username, distinct across usernames.
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestDeriveOwnerID_Empty(t *testing.T) {
	_, err := auth.DeriveOwnerID("")
	assert.ErrorIs(t, err, auth.ErrEmptyUsername)

	_, err = auth.DeriveOwnerID("   ")
	assert.ErrorIs(t, err, auth.ErrEmptyUsername)
}

func TestMiddleware_SetsOwner(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.UserHeader, "alice")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := auth.Middleware()(func(c echo.Context) error {
		got = auth.OwnerID(c)
		return nil
	})
	require.NoError(t, handler(c))

	want, err := auth.DeriveOwnerID("alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMiddleware_MissingUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := auth.Middleware()(func(echo.Context) error { return nil })
	err := handler(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestOwnerID_WithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Empty(t, auth.OwnerID(c))
}
