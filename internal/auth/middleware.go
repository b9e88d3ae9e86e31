package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// UserHeader carries the authenticated username, set by the fronting
// proxy after it has verified the session.
const UserHeader = "X-Vaultd-User"

// ownerContextKey is the echo context key holding the derived owner id.
const ownerContextKey = "vaultd.owner_id"

// Middleware rejects requests without an authenticated user and stores
// the derived owner id on the request context.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID, err := DeriveOwnerID(c.Request().Header.Get(UserHeader))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			c.Set(ownerContextKey, ownerID)
			return next(c)
		}
	}
}

// OwnerID returns the owner id stored by Middleware, or "" when the
// request never passed through it.
func OwnerID(c echo.Context) string {
	if v, ok := c.Get(ownerContextKey).(string); ok {
		return v
	}
	return ""
}
