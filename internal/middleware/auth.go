package middleware // middleware provides reusable HTTP middleware for the server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextUserKey is where Identity stores the authenticated user's ID.
const ContextUserKey = "user_id"

// Identity returns a middleware that parses an optional Bearer access
// token.  Tokens are issued by the external identity service and
// signed HS256 with the shared secret.  A valid token puts the user's
// ID into the context under ContextUserKey; an absent header passes
// through as a guest.  A present-but-invalid token is rejected so a
// client never silently degrades to guest with a bad credential.
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "malformed authorization header"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := subjectID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set(ContextUserKey, uid)
			return next(c)
		}
	}
}

// subjectID pulls the numeric user ID out of the sub or user_id claim.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	for _, key := range []string{"sub", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
				return n, true
			}
		case float64:
			if v > 0 {
				return uint64(v), true
			}
		}
	}
	return 0, false
}

// RequireUser rejects requests that did not authenticate.  It must
// run after Identity.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(ContextUserKey).(uint64); !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user's ID from the context, or nil
// for a guest.
func UserID(c echo.Context) *uint64 {
	if uid, ok := c.Get(ContextUserKey).(uint64); ok {
		return &uid
	}
	return nil
}
