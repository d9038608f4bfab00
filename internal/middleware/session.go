package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys set by SessionMiddleware.
const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

// Verifier resolves a bearer token to a user id and can revoke it.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// SessionMiddleware rejects requests without a valid bearer token and stores
// the resolved user id in the echo context.
func SessionMiddleware(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c)
			if err != nil {
				return err
			}

			userID, err := v.Verify(c.Request().Context(), token)
			if err != nil || userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserIDKey, userID)
			c.Set(TokenKey, token)
			return next(c)
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// UserID returns the id SessionMiddleware stored, or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// Token returns the bearer token SessionMiddleware accepted, or "".
func Token(c echo.Context) string {
	token, _ := c.Get(TokenKey).(string)
	return token
}
