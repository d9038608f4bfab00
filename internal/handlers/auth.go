package handlers

import (
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// FirebaseLoginRequest carries a Firebase ID token to exchange.
type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	sessions middleware.Verifier
	firebase middleware.Verifier
	issuer   *middleware.JWTIssuer
}

// NewAuthHandler creates a new AuthHandler. firebase and issuer may be nil,
// which disables the token exchange.
func NewAuthHandler(sessions, firebase middleware.Verifier, issuer *middleware.JWTIssuer) *AuthHandler {
	return &AuthHandler{sessions: sessions, firebase: firebase, issuer: issuer}
}

// RegisterAuthRoutes registers the unauthenticated auth routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterSessionRoutes registers routes that need a live session
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.SignOut)
}

// FirebaseLogin exchanges a Firebase ID token for a local session token
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebase == nil || h.issuer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Firebase login is not configured")
	}

	var req FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	uid, err := h.firebase.Verify(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
	}
	token, err := h.issuer.Issue(uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token":   token,
		"user_id": uid,
	})
}

// SignOut revokes the token the request was made with
func (h *AuthHandler) SignOut(c echo.Context) error {
	if _, err := getUserIDFromContext(c); err != nil {
		return err
	}
	if err := h.sessions.Revoke(c.Request().Context(), middleware.Token(c)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}
	return c.NoContent(http.StatusNoContent)
}
