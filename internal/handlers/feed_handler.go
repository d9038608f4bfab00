package handlers

import (
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	feedService *feed.Service
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(svc *feed.Service) *FeedHandler {
	return &FeedHandler{feedService: svc}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/users/:id/view", h.GetProfileView)
}

// GetFeed returns the global feed with the caller's like flags
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	result, err := h.feedService.Feed(c.Request().Context(), currentUserID, page)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetProfileView returns a user's profile page as seen by the caller
func (h *FeedHandler) GetProfileView(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	view, err := h.feedService.Profile(c.Request().Context(), currentUserID, c.Param("id"), page)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}
