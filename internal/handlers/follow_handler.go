package handlers

import (
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository) *FollowHandler {
	return &FollowHandler{followRepository: followRepo}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow/toggle", h.ToggleFollow)
	g.GET("/users/:id/follow/status", h.GetFollowStatus)
	g.GET("/users/:id/follow/stats", h.GetFollowStats)
}

// ToggleFollow follows the user, or unfollows them if already following
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID := c.Param("id")

	following, err := h.followRepository.Toggle(c.Request().Context(), currentUserID, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":      targetID,
		"is_following": following,
	})
}

// GetFollowStatus reports whether the caller follows the user
func (h *FollowHandler) GetFollowStatus(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID := c.Param("id")

	following, err := h.followRepository.IsFollowing(c.Request().Context(), currentUserID, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":      targetID,
		"is_following": following,
	})
}

// GetFollowStats returns follower and following counts
func (h *FollowHandler) GetFollowStats(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	stats, err := h.followRepository.Stats(c.Request().Context(), currentUserID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
