package handlers

import (
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likeRepository repositories.LikeRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository) *LikeHandler {
	return &LikeHandler{likeRepository: likeRepo}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes/toggle", h.ToggleLike)
	g.GET("/posts/:post_id/likes/count", h.GetLikesCount)
	g.GET("/posts/:post_id/likes/status", h.GetLikeStatus)
	g.GET("/posts/:post_id/likes", h.GetLikers)
}

// ToggleLike likes the post, or unlikes it if the caller already does
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	status, err := h.likeRepository.Toggle(c.Request().Context(), c.Param("post_id"), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, status)
}

// GetLikesCount returns the number of likes on a post
func (h *LikeHandler) GetLikesCount(c echo.Context) error {
	postID := c.Param("post_id")
	count, err := h.likeRepository.Count(c.Request().Context(), postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"post_id":     postID,
		"likes_count": count,
	})
}

// GetLikeStatus reports whether the caller likes a post
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	count, err := h.likeRepository.Count(ctx, postID)
	if err != nil {
		return toHTTPError(err)
	}
	liked, err := h.likeRepository.IsLiked(ctx, postID, userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.LikeStatus{PostID: postID, Liked: liked, LikesCount: count})
}

// GetLikers lists the ids of users who like a post
func (h *LikeHandler) GetLikers(c echo.Context) error {
	postID := c.Param("post_id")
	ids, err := h.likeRepository.Likers(c.Request().Context(), postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"post_id":  postID,
		"user_ids": ids,
	})
}
