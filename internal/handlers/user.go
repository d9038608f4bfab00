package handlers

import (
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to user profiles
type UserHandler struct {
	profileRepository repositories.ProfileRepository
	followRepository  repositories.FollowRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profileRepo repositories.ProfileRepository, followRepo repositories.FollowRepository) *UserHandler {
	return &UserHandler{profileRepository: profileRepo, followRepository: followRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)     // Get own profile
	g.POST("/profile", h.CreateProfile) // First sign-in creates the profile
	g.PUT("/profile", h.UpdateProfile)  // Update own profile
	g.GET("/users/:id", h.GetUser)      // Get other user's profile by ID
	g.GET("/users/by-username/:username", h.GetUserByUsername)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// GetUser retrieves a profile by user ID
func (h *UserHandler) GetUser(c echo.Context) error {
	profile, err := h.profileRepository.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetUserByUsername(c echo.Context) error {
	profile, err := h.profileRepository.GetProfileByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	profile, err := h.profileRepository.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// CreateProfile creates the authenticated user's profile
func (h *UserHandler) CreateProfile(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := h.profileRepository.CreateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, profile)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := h.profileRepository.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetFollowers lists the profiles following a user
func (h *UserHandler) GetFollowers(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	users, next, err := h.followRepository.Followers(c.Request().Context(), c.Param("id"), page)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":       users,
		"next_cursor": next,
	})
}

// GetFollowing lists the profiles a user follows
func (h *UserHandler) GetFollowing(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	users, next, err := h.followRepository.Following(c.Request().Context(), c.Param("id"), page)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":       users,
		"next_cursor": next,
	})
}
