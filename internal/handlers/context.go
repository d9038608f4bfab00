package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext returns the session's user id or a 401.
func getUserIDFromContext(c echo.Context) (string, error) {
	userID := middleware.UserID(c)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return userID, nil
}

// pageFromQuery reads ?cursor= and ?limit=.
func pageFromQuery(c echo.Context) (repositories.PageRequest, error) {
	page := repositories.PageRequest{Cursor: c.QueryParam("cursor")}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return page, echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		page.Limit = limit
	}
	return page, nil
}

// bindAndValidate decodes the JSON body into req and runs the validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}
