package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// toHTTPError maps a repository error onto the status code it stands for.
func toHTTPError(err error) error {
	var (
		ve *repositories.ValidationError
		pe *repositories.PermissionError
		te *repositories.TransportError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusForbidden, pe.Error())
	case errors.Is(err, repositories.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, repositories.ErrUsernameTaken), errors.Is(err, repositories.ErrProfileExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &te):
		slog.Error("store request failed", "op", te.Op, "error", te.Err)
		return echo.NewHTTPError(http.StatusBadGateway, "Storage temporarily unavailable").SetInternal(err)
	default:
		slog.Error("unhandled error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
}

// ErrorHandler renders every error as {"message": ...}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := toHTTPError(err).(*echo.HTTPError)
	if !ok {
		he = echo.NewHTTPError(http.StatusInternalServerError)
	}

	var body any = he.Message
	if msg, ok := he.Message.(string); ok {
		body = map[string]string{"message": msg}
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, body)
	}
	if err != nil {
		slog.Error("write error response", "error", err)
	}
}
