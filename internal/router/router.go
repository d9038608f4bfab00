package router

import (
	"log"
	"log/slog"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/handlers"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/pkg/config"
	"github.com/anonto42/nano-feed/backend/validators"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
)

// Dependencies are the services routes are built from.
type Dependencies struct {
	Repositories *repositories.Set
	Feed         *feed.Service

	// Sessions verifies bearer tokens on /api/v1.
	Sessions middleware.Verifier

	// Firebase and Issuer enable the ID token exchange when both are set.
	Firebase middleware.Verifier
	Issuer   *middleware.JWTIssuer
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *slog.Logger) {
	e.HTTPErrorHandler = handlers.ErrorHandler
	e.Validator = validators.NewValidator()

	e.Use(eMiddleware.Recover())
	e.Use(config.RequestLogger(logger))
	e.Use(eMiddleware.CORS())
	e.Use(middleware.Metrics())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	repos := deps.Repositories

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(deps.Sessions, deps.Firebase, deps.Issuer)
	authHandler.RegisterAuthRoutes(authGroup)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.SessionMiddleware(deps.Sessions))
	authHandler.RegisterSessionRoutes(api)

	userHandler := handlers.NewUserHandler(repos.Profiles, repos.Follows)
	userHandler.RegisterProfileRoutes(api)

	postHandler := handlers.NewPostHandler(repos.Posts)
	postHandler.RegisterPostRoutes(api)

	likeHandler := handlers.NewLikeHandler(repos.Likes)
	likeHandler.RegisterLikeRoutes(api)

	commentHandler := handlers.NewCommentHandler(repos.Comments)
	commentHandler.RegisterCommentRoutes(api)

	followHandler := handlers.NewFollowHandler(repos.Follows)
	followHandler.RegisterFollowRoutes(api)

	feedHandler := handlers.NewFeedHandler(deps.Feed)
	feedHandler.RegisterFeedRoutes(api)

	log.Println("All routes configured.")
}
