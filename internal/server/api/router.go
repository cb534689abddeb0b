package api

import (
	"chemflow/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, auth *AuthMiddleware, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())
	e.Use(middleware.BodyLimit("32M"))

	// Rate limiter on the upload endpoints only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	e.Server.RegisterOnShutdown(uploadLimiter.Stop)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Authentication
	e.POST("/register/", handler.HandleRegister)
	e.POST("/login/", handler.HandleLogin)

	// Authenticated dashboard surface
	e.POST("/upload/", handler.HandleUpload, auth.Require, uploadLimiter.Middleware())
	e.GET("/history/", handler.HandleHistory, auth.Require)
	e.GET("/generate-pdf/:id/", handler.HandleGeneratePDF, auth.Require)

	// Dataset archive surface; credential requirement follows AUTH_REQUIRED
	g := e.Group("/datasets", auth.Scoped)
	g.GET("/", handler.HandleListDatasets)
	g.POST("/upload/", handler.HandleDatasetUpload, uploadLimiter.Middleware())
	g.GET("/:id/", handler.HandleGetDataset)
	g.DELETE("/:id/", handler.HandleDeleteDataset)
	g.GET("/:id/generate_pdf/", handler.HandleGeneratePDF)

	return e
}
