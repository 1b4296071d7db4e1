package http

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all routes for the server.
// All routes are defined in this single file for easy navigation.
func (s *Server) registerRoutes() {
	// Health check routes
	s.echo.GET("/health", s.handleHealthCheck)
	s.echo.GET("/health/live", s.handleLivenessCheck)
	s.echo.GET("/health/ready", s.handleReadinessCheck)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api")
	api.Use(s.rateLimiter.Middleware())

	// Inspections
	api.POST("/inspections", s.handleCreateInspection)
	api.GET("/inspections", s.handleListInspections)
	api.GET("/inspections/:id", s.handleGetInspection)
	api.DELETE("/inspections/:id", s.handleDeleteInspection)
	api.GET("/inspections/:id/progress", s.handleGetProgress)
	api.POST("/inspections/:id/finalize", s.handleFinalizeInspection)
	api.GET("/inspections/:id/report", s.handleGetReport)

	// Items
	api.GET("/inspections/:id/items/:itemId", s.handleGetItem)
	api.PUT("/inspections/:id/items/:itemId/status", s.handleSetItemStatus)
	api.PUT("/inspections/:id/items/:itemId/note", s.handleSetItemNote)
	api.PUT("/inspections/:id/items/:itemId/tire", s.handleSetTireReading)
	api.POST("/inspections/:id/items/:itemId/photo-refs", s.handleAddPhotoRef)
	api.DELETE("/inspections/:id/items/:itemId/photo-refs", s.handleRemovePhotoRef)
	api.POST("/inspections/:id/items/:itemId/photos", s.handleUploadPhoto, s.uploadLimiter.Middleware())

	// Photos (refs contain slashes)
	api.GET("/photos/*", s.handleGetPhoto)

	// Checklist templates
	api.GET("/templates/current", s.handleGetCurrentTemplate)
	api.GET("/templates/:version", s.handleGetTemplate)
}
