package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/audit"
	"github.com/dukerupert/checkmate/internal/middleware"
	"github.com/dukerupert/checkmate/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Server represents the HTTP server with all its dependencies.
type Server struct {
	echo   *echo.Echo
	ln     net.Listener
	logger *slog.Logger

	// Configuration
	Addr           string
	RequestTimeout time.Duration

	// Domain services
	inspectionService checkmate.InspectionService
	templates         checkmate.TemplateProvider
	blobs             checkmate.BlobStore

	// Report renderers by format name ("html", "json").
	renderers map[string]checkmate.ReportRenderer

	ready func(ctx context.Context) error

	audit         *audit.Logger
	metrics       *middleware.Metrics
	registry      *prometheus.Registry
	rateLimiter   *middleware.RateLimiter
	uploadLimiter *middleware.RateLimiter
}

// Config holds the configuration for creating a new Server.
type Config struct {
	Addr   string
	Logger *slog.Logger

	// RequestTimeout bounds each handler's service call. Defaults to DefaultTimeout.
	RequestTimeout time.Duration

	// Domain services
	InspectionService checkmate.InspectionService
	Templates         checkmate.TemplateProvider
	Blobs             checkmate.BlobStore // optional; serves stored photos

	// Report renderers
	HTMLRenderer checkmate.ReportRenderer
	JSONRenderer checkmate.ReportRenderer

	// Ready reports whether backing services are reachable. Optional.
	Ready func(ctx context.Context) error

	// Registry receives the server's metrics and is served on /metrics.
	// A fresh registry is created when nil.
	Registry *prometheus.Registry

	// Rate limits; zero values select the middleware defaults.
	RateLimit       middleware.RateLimitConfig
	UploadRateLimit middleware.RateLimitConfig
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		Addr:              cfg.Addr,
		RequestTimeout:    cfg.RequestTimeout,
		logger:            cfg.Logger,
		inspectionService: cfg.InspectionService,
		templates:         cfg.Templates,
		blobs:             cfg.Blobs,
		renderers:         map[string]checkmate.ReportRenderer{},
		ready:             cfg.Ready,
		registry:          cfg.Registry,
	}

	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultTimeout
	}
	if cfg.HTMLRenderer != nil {
		s.renderers["html"] = cfg.HTMLRenderer
	}
	if cfg.JSONRenderer != nil {
		s.renderers["json"] = cfg.JSONRenderer
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = middleware.NewMetrics(s.registry)
	s.audit = audit.NewLogger(s.logger)

	rateLimit := cfg.RateLimit
	if rateLimit.Rate <= 0 {
		rateLimit = middleware.DefaultRateLimitConfig()
	}
	uploadLimit := cfg.UploadRateLimit
	if uploadLimit.Rate <= 0 {
		uploadLimit = middleware.UploadRateLimitConfig()
	}
	s.rateLimiter = middleware.NewRateLimiter(s.logger, rateLimit)
	s.uploadLimiter = middleware.NewRateLimiter(s.logger, uploadLimit)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = validation.NewValidator()

	// Register middleware and routes
	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be driven directly (tests, embedding).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Open starts the HTTP server.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.echo.Server.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("server started", slog.String("addr", s.ln.Addr().String()))
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.rateLimiter.Shutdown()
	s.uploadLimiter.Shutdown()
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// URL returns the URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}
