package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// DefaultTimeout bounds a handler's service call.
const DefaultTimeout = 10 * time.Second

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(middleware.RequestID(s.logger))
	s.echo.Use(s.requestLoggerMiddleware())
	s.echo.Use(s.metrics.Middleware())

	s.echo.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))

	// Multipart overhead on top of the largest accepted photo.
	s.echo.Use(echomw.BodyLimit(strconv.Itoa(checkmate.MaxUploadSize + 1<<20)))

	s.echo.HTTPErrorHandler = s.httpErrorHandler
}

// requestLoggerMiddleware logs request completion on the request-scoped logger.
func (s *Server) requestLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			logger := middleware.GetRequestLogger(c).With(
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
			)
			c.Set("logger", logger)

			err := next(c)

			status := c.Response().Status
			logAttrs := []any{
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				logAttrs = append(logAttrs, slog.String("error", err.Error()))
				logger.Warn("request failed", logAttrs...)
			case status >= 500:
				logger.Error("request completed with server error", logAttrs...)
			case status >= 400:
				logger.Warn("request completed with client error", logAttrs...)
			default:
				logger.Info("request completed", logAttrs...)
			}

			return err
		}
	}
}

// httpErrorHandler handles errors and returns appropriate responses.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		_ = c.JSON(he.Code, ErrorResponse{
			Error:   httpErrorCode(he.Code),
			Message: message,
		})
		return
	}

	_ = HandleError(c, s.getRequestLogger(c), err)
}

// getRequestLogger retrieves the request-scoped logger from context.
func (s *Server) getRequestLogger(c echo.Context) *slog.Logger {
	if logger, ok := c.Get("logger").(*slog.Logger); ok {
		return logger
	}
	return s.logger
}
