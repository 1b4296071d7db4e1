package middleware

import (
	"log/slog"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID tags each request with an ID for log correlation.
//
// An incoming X-Request-ID header is reused; otherwise a UUID is generated.
// The ID is echoed in the response header, stored in the echo context and in
// the request context (checkmate.RequestIDFromContext), and a child logger
// carrying it is stored for handlers.
func RequestID(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}

			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.Set("request_id", requestID)
			c.Set("logger", logger.With(slog.String("request_id", requestID)))

			ctx := checkmate.NewContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetRequestID retrieves the request ID from the echo context.
func GetRequestID(c echo.Context) string {
	requestID, _ := c.Get("request_id").(string)
	return requestID
}

// GetRequestLogger retrieves the request-scoped logger, falling back to slog.Default.
func GetRequestLogger(c echo.Context) *slog.Logger {
	if logger, ok := c.Get("logger").(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
