package http

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/checkmate"
	"github.com/labstack/echo/v4"
)

// errorStatusCode maps domain error codes to HTTP status codes.
func errorStatusCode(code string) int {
	switch code {
	case checkmate.ENOTFOUND:
		return http.StatusNotFound
	case checkmate.EINVALIDSTATE, checkmate.ECONFLICT:
		return http.StatusConflict
	case checkmate.EVALIDATION:
		return http.StatusUnprocessableEntity
	case checkmate.ELOOKUP:
		return http.StatusBadGateway
	case checkmate.EINVALID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// httpErrorCode names the error code for errors raised by echo itself
// (unknown routes, body limits, rate limits).
func httpErrorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return checkmate.ENOTFOUND
	case http.StatusMethodNotAllowed, http.StatusBadRequest, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType:
		return checkmate.EINVALID
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return checkmate.EINTERNAL
		}
		return checkmate.EINVALID
	}
}

// ErrorResponse represents the JSON error response format.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Missing []string          `json:"missing,omitempty"`
}

// HandleError converts domain errors to appropriate HTTP responses.
// It logs internal errors and returns user-safe messages.
func HandleError(c echo.Context, logger *slog.Logger, err error) error {
	code := checkmate.ErrorCode(err)
	message := checkmate.ErrorMessage(err)
	status := errorStatusCode(code)

	switch code {
	case checkmate.EINTERNAL:
		logger.Error("internal error",
			slog.String("error", err.Error()),
			slog.String("path", c.Path()),
			slog.String("method", c.Request().Method),
		)
		// Don't expose internal error details to clients
		message = "An internal error occurred."
	case checkmate.ELOOKUP:
		logger.Warn("lookup failed", slog.String("error", err.Error()))
	}

	return c.JSON(status, ErrorResponse{
		Error:   code,
		Message: message,
		Fields:  checkmate.ErrorFields(err),
		Missing: checkmate.MissingItems(err),
	})
}
