package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// withTimeout creates a context with a timeout for handler operations.
func (s *Server) withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.RequestTimeout)
}

// parseUUID parses a UUID from a string, returning a domain error if invalid.
func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, checkmate.Invalid("Invalid ID format")
	}
	return id, nil
}

// requireParam extracts a required route parameter, returning error if empty.
func requireParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", checkmate.Invalid("%s is required", name)
	}
	return value, nil
}

// requireUUIDParam extracts and parses a required UUID route parameter.
func requireUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	value, err := requireParam(c, name)
	if err != nil {
		return uuid.UUID{}, err
	}
	return parseUUID(value)
}

// itemParams extracts the inspection id and item id of an item route.
func itemParams(c echo.Context) (uuid.UUID, string, error) {
	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return uuid.UUID{}, "", err
	}
	itemID, err := requireParam(c, "itemId")
	if err != nil {
		return uuid.UUID{}, "", err
	}
	return id, itemID, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, checkmate.ErrorWithFields(map[string]string{name: "must be a non-negative integer"})
	}
	return n, nil
}

// bind binds the request body to a struct and validates it.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return checkmate.Invalid("Invalid request body")
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	return nil
}

// log returns the request-scoped logger.
func (s *Server) log(c echo.Context) *slog.Logger {
	return s.getRequestLogger(c)
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return RespondOK(c, map[string]string{"status": "ok"})
}

func (s *Server) handleLivenessCheck(c echo.Context) error {
	return RespondOK(c, map[string]string{"status": "alive"})
}

func (s *Server) handleReadinessCheck(c echo.Context) error {
	if s.ready != nil {
		ctx, cancel := s.withTimeout(c)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.log(c).Warn("readiness check failed", slog.String("error", err.Error()))
			return Respond(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return RespondOK(c, map[string]string{"status": "ready"})
}
