package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/middleware"
	"github.com/dukerupert/checkmate/internal/validation"
	"github.com/dukerupert/checkmate/render"
	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// CreateInspectionRequest is the request payload for creating an inspection.
type CreateInspectionRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	InspectorName   string `json:"inspectorName" validate:"max=200"`
	InspectorID     string `json:"inspectorId" validate:"max=100"`
	SubjectID       string `json:"subjectId" validate:"omitempty,vin"`
	TemplateVersion string `json:"templateVersion" validate:"max=64"`
}

func (s *Server) handleCreateInspection(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	var req CreateInspectionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	inspection, err := s.inspectionService.CreateInspection(ctx, checkmate.CreateInspectionParams{
		Title:           validation.SanitizeInput(req.Title),
		InspectorName:   validation.SanitizeInput(req.InspectorName),
		InspectorID:     strings.TrimSpace(req.InspectorID),
		SubjectID:       strings.ToUpper(strings.TrimSpace(req.SubjectID)),
		TemplateVersion: strings.TrimSpace(req.TemplateVersion),
	})
	if err != nil {
		return err
	}

	s.log(c).Info("inspection created",
		slog.String("inspection_id", inspection.ID.String()),
		slog.String("template_version", inspection.TemplateVersion),
	)

	s.audit.LogCreate(c, "inspection", inspection.ID, map[string]any{
		"title":            inspection.Title,
		"subject_id":       inspection.SubjectID,
		"template_version": inspection.TemplateVersion,
	})

	return RespondCreated(c, inspection)
}

func (s *Server) handleGetInspection(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	inspection, err := s.inspectionService.FindInspectionByID(ctx, id)
	if err != nil {
		return err
	}

	return RespondOK(c, inspection)
}

func (s *Server) handleListInspections(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	filter := checkmate.InspectionFilter{Offset: offset, Limit: limit}
	if raw := c.QueryParam("state"); raw != "" {
		state := checkmate.LifecycleState(raw)
		filter.State = &state
	}

	inspections, total, err := s.inspectionService.FindInspections(ctx, filter)
	if err != nil {
		return err
	}

	return RespondList(c, inspections, total, offset, limit)
}

func (s *Server) handleDeleteInspection(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := s.inspectionService.DeleteInspection(ctx, id); err != nil {
		return err
	}

	s.log(c).Info("inspection deleted", slog.String("inspection_id", id.String()))
	s.audit.LogDelete(c, "inspection", id, nil)

	return RespondNoContent(c)
}

func (s *Server) handleGetProgress(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	progress, err := s.inspectionService.GetProgress(ctx, id)
	if err != nil {
		return err
	}

	return RespondOK(c, progress)
}

func (s *Server) handleFinalizeInspection(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	start := time.Now()
	inspection, err := s.inspectionService.Finalize(ctx, id)
	// A retry of an earlier finalize succeeds with the original timestamp.
	already := err == nil && inspection.FinalizedAt != nil && inspection.FinalizedAt.Before(start)
	switch checkmate.ErrorCode(err) {
	case "":
		if already {
			s.metrics.RecordFinalize(middleware.FinalizeOutcomeAlreadyFinalized)
		} else {
			s.metrics.RecordFinalize(middleware.FinalizeOutcomeFinalized)
		}
	case checkmate.EVALIDATION:
		s.metrics.RecordFinalize(middleware.FinalizeOutcomeRejected)
	case checkmate.ECONFLICT:
		s.metrics.RecordFinalize(middleware.FinalizeOutcomeConflict)
	default:
		s.metrics.RecordFinalize(middleware.FinalizeOutcomeError)
	}
	if err != nil {
		return err
	}

	if already {
		s.log(c).Debug("inspection already finalized", slog.String("inspection_id", id.String()))
		return RespondOK(c, inspection)
	}

	s.log(c).Info("inspection finalized", slog.String("inspection_id", id.String()))
	s.audit.LogUpdate(c, "inspection", id, nil, map[string]any{
		"state":        inspection.State,
		"finalized_at": inspection.FinalizedAt,
	})

	return RespondOK(c, inspection)
}

// handleGetReport renders the report of a finalized inspection.
// ?format=json returns canonical JSON with the sha256 of that JSON as its
// ETag; the default is HTML.
func (s *Server) handleGetReport(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "html"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return checkmate.ErrorWithFields(map[string]string{"format": "must be one of: html json"})
	}

	report, err := s.inspectionService.GetReport(ctx, id)
	if err != nil {
		return err
	}

	if format == "json" {
		digest, err := render.Digest(report)
		if err != nil {
			return checkmate.Internal("Failed to digest report", err)
		}
		etag := `"` + digest + `"`
		c.Response().Header().Set("ETag", etag)
		if match := c.Request().Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
			return c.NoContent(http.StatusNotModified)
		}
	}

	var buf bytes.Buffer
	if err := renderer.Render(ctx, &buf, report); err != nil {
		return checkmate.Internal("Failed to render report", err)
	}

	return c.Blob(http.StatusOK, renderer.ContentType(), buf.Bytes())
}
