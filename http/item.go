package http

import (
	"log/slog"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/validation"
	"github.com/labstack/echo/v4"
)

// SetItemStatusRequest is the request payload for recording an item status.
// An empty status clears the item back to unset.
type SetItemStatusRequest struct {
	Status *string `json:"status" validate:"required,status"`
}

// SetItemNoteRequest is the request payload for replacing an item note.
type SetItemNoteRequest struct {
	Note *string `json:"note" validate:"required,max=4000"`
}

// SetTireReadingRequest is the request payload for a tire measurement.
// Omitted fields are left unrecorded; an empty body clears the reading.
type SetTireReadingRequest struct {
	PSIIn      *float64 `json:"psiIn" validate:"omitempty,gte=0,lte=80"`
	PSIOut     *float64 `json:"psiOut" validate:"omitempty,gte=0,lte=80,notbelow=PSIIn"`
	Tread32nds *float64 `json:"tread32nds" validate:"omitempty,gte=0,lte=20"`
	Wear       string   `json:"wear" validate:"omitempty,oneof=even inner outer center cupping"`
}

// PhotoRefRequest is the request payload for attaching an existing blob ref.
type PhotoRefRequest struct {
	Ref string `json:"ref" validate:"required,max=512"`
}

func (s *Server) handleGetItem(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	item, err := s.inspectionService.GetItem(ctx, id, itemID)
	if err != nil {
		return err
	}

	return RespondOK(c, item)
}

func (s *Server) handleSetItemStatus(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	var req SetItemStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	status, err := checkmate.ParseStatus(*req.Status)
	if err != nil {
		return err
	}

	item, err := s.inspectionService.SetStatus(ctx, id, itemID, status)
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("status")

	s.log(c).Debug("item status set",
		slog.String("inspection_id", id.String()),
		slog.String("item_id", itemID),
		slog.String("status", status.String()),
	)

	return RespondOK(c, item)
}

func (s *Server) handleSetItemNote(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	var req SetItemNoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := s.inspectionService.SetNote(ctx, id, itemID, validation.SanitizeInput(*req.Note))
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("note")

	return RespondOK(c, item)
}

func (s *Server) handleSetTireReading(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	var req SetTireReadingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := s.inspectionService.SetTireReading(ctx, id, itemID, checkmate.TireReading{
		PSIIn:      req.PSIIn,
		PSIOut:     req.PSIOut,
		Tread32nds: req.Tread32nds,
		Wear:       checkmate.WearPattern(req.Wear),
	})
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("tire_reading")

	return RespondOK(c, item)
}

func (s *Server) handleAddPhotoRef(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	var req PhotoRefRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := s.inspectionService.AddPhotoRef(ctx, id, itemID, req.Ref)
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("photo_ref_add")

	return RespondOK(c, item)
}

// handleRemovePhotoRef takes the ref as a query parameter (?ref=) since refs
// contain slashes.
func (s *Server) handleRemovePhotoRef(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	ref := c.QueryParam("ref")
	if ref == "" {
		return checkmate.ErrorWithFields(map[string]string{"ref": "is required"})
	}

	item, err := s.inspectionService.RemovePhotoRef(ctx, id, itemID, ref)
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("photo_ref_remove")

	return RespondOK(c, item)
}
