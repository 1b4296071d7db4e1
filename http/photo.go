package http

import (
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/internal/validation"
	"github.com/labstack/echo/v4"
)

// handleUploadPhoto stores a multipart "photo" file and attaches it to the item.
func (s *Server) handleUploadPhoto(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	id, itemID, err := itemParams(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return checkmate.ErrorWithFields(map[string]string{"photo": "is required"})
	}

	contentType, err := validation.ValidateFileUpload(file)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return checkmate.Internal("Failed to read uploaded file", err)
	}
	defer src.Close()

	item, err := s.inspectionService.AttachPhoto(ctx, id, itemID, src, contentType)
	if err != nil {
		return err
	}
	s.metrics.RecordItemMutation("photo_upload")

	s.log(c).Info("photo attached",
		slog.String("inspection_id", id.String()),
		slog.String("item_id", itemID),
		slog.String("content_type", contentType),
		slog.Int64("size", file.Size),
	)

	s.audit.LogCreate(c, "photo", id, map[string]any{
		"item_id":    itemID,
		"photo_ref":  lastRef(item.PhotoRefs),
		"size_bytes": file.Size,
	})

	return RespondCreated(c, item)
}

// handleGetPhoto streams a stored photo by ref.
func (s *Server) handleGetPhoto(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	ref := c.Param("*")
	if ref == "" {
		return checkmate.Invalid("ref is required")
	}
	if s.blobs == nil {
		return checkmate.NotFound("Photo %s not found", ref)
	}

	rc, err := s.blobs.Get(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(ref))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Stream(http.StatusOK, contentType, rc)
}

func lastRef(refs []string) string {
	if len(refs) == 0 {
		return ""
	}
	return refs[len(refs)-1]
}
