// Package engine implements checkmate.InspectionService on top of an
// InspectionStore, a TemplateProvider and the optional decoder and blob
// store collaborators.
package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
)

// Compile-time check that Service implements checkmate.InspectionService.
var _ checkmate.InspectionService = (*Service)(nil)

// Config holds the collaborators of a Service.
type Config struct {
	Store     checkmate.InspectionStore
	Templates checkmate.TemplateProvider
	Decoder   checkmate.VehicleDecoder // optional
	Blobs     checkmate.BlobStore      // optional; required for AttachPhoto
	Policy    checkmate.FinalizePolicy
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service drives inspections through their lifecycle. Each call loads the
// aggregate, applies one change and saves it; there is no shared state
// between calls beyond the collaborators.
type Service struct {
	store     checkmate.InspectionStore
	templates checkmate.TemplateProvider
	decoder   checkmate.VehicleDecoder
	blobs     checkmate.BlobStore
	policy    checkmate.FinalizePolicy
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Service.
func New(cfg Config) *Service {
	s := &Service{
		store:     cfg.Store,
		templates: cfg.Templates,
		decoder:   cfg.Decoder,
		blobs:     cfg.Blobs,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// log returns a logger carrying the request id from ctx, if any.
func (s *Service) log(ctx context.Context) *slog.Logger {
	if requestID := checkmate.RequestIDFromContext(ctx); requestID != "" {
		return s.logger.With(slog.String("request_id", requestID))
	}
	return s.logger
}

func (s *Service) CreateInspection(ctx context.Context, params checkmate.CreateInspectionParams) (*checkmate.Inspection, error) {
	if params.Title == "" {
		return nil, checkmate.ErrorWithFields(map[string]string{"title": "is required"})
	}

	version := params.TemplateVersion
	if version == "" {
		v, err := s.templates.CurrentVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = v
	}

	tmpl, err := s.templates.Template(ctx, version)
	if err != nil {
		return nil, err
	}

	insp := tmpl.NewInspection(params, s.now())
	if params.SubjectID != "" {
		insp.Vehicle = s.decodeVehicle(ctx, params.SubjectID)
	}

	if err := s.store.Save(ctx, insp); err != nil {
		return nil, err
	}

	s.log(ctx).Info("inspection created",
		slog.String("inspection_id", insp.ID.String()),
		slog.String("template_version", insp.TemplateVersion),
		slog.Int("items", tmpl.ItemCount()),
	)
	return insp, nil
}

// decodeVehicle looks up subject metadata. A failed lookup degrades to
// absent metadata and never blocks creation.
func (s *Service) decodeVehicle(ctx context.Context, subjectID string) json.RawMessage {
	if s.decoder == nil {
		return nil
	}
	record, err := s.decoder.Decode(ctx, subjectID)
	if err != nil {
		code := checkmate.ErrorCode(err)
		if code == checkmate.ENOTFOUND || code == checkmate.ELOOKUP {
			s.log(ctx).Warn("vehicle lookup failed, continuing without metadata",
				slog.String("subject_id", subjectID),
				slog.String("code", code),
				slog.String("error", err.Error()),
			)
			return nil
		}
		s.log(ctx).Error("vehicle decoder returned unexpected error",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return record
}

func (s *Service) FindInspectionByID(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	return s.store.Load(ctx, id)
}

func (s *Service) FindInspections(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	if filter.State != nil && !filter.State.IsValid() {
		return nil, 0, checkmate.Invalid("Unknown state %q", *filter.State)
	}
	return s.store.List(ctx, filter)
}

func (s *Service) DeleteInspection(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("inspection deleted", slog.String("inspection_id", id.String()))
	return nil
}

func (s *Service) GetProgress(ctx context.Context, id uuid.UUID) (*checkmate.Progress, error) {
	insp, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkmate.ComputeProgress(insp), nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*checkmate.Report, error) {
	insp, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkmate.Project(insp)
}

// Finalize validates and freezes a draft. An inspection that is already
// finalized is returned as stored, so a client may retry after an ambiguous
// failure and observe the same FinalizedAt.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	insp, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if insp.IsFinalized() {
		s.log(ctx).Debug("inspection already finalized", slog.String("inspection_id", id.String()))
		return insp, nil
	}

	if err := insp.Finalize(s.now(), s.policy); err != nil {
		s.log(ctx).Info("finalize rejected",
			slog.String("inspection_id", id.String()),
			slog.String("code", checkmate.ErrorCode(err)),
			slog.Any("missing", checkmate.MissingItems(err)),
		)
		return nil, err
	}

	if err := s.store.Save(ctx, insp); err != nil {
		return nil, err
	}

	s.log(ctx).Info("inspection finalized",
		slog.String("inspection_id", id.String()),
		slog.String("status", checkmate.InspectionStatus(insp).String()),
		slog.Time("finalized_at", *insp.FinalizedAt),
	)
	return insp, nil
}

// AttachPhoto uploads the photo and attaches its ref to the item. The
// finalized guard and item lookup run before any bytes are stored.
func (s *Service) AttachPhoto(ctx context.Context, id uuid.UUID, itemID string, r io.Reader, contentType string) (*checkmate.Item, error) {
	if s.blobs == nil {
		return nil, checkmate.Internal("Photo storage is not configured", nil)
	}
	if !checkmate.IsAcceptedImageType(contentType) {
		return nil, checkmate.Invalid("Unsupported photo type %q", contentType)
	}

	insp, err := s.loadItemForEdit(ctx, id, itemID)
	if err != nil {
		return nil, err
	}

	ref, err := s.blobs.Put(ctx, r, contentType)
	if err != nil {
		return nil, checkmate.Internal("Failed to store photo", err)
	}

	it, err := insp.AddItemPhotoRef(itemID, ref)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, insp); err != nil {
		if derr := s.blobs.Delete(ctx, ref); derr != nil {
			s.log(ctx).Warn("failed to remove orphaned photo",
				slog.String("ref", ref),
				slog.String("error", derr.Error()),
			)
		}
		return nil, err
	}

	s.log(ctx).Info("photo attached",
		slog.String("inspection_id", id.String()),
		slog.String("item_id", itemID),
		slog.String("ref", ref),
	)
	return it, nil
}
