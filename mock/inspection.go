package mock

import (
	"context"
	"io"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
)

// Compile-time interface checks
var (
	_ checkmate.InspectionService = (*InspectionService)(nil)
	_ checkmate.InspectionStore   = (*InspectionStore)(nil)
)

// InspectionService is a mock implementation of checkmate.InspectionService.
type InspectionService struct {
	CreateInspectionFn   func(ctx context.Context, params checkmate.CreateInspectionParams) (*checkmate.Inspection, error)
	FindInspectionByIDFn func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error)
	FindInspectionsFn    func(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error)
	DeleteInspectionFn   func(ctx context.Context, id uuid.UUID) error
	GetItemFn            func(ctx context.Context, id uuid.UUID, itemID string) (*checkmate.Item, error)
	SetStatusFn          func(ctx context.Context, id uuid.UUID, itemID string, status checkmate.Status) (*checkmate.Item, error)
	SetNoteFn            func(ctx context.Context, id uuid.UUID, itemID, note string) (*checkmate.Item, error)
	SetTireReadingFn     func(ctx context.Context, id uuid.UUID, itemID string, reading checkmate.TireReading) (*checkmate.Item, error)
	AddPhotoRefFn        func(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error)
	RemovePhotoRefFn     func(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error)
	AttachPhotoFn        func(ctx context.Context, id uuid.UUID, itemID string, r io.Reader, contentType string) (*checkmate.Item, error)
	GetProgressFn        func(ctx context.Context, id uuid.UUID) (*checkmate.Progress, error)
	FinalizeFn           func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error)
	GetReportFn          func(ctx context.Context, id uuid.UUID) (*checkmate.Report, error)
}

func (s *InspectionService) CreateInspection(ctx context.Context, params checkmate.CreateInspectionParams) (*checkmate.Inspection, error) {
	if s.CreateInspectionFn != nil {
		return s.CreateInspectionFn(ctx, params)
	}
	return &checkmate.Inspection{
		ID:            uuid.New(),
		Title:         params.Title,
		InspectorName: params.InspectorName,
		State:         checkmate.StateDraft,
		Sections:      []*checkmate.Section{},
		Version:       1,
	}, nil
}

func (s *InspectionService) FindInspectionByID(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	if s.FindInspectionByIDFn != nil {
		return s.FindInspectionByIDFn(ctx, id)
	}
	return nil, checkmate.NotFound("Inspection not found")
}

func (s *InspectionService) FindInspections(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	if s.FindInspectionsFn != nil {
		return s.FindInspectionsFn(ctx, filter)
	}
	return []*checkmate.InspectionSummary{}, 0, nil
}

func (s *InspectionService) DeleteInspection(ctx context.Context, id uuid.UUID) error {
	if s.DeleteInspectionFn != nil {
		return s.DeleteInspectionFn(ctx, id)
	}
	return nil
}

func (s *InspectionService) GetItem(ctx context.Context, id uuid.UUID, itemID string) (*checkmate.Item, error) {
	if s.GetItemFn != nil {
		return s.GetItemFn(ctx, id, itemID)
	}
	return nil, checkmate.NotFound("Item not found")
}

func (s *InspectionService) SetStatus(ctx context.Context, id uuid.UUID, itemID string, status checkmate.Status) (*checkmate.Item, error) {
	if s.SetStatusFn != nil {
		return s.SetStatusFn(ctx, id, itemID, status)
	}
	return &checkmate.Item{ID: itemID, Status: status}, nil
}

func (s *InspectionService) SetNote(ctx context.Context, id uuid.UUID, itemID, note string) (*checkmate.Item, error) {
	if s.SetNoteFn != nil {
		return s.SetNoteFn(ctx, id, itemID, note)
	}
	return &checkmate.Item{ID: itemID, Note: note}, nil
}

func (s *InspectionService) SetTireReading(ctx context.Context, id uuid.UUID, itemID string, reading checkmate.TireReading) (*checkmate.Item, error) {
	if s.SetTireReadingFn != nil {
		return s.SetTireReadingFn(ctx, id, itemID, reading)
	}
	return &checkmate.Item{ID: itemID, Kind: checkmate.ItemKindTire, Tire: &reading}, nil
}

func (s *InspectionService) AddPhotoRef(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error) {
	if s.AddPhotoRefFn != nil {
		return s.AddPhotoRefFn(ctx, id, itemID, ref)
	}
	return &checkmate.Item{ID: itemID, PhotoRefs: []string{ref}}, nil
}

func (s *InspectionService) RemovePhotoRef(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error) {
	if s.RemovePhotoRefFn != nil {
		return s.RemovePhotoRefFn(ctx, id, itemID, ref)
	}
	return &checkmate.Item{ID: itemID}, nil
}

func (s *InspectionService) AttachPhoto(ctx context.Context, id uuid.UUID, itemID string, r io.Reader, contentType string) (*checkmate.Item, error) {
	if s.AttachPhotoFn != nil {
		return s.AttachPhotoFn(ctx, id, itemID, r, contentType)
	}
	return &checkmate.Item{ID: itemID, PhotoRefs: []string{"mock/photo"}}, nil
}

func (s *InspectionService) GetProgress(ctx context.Context, id uuid.UUID) (*checkmate.Progress, error) {
	if s.GetProgressFn != nil {
		return s.GetProgressFn(ctx, id)
	}
	return nil, checkmate.NotFound("Inspection not found")
}

func (s *InspectionService) Finalize(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	if s.FinalizeFn != nil {
		return s.FinalizeFn(ctx, id)
	}
	return nil, checkmate.NotFound("Inspection not found")
}

func (s *InspectionService) GetReport(ctx context.Context, id uuid.UUID) (*checkmate.Report, error) {
	if s.GetReportFn != nil {
		return s.GetReportFn(ctx, id)
	}
	return nil, checkmate.NotFound("Inspection not found")
}

// InspectionStore is a mock implementation of checkmate.InspectionStore.
type InspectionStore struct {
	LoadFn   func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error)
	SaveFn   func(ctx context.Context, insp *checkmate.Inspection) error
	DeleteFn func(ctx context.Context, id uuid.UUID) error
	ListFn   func(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error)
}

func (s *InspectionStore) Load(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	if s.LoadFn != nil {
		return s.LoadFn(ctx, id)
	}
	return nil, checkmate.NotFound("Inspection not found")
}

func (s *InspectionStore) Save(ctx context.Context, insp *checkmate.Inspection) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, insp)
	}
	insp.Version++
	return nil
}

func (s *InspectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, id)
	}
	return nil
}

func (s *InspectionStore) List(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, filter)
	}
	return []*checkmate.InspectionSummary{}, 0, nil
}
