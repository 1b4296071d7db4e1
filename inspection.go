package checkmate

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Inspection is the aggregate root: one checklist filled in for one subject.
// Sections and items are owned exclusively by the inspection and are
// persisted with it as a single unit.
type Inspection struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	InspectorName   string          `json:"inspectorName"`
	InspectorID     string          `json:"inspectorId"`
	SubjectID       string          `json:"subjectId,omitempty"`
	Vehicle         json.RawMessage `json:"vehicle,omitempty"`
	Sections        []*Section      `json:"sections"`
	State           LifecycleState  `json:"state"`
	TemplateVersion string          `json:"templateVersion"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	FinalizedAt     *time.Time      `json:"finalizedAt,omitempty"`

	// Version is the write-version used for optimistic concurrency.
	// Zero means the inspection has never been saved.
	Version int64 `json:"version"`
}

// Section is a step/subcategory grouping of items in display order.
type Section struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Items []*Item `json:"items"`
}

// Item is a single checklist entry.
type Item struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Status    Status   `json:"status"`
	Note      string   `json:"note,omitempty"`
	PhotoRefs []string `json:"photoRefs,omitempty"`

	// Required is copied from the template's mandatory flag; a required item
	// must have a status before the inspection can be finalized.
	Required bool `json:"required"`

	// Kind is copied from the template. Tire items also carry a reading.
	Kind ItemKind     `json:"kind,omitempty"`
	Tire *TireReading `json:"tire,omitempty"`
}

// LifecycleState is the lifecycle state of an inspection.
type LifecycleState string

const (
	StateDraft     LifecycleState = "draft"
	StateFinalized LifecycleState = "finalized"
)

// IsValid returns true if the state is a recognised value.
func (s LifecycleState) IsValid() bool {
	return s == StateDraft || s == StateFinalized
}

// IsEditable returns true if items may still be modified.
func (s LifecycleState) IsEditable() bool {
	return s == StateDraft
}

// CanTransitionTo returns true if this state can transition to the target state.
func (s LifecycleState) CanTransitionTo(target LifecycleState) bool {
	switch s {
	case StateDraft:
		return target == StateFinalized
	default:
		return false // finalized is terminal
	}
}

// IsFinalized reports whether the inspection is frozen.
func (i *Inspection) IsFinalized() bool {
	return i.State == StateFinalized
}

// Item returns the item with the given identifier and its section, or nil.
func (i *Inspection) Item(itemID string) (*Section, *Item) {
	for _, sec := range i.Sections {
		for _, it := range sec.Items {
			if it.ID == itemID {
				return sec, it
			}
		}
	}
	return nil, nil
}

// Items returns every item in display order.
func (i *Inspection) Items() []*Item {
	var items []*Item
	for _, sec := range i.Sections {
		items = append(items, sec.Items...)
	}
	return items
}

// editableItem enforces the finalized guard and resolves the item.
func (i *Inspection) editableItem(itemID string) (*Item, error) {
	if !i.State.IsEditable() {
		return nil, InvalidState("Inspection %s is %s and cannot be modified", i.ID, i.State)
	}
	_, it := i.Item(itemID)
	if it == nil {
		return nil, NotFound("Item %q not found", itemID)
	}
	return it, nil
}

// SetItemStatus records a status for an item. StatusUnset clears it.
// Rollups are derived on read, so the new section and inspection status are
// visible immediately.
func (i *Inspection) SetItemStatus(itemID string, status Status) (*Item, error) {
	if status != StatusUnset && !status.IsValid() {
		return nil, Invalid("Status must be one of not_applicable, pass, recommended, required")
	}
	it, err := i.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	it.Status = status
	return it, nil
}

// SetItemNote replaces an item's note. An empty note clears it.
func (i *Inspection) SetItemNote(itemID, note string) (*Item, error) {
	it, err := i.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	it.Note = note
	return it, nil
}

// AddItemPhotoRef attaches a photo reference to an item.
// Adding a reference that is already attached is a no-op.
func (i *Inspection) AddItemPhotoRef(itemID, ref string) (*Item, error) {
	if ref == "" {
		return nil, Invalid("Photo reference is required")
	}
	it, err := i.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(it.PhotoRefs, ref) {
		it.PhotoRefs = append(it.PhotoRefs, ref)
	}
	return it, nil
}

// RemoveItemPhotoRef detaches a photo reference from an item.
// Removing a reference that is not attached is a no-op.
func (i *Inspection) RemoveItemPhotoRef(itemID, ref string) (*Item, error) {
	it, err := i.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	it.PhotoRefs = slices.DeleteFunc(it.PhotoRefs, func(r string) bool { return r == ref })
	if len(it.PhotoRefs) == 0 {
		it.PhotoRefs = nil
	}
	return it, nil
}

// InspectionService defines the operations callers use to drive an inspection
// through its lifecycle.
type InspectionService interface {
	// CreateInspection builds a draft inspection from the template version in
	// params (or the current version) and persists it.
	CreateInspection(ctx context.Context, params CreateInspectionParams) (*Inspection, error)

	// FindInspectionByID loads an inspection.
	// Returns ENOTFOUND if the inspection does not exist.
	FindInspectionByID(ctx context.Context, id uuid.UUID) (*Inspection, error)

	// FindInspections lists inspection summaries matching the filter.
	// Returns the matching summaries and total count.
	FindInspections(ctx context.Context, filter InspectionFilter) ([]*InspectionSummary, int, error)

	// DeleteInspection removes the whole aggregate.
	// Returns ENOTFOUND if the inspection does not exist.
	DeleteInspection(ctx context.Context, id uuid.UUID) error

	// GetItem returns a single item.
	// Returns ENOTFOUND if the inspection or item does not exist.
	GetItem(ctx context.Context, id uuid.UUID, itemID string) (*Item, error)

	// SetStatus records an item status; StatusUnset clears it.
	// Returns EINVALIDSTATE if the inspection is finalized.
	// Returns ENOTFOUND if the item is not part of the inspection's template.
	SetStatus(ctx context.Context, id uuid.UUID, itemID string, status Status) (*Item, error)

	// SetNote replaces an item note.
	// Returns EINVALIDSTATE if the inspection is finalized.
	SetNote(ctx context.Context, id uuid.UUID, itemID, note string) (*Item, error)

	// SetTireReading records the measurements of a tire item; an empty
	// reading clears them.
	// Returns EINVALID if a measurement is out of range or the item is not a tire.
	// Returns EINVALIDSTATE if the inspection is finalized.
	SetTireReading(ctx context.Context, id uuid.UUID, itemID string, reading TireReading) (*Item, error)

	// AddPhotoRef attaches an existing blob reference to an item.
	// Returns EINVALIDSTATE if the inspection is finalized.
	AddPhotoRef(ctx context.Context, id uuid.UUID, itemID, ref string) (*Item, error)

	// RemovePhotoRef detaches a blob reference from an item.
	// Returns EINVALIDSTATE if the inspection is finalized.
	RemovePhotoRef(ctx context.Context, id uuid.UUID, itemID, ref string) (*Item, error)

	// AttachPhoto stores photo bytes in the blob store and attaches the ref.
	// Returns EINVALIDSTATE if the inspection is finalized.
	AttachPhoto(ctx context.Context, id uuid.UUID, itemID string, r io.Reader, contentType string) (*Item, error)

	// GetProgress computes rollups and completion for display.
	GetProgress(ctx context.Context, id uuid.UUID) (*Progress, error)

	// Finalize transitions a draft to finalized. Retrying on an already
	// finalized inspection returns it unchanged.
	// Returns EVALIDATION if required items are missing a status.
	// Returns ECONFLICT if a concurrent write was detected.
	Finalize(ctx context.Context, id uuid.UUID) (*Inspection, error)

	// GetReport projects the report of a finalized inspection.
	// Returns EINVALIDSTATE if the inspection is still a draft.
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
}

// CreateInspectionParams contains the parameters for creating an inspection.
type CreateInspectionParams struct {
	Title           string
	InspectorName   string
	InspectorID     string
	SubjectID       string // VIN; decoded into Vehicle when a decoder is configured
	TemplateVersion string // empty selects the provider's current version
}

// InspectionFilter defines criteria for listing inspections.
type InspectionFilter struct {
	State *LifecycleState

	// Pagination
	Offset int
	Limit  int
}

// InspectionSummary is the list view of an inspection.
type InspectionSummary struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	InspectorName   string         `json:"inspectorName"`
	SubjectID       string         `json:"subjectId,omitempty"`
	State           LifecycleState `json:"state"`
	TemplateVersion string         `json:"templateVersion"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	FinalizedAt     *time.Time     `json:"finalizedAt,omitempty"`
}

// Summarize returns the list view of the inspection.
func (i *Inspection) Summarize() *InspectionSummary {
	return &InspectionSummary{
		ID:              i.ID,
		Title:           i.Title,
		InspectorName:   i.InspectorName,
		SubjectID:       i.SubjectID,
		State:           i.State,
		TemplateVersion: i.TemplateVersion,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
		FinalizedAt:     i.FinalizedAt,
	}
}
