package checkmate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentSchema is the schema number written by EncodeDocument.
// Older numbers keep their own decoder so stored records remain loadable.
const DocumentSchema = 1

// InspectionStore persists whole inspection aggregates by id.
type InspectionStore interface {
	// Load retrieves an inspection.
	// Returns ENOTFOUND if the inspection does not exist.
	Load(ctx context.Context, id uuid.UUID) (*Inspection, error)

	// Save writes the whole aggregate atomically. An inspection with
	// Version 0 is inserted; otherwise the stored version must equal
	// insp.Version. On success insp.Version is incremented.
	// Returns ECONFLICT if the stored version differs or the id already exists.
	Save(ctx context.Context, insp *Inspection) error

	// Delete removes the aggregate.
	// Returns ENOTFOUND if the inspection does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns summaries matching the filter, newest first, and the total count.
	List(ctx context.Context, filter InspectionFilter) ([]*InspectionSummary, int, error)
}

// envelope is the outer shape of every stored document.
type envelope struct {
	Schema     int             `json:"schema"`
	Inspection json.RawMessage `json:"inspection"`
}

// documentV1 is the stored form of an inspection at schema 1. It is kept
// separate from Inspection so the domain type can evolve without changing
// what older records mean.
type documentV1 struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	InspectorName   string          `json:"inspectorName"`
	InspectorID     string          `json:"inspectorId"`
	SubjectID       string          `json:"subjectId,omitempty"`
	Vehicle         json.RawMessage `json:"vehicle,omitempty"`
	State           LifecycleState  `json:"state"`
	TemplateVersion string          `json:"templateVersion"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	FinalizedAt     *time.Time      `json:"finalizedAt,omitempty"`
	Sections        []sectionV1     `json:"sections"`
}

type sectionV1 struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Items []itemV1 `json:"items"`
}

type itemV1 struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Status    string   `json:"status,omitempty"`
	Note      string   `json:"note,omitempty"`
	PhotoRefs []string `json:"photoRefs,omitempty"`
	Required  bool     `json:"required,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Tire      *tireV1  `json:"tire,omitempty"`
}

type tireV1 struct {
	PSIIn      *float64 `json:"psiIn,omitempty"`
	PSIOut     *float64 `json:"psiOut,omitempty"`
	Tread32nds *float64 `json:"tread32nds,omitempty"`
	Wear       string   `json:"wear,omitempty"`
}

// EncodeDocument serializes the aggregate for storage. The write-version is
// not part of the document; stores keep it alongside.
func EncodeDocument(i *Inspection) ([]byte, error) {
	doc := documentV1{
		ID:              i.ID,
		Title:           i.Title,
		InspectorName:   i.InspectorName,
		InspectorID:     i.InspectorID,
		SubjectID:       i.SubjectID,
		Vehicle:         i.Vehicle,
		State:           i.State,
		TemplateVersion: i.TemplateVersion,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
		FinalizedAt:     i.FinalizedAt,
		Sections:        make([]sectionV1, 0, len(i.Sections)),
	}
	for _, sec := range i.Sections {
		s := sectionV1{ID: sec.ID, Label: sec.Label, Items: make([]itemV1, 0, len(sec.Items))}
		for _, it := range sec.Items {
			s.Items = append(s.Items, itemV1{
				ID:        it.ID,
				Label:     it.Label,
				Status:    it.Status.String(),
				Note:      it.Note,
				PhotoRefs: it.PhotoRefs,
				Required:  it.Required,
				Kind:      string(it.Kind),
				Tire:      encodeTire(it.Tire),
			})
		}
		doc.Sections = append(doc.Sections, s)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal inspection document: %w", err)
	}
	return json.Marshal(envelope{Schema: DocumentSchema, Inspection: body})
}

// DecodeDocument restores an aggregate using the decoder for the schema the
// document was written with.
func DecodeDocument(data []byte, version int64) (*Inspection, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal document envelope: %w", err)
	}

	var (
		insp *Inspection
		err  error
	)
	switch env.Schema {
	case 1:
		insp, err = decodeV1(env.Inspection)
	default:
		return nil, fmt.Errorf("unsupported document schema %d", env.Schema)
	}
	if err != nil {
		return nil, err
	}
	insp.Version = version
	return insp, nil
}

func decodeV1(data []byte) (*Inspection, error) {
	var doc documentV1
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal inspection document: %w", err)
	}
	if !doc.State.IsValid() {
		return nil, fmt.Errorf("document has unknown state %q", doc.State)
	}

	insp := &Inspection{
		ID:              doc.ID,
		Title:           doc.Title,
		InspectorName:   doc.InspectorName,
		InspectorID:     doc.InspectorID,
		SubjectID:       doc.SubjectID,
		Vehicle:         doc.Vehicle,
		State:           doc.State,
		TemplateVersion: doc.TemplateVersion,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		FinalizedAt:     doc.FinalizedAt,
		Sections:        make([]*Section, 0, len(doc.Sections)),
	}
	for _, s := range doc.Sections {
		sec := &Section{ID: s.ID, Label: s.Label, Items: make([]*Item, 0, len(s.Items))}
		for _, it := range s.Items {
			st, err := ParseStatus(it.Status)
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", it.ID, err)
			}
			kind := ItemKind(it.Kind)
			if !kind.IsValid() {
				return nil, fmt.Errorf("item %s: unknown kind %q", it.ID, it.Kind)
			}
			sec.Items = append(sec.Items, &Item{
				ID:        it.ID,
				Label:     it.Label,
				Status:    st,
				Note:      it.Note,
				PhotoRefs: it.PhotoRefs,
				Required:  it.Required,
				Kind:      kind,
				Tire:      decodeTire(it.Tire),
			})
		}
		insp.Sections = append(insp.Sections, sec)
	}
	return insp, nil
}

func encodeTire(r *TireReading) *tireV1 {
	if r == nil {
		return nil
	}
	return &tireV1{PSIIn: r.PSIIn, PSIOut: r.PSIOut, Tread32nds: r.Tread32nds, Wear: string(r.Wear)}
}

func decodeTire(t *tireV1) *TireReading {
	if t == nil {
		return nil
	}
	return &TireReading{PSIIn: t.PSIIn, PSIOut: t.PSIOut, Tread32nds: t.Tread32nds, Wear: WearPattern(t.Wear)}
}
