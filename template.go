package checkmate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Template is a versioned checklist definition. Inspections are built from a
// template and keep its version so they stay interpretable after it changes.
type Template struct {
	Version     string            `json:"version" yaml:"version"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Sections    []SectionTemplate `json:"sections" yaml:"sections"`
}

// SectionTemplate defines one step/subcategory of a checklist.
type SectionTemplate struct {
	ID    string         `json:"id" yaml:"id"`
	Label string         `json:"label" yaml:"label"`
	Items []ItemTemplate `json:"items" yaml:"items"`
}

// ItemTemplate defines one checklist entry.
type ItemTemplate struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Required bool     `json:"required" yaml:"required"`
	Kind     ItemKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// TemplateProvider supplies checklist templates by version.
type TemplateProvider interface {
	// Template returns the template for a version.
	// Returns ENOTFOUND if the version is unknown.
	Template(ctx context.Context, version string) (*Template, error)

	// CurrentVersion returns the version used for new inspections.
	CurrentVersion(ctx context.Context) (string, error)
}

// HasItem reports whether the template defines the item identifier.
func (t *Template) HasItem(itemID string) bool {
	for _, sec := range t.Sections {
		for _, it := range sec.Items {
			if it.ID == itemID {
				return true
			}
		}
	}
	return false
}

// ItemCount returns the number of items the template defines.
func (t *Template) ItemCount() int {
	var n int
	for _, sec := range t.Sections {
		n += len(sec.Items)
	}
	return n
}

// NewInspection builds an empty draft inspection from the template.
func (t *Template) NewInspection(params CreateInspectionParams, now time.Time) *Inspection {
	now = now.UTC()
	insp := &Inspection{
		ID:              uuid.New(),
		Title:           params.Title,
		InspectorName:   params.InspectorName,
		InspectorID:     params.InspectorID,
		SubjectID:       params.SubjectID,
		State:           StateDraft,
		TemplateVersion: t.Version,
		CreatedAt:       now,
		UpdatedAt:       now,
		Sections:        make([]*Section, 0, len(t.Sections)),
	}
	for _, st := range t.Sections {
		sec := &Section{
			ID:    st.ID,
			Label: st.Label,
			Items: make([]*Item, 0, len(st.Items)),
		}
		for _, itm := range st.Items {
			sec.Items = append(sec.Items, &Item{
				ID:       itm.ID,
				Label:    itm.Label,
				Required: itm.Required,
				Kind:     itm.Kind,
			})
		}
		insp.Sections = append(insp.Sections, sec)
	}
	return insp
}
