package checkmate

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
)

// Report is the read-only, denormalized view of a finalized inspection that
// renderers consume. It is derived on demand and never stored.
type Report struct {
	InspectionID    uuid.UUID       `json:"inspectionId"`
	Title           string          `json:"title"`
	InspectorName   string          `json:"inspectorName"`
	InspectorID     string          `json:"inspectorId"`
	SubjectID       string          `json:"subjectId,omitempty"`
	Vehicle         json.RawMessage `json:"vehicle,omitempty"`
	TemplateVersion string          `json:"templateVersion"`
	CreatedAt       time.Time       `json:"createdAt"`
	FinalizedAt     time.Time       `json:"finalizedAt"`

	Status          Status       `json:"status"`
	Light           Light        `json:"light"`
	TotalItems      int          `json:"totalItems"`
	Counts          StatusCounts `json:"counts"`
	CompletionRatio float64      `json:"completionRatio"`
	PhotoCount      int          `json:"photoCount"`

	Sections    []ReportSection  `json:"sections"`
	Findings    []FindingGroup   `json:"findings"`
	Suggestions []WorkSuggestion `json:"suggestions,omitempty"`
}

// ReportSection is one section of the report with every item.
type ReportSection struct {
	ID     string       `json:"id"`
	Label  string       `json:"label"`
	Status Status       `json:"status"`
	Light  Light        `json:"light"`
	Items  []ReportItem `json:"items"`
}

// ReportItem is the report view of an item.
type ReportItem struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Status    Status   `json:"status"`
	Light     Light    `json:"light"`
	Note      string   `json:"note,omitempty"`
	PhotoRefs []string     `json:"photoRefs,omitempty"`
	Tire      *TireReading `json:"tire,omitempty"`
}

// FindingGroup lists the Required and Recommended items of one section.
type FindingGroup struct {
	SectionID    string       `json:"sectionId"`
	SectionLabel string       `json:"sectionLabel"`
	Items        []ReportItem `json:"items"`
}

// Project derives the report of a finalized inspection.
// Sections, items and findings keep the inspection's display order.
// Returns EINVALIDSTATE for a draft.
func Project(i *Inspection) (*Report, error) {
	if !i.IsFinalized() || i.FinalizedAt == nil {
		return nil, InvalidState("Inspection %s is not finalized", i.ID)
	}

	r := &Report{
		InspectionID:    i.ID,
		Title:           i.Title,
		InspectorName:   i.InspectorName,
		InspectorID:     i.InspectorID,
		SubjectID:       i.SubjectID,
		TemplateVersion: i.TemplateVersion,
		CreatedAt:       i.CreatedAt,
		FinalizedAt:     *i.FinalizedAt,
		Status:          InspectionStatus(i),
		CompletionRatio: CompletionRatio(i),
		Sections:        make([]ReportSection, 0, len(i.Sections)),
		Findings:        []FindingGroup{},
		Suggestions:     SuggestWork(i),
	}
	r.Light = r.Status.Light()
	if len(i.Vehicle) > 0 {
		r.Vehicle = append(json.RawMessage(nil), i.Vehicle...)
	}

	for _, sec := range i.Sections {
		rs := ReportSection{
			ID:     sec.ID,
			Label:  sec.Label,
			Status: sec.Status(),
			Items:  make([]ReportItem, 0, len(sec.Items)),
		}
		rs.Light = rs.Status.Light()

		var findings []ReportItem
		for _, it := range sec.Items {
			ri := ReportItem{
				ID:     it.ID,
				Label:  it.Label,
				Status: it.Status,
				Light:  it.Status.Light(),
				Note:   it.Note,
				Tire:   it.Tire.clone(),
			}
			if len(it.PhotoRefs) > 0 {
				ri.PhotoRefs = append([]string(nil), it.PhotoRefs...)
			}

			r.TotalItems++
			r.Counts.Add(it.Status)
			r.PhotoCount += len(it.PhotoRefs)
			rs.Items = append(rs.Items, ri)
			if it.Status.IsFinding() {
				findings = append(findings, ri)
			}
		}

		r.Sections = append(r.Sections, rs)
		if len(findings) > 0 {
			r.Findings = append(r.Findings, FindingGroup{
				SectionID:    sec.ID,
				SectionLabel: sec.Label,
				Items:        findings,
			})
		}
	}

	return r, nil
}

// ReportRenderer turns a report into a human-readable artifact.
type ReportRenderer interface {
	// ContentType is the MIME type of the rendered output.
	ContentType() string

	// Render writes the report to w.
	Render(ctx context.Context, w io.Writer, r *Report) error
}
