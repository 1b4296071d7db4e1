package checkmate

// Status returns the rollup of every item status in the section.
// It is recomputed on each call and never stored.
func (s *Section) Status() Status {
	return SectionStatus(s)
}

// SectionStatus rolls up the statuses of every item in a section.
func SectionStatus(s *Section) Status {
	statuses := make([]Status, 0, len(s.Items))
	for _, it := range s.Items {
		statuses = append(statuses, it.Status)
	}
	return Rollup(statuses...)
}

// InspectionStatus rolls up the section statuses of an inspection using the
// same merge rule as sections.
func InspectionStatus(i *Inspection) Status {
	statuses := make([]Status, 0, len(i.Sections))
	for _, sec := range i.Sections {
		statuses = append(statuses, SectionStatus(sec))
	}
	return Rollup(statuses...)
}

// CompletionRatio returns the fraction of items that have a status.
// An inspection with no items is vacuously complete (1.0).
func CompletionRatio(i *Inspection) float64 {
	var total, set int
	for _, sec := range i.Sections {
		for _, it := range sec.Items {
			total++
			if it.Status.IsSet() {
				set++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(set) / float64(total)
}

// MissingRequired returns the identifiers of required items without a status,
// in display order.
func MissingRequired(i *Inspection) []string {
	var missing []string
	for _, sec := range i.Sections {
		for _, it := range sec.Items {
			if it.Required && !it.Status.IsSet() {
				missing = append(missing, it.ID)
			}
		}
	}
	return missing
}

// StatusCounts counts items per status.
type StatusCounts struct {
	Unset         int `json:"unset"`
	NotApplicable int `json:"notApplicable"`
	Pass          int `json:"pass"`
	Recommended   int `json:"recommended"`
	Required      int `json:"required"`
}

// Add counts one status.
func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusNotApplicable:
		c.NotApplicable++
	case StatusPass:
		c.Pass++
	case StatusRecommended:
		c.Recommended++
	case StatusRequired:
		c.Required++
	default:
		c.Unset++
	}
}

// CountStatuses counts the items of an inspection per status.
func CountStatuses(i *Inspection) StatusCounts {
	var c StatusCounts
	for _, sec := range i.Sections {
		for _, it := range sec.Items {
			c.Add(it.Status)
		}
	}
	return c
}

// Progress is the rollup view of a draft or finalized inspection.
type Progress struct {
	InspectionID    string            `json:"inspectionId"`
	State           LifecycleState    `json:"state"`
	Status          Status            `json:"status"`
	Light           Light             `json:"light"`
	CompletionRatio float64           `json:"completionRatio"`
	TotalItems      int               `json:"totalItems"`
	Counts          StatusCounts      `json:"counts"`
	Sections        []SectionProgress `json:"sections"`
	MissingRequired []string          `json:"missingRequired,omitempty"`
	Suggestions     []WorkSuggestion  `json:"suggestions,omitempty"`
}

// SectionProgress is the rollup view of one section.
type SectionProgress struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Status   Status `json:"status"`
	Light    Light  `json:"light"`
	Total    int    `json:"total"`
	Complete int    `json:"complete"`
}

// ComputeProgress recomputes every rollup of the inspection.
func ComputeProgress(i *Inspection) *Progress {
	p := &Progress{
		InspectionID:    i.ID.String(),
		State:           i.State,
		Status:          InspectionStatus(i),
		CompletionRatio: CompletionRatio(i),
		Counts:          CountStatuses(i),
		MissingRequired: MissingRequired(i),
		Suggestions:     SuggestWork(i),
		Sections:        make([]SectionProgress, 0, len(i.Sections)),
	}
	p.Light = p.Status.Light()

	for _, sec := range i.Sections {
		sp := SectionProgress{
			ID:     sec.ID,
			Label:  sec.Label,
			Status: sec.Status(),
			Total:  len(sec.Items),
		}
		sp.Light = sp.Status.Light()
		for _, it := range sec.Items {
			if it.Status.IsSet() {
				sp.Complete++
			}
		}
		p.TotalItems += sp.Total
		p.Sections = append(p.Sections, sp)
	}
	return p
}
