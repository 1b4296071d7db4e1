// Package render turns inspection reports into HTML pages and canonical JSON.
package render

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dukerupert/checkmate"
)

//go:embed templates
var templateFS embed.FS

const reportPage = "report.html"

// Compile-time interface checks
var (
	_ checkmate.ReportRenderer = (*HTML)(nil)
	_ checkmate.ReportRenderer = (*JSON)(nil)
)

var funcs = template.FuncMap{
	"statusLabel": statusLabel,
	"lightClass":  lightClass,
	"percent":     func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
	"formatTime":  func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
	"vehicle":     vehicleSummary,
	"tire":        tireSummary,
	"suggestion":  suggestionLabel,
}

// HTML renders reports as a standalone HTML page.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded layout, components and report page.
func NewHTML() (*HTML, error) {
	tmpl, err := template.New("base").Funcs(funcs).ParseFS(templateFS,
		"templates/layouts/*.html",
		"templates/components/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layouts: %w", err)
	}
	tmpl, err = tmpl.ParseFS(templateFS, "templates/pages/"+reportPage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", reportPage, err)
	}
	return &HTML{tmpl: tmpl}, nil
}

func (h *HTML) ContentType() string { return "text/html; charset=utf-8" }

func (h *HTML) Render(ctx context.Context, w io.Writer, r *checkmate.Report) error {
	return h.tmpl.ExecuteTemplate(w, reportPage, r)
}

func statusLabel(s checkmate.Status) string {
	switch s {
	case checkmate.StatusNotApplicable:
		return "N/A"
	case checkmate.StatusPass:
		return "Pass"
	case checkmate.StatusRecommended:
		return "Recommended"
	case checkmate.StatusRequired:
		return "Required"
	default:
		return "Unchecked"
	}
}

func lightClass(l checkmate.Light) string {
	if l == checkmate.LightNone {
		return "none"
	}
	return string(l)
}

// vehicleSummary formats a decoded vehicle record as "year make model".
// Records of any other shape render as nothing.
func vehicleSummary(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v struct {
		Year  string `json:"year"`
		Make  string `json:"make"`
		Model string `json:"model"`
		Trim  string `json:"trim"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	var parts []string
	for _, p := range []string{v.Year, v.Make, v.Model, v.Trim} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// tireSummary formats a tire reading such as: 28 → 35 PSI, 6/32", inner wear
func tireSummary(r *checkmate.TireReading) string {
	if r == nil {
		return ""
	}
	var parts []string
	switch {
	case r.PSIIn != nil && r.PSIOut != nil:
		parts = append(parts, fmt.Sprintf("%g → %g PSI", *r.PSIIn, *r.PSIOut))
	case r.PSIIn != nil:
		parts = append(parts, fmt.Sprintf("%g PSI", *r.PSIIn))
	case r.PSIOut != nil:
		parts = append(parts, fmt.Sprintf("set to %g PSI", *r.PSIOut))
	}
	if r.Tread32nds != nil {
		parts = append(parts, fmt.Sprintf("%g/32\"", *r.Tread32nds))
	}
	if r.Wear != checkmate.WearNone {
		parts = append(parts, string(r.Wear)+" wear")
	}
	return strings.Join(parts, ", ")
}

func suggestionLabel(s checkmate.WorkSuggestion) string {
	switch s {
	case checkmate.SuggestRotation:
		return "Tire rotation"
	case checkmate.SuggestTireWearConcern:
		return "Uneven tire wear"
	case checkmate.SuggestBalance:
		return "Wheel balance"
	case checkmate.SuggestMaintenance:
		return "Tire replacement (low tread)"
	}
	return string(s)
}
