package checkmate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the condition recorded for a single inspection item.
//
// Set values are totally ordered by severity:
// NotApplicable < Pass < Recommended < Required.
// The zero value StatusUnset means no status has been recorded yet and is
// outside that order.
type Status uint8

const (
	StatusUnset Status = iota
	StatusNotApplicable
	StatusPass
	StatusRecommended
	StatusRequired
)

// Light is the traffic-light colour shown for a status.
type Light string

const (
	LightNone   Light = ""
	LightNA     Light = "na"
	LightGreen  Light = "green"
	LightYellow Light = "yellow"
	LightRed    Light = "red"
)

var statusNames = [...]string{
	StatusUnset:         "",
	StatusNotApplicable: "not_applicable",
	StatusPass:          "pass",
	StatusRecommended:   "recommended",
	StatusRequired:      "required",
}

// statusAliases maps every token seen in checklist files, API payloads and
// tire cards onto the canonical status.
var statusAliases = map[string]Status{
	"not_applicable": StatusNotApplicable,
	"not-applicable": StatusNotApplicable,
	"na":             StatusNotApplicable,
	"n/a":            StatusNotApplicable,
	"pass":           StatusPass,
	"ok":             StatusPass,
	"green":          StatusPass,
	"recommended":    StatusRecommended,
	"rec":            StatusRecommended,
	"yellow":         StatusRecommended,
	"required":       StatusRequired,
	"req":            StatusRequired,
	"red":            StatusRequired,
}

// ParseStatus converts a status token into a Status.
// Legacy tokens are accepted; an empty string parses as StatusUnset.
func ParseStatus(s string) (Status, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	if token == "" {
		return StatusUnset, nil
	}
	if st, ok := statusAliases[token]; ok {
		return st, nil
	}
	return StatusUnset, Invalid("Unknown status %q", s)
}

// String returns the canonical token for the status.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// IsSet reports whether a status has been recorded.
func (s Status) IsSet() bool {
	return s != StatusUnset
}

// IsValid reports whether s is a recognised, set status.
func (s Status) IsValid() bool {
	return s >= StatusNotApplicable && s <= StatusRequired
}

// IsFinding reports whether the status is surfaced as a report finding.
func (s Status) IsFinding() bool {
	return s == StatusRecommended || s == StatusRequired
}

// Light returns the traffic-light colour for the status.
func (s Status) Light() Light {
	switch s {
	case StatusNotApplicable:
		return LightNA
	case StatusPass:
		return LightGreen
	case StatusRecommended:
		return LightYellow
	case StatusRequired:
		return LightRed
	default:
		return LightNone
	}
}

// Compare orders two statuses by severity, returning -1, 0 or +1.
// StatusUnset sorts below every set value.
func Compare(a, b Status) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Rollup merges statuses into one using max severity.
//
// Unset and NotApplicable values never raise the result. The result is
// NotApplicable when nothing else is present, including the empty input.
func Rollup(values ...Status) Status {
	result := StatusNotApplicable
	for _, v := range values {
		if !v.IsValid() || v == StatusNotApplicable {
			continue
		}
		if Compare(v, result) > 0 {
			result = v
		}
	}
	return result
}

// MarshalJSON encodes the canonical token, or null when unset.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.IsSet() {
		return []byte("null"), nil
	}
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status token; null decodes as StatusUnset.
func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusUnset
		return nil
	}
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	st, err := ParseStatus(token)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
