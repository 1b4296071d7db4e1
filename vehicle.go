package checkmate

import (
	"context"
	"encoding/json"
)

// VehicleDecoder looks up subject metadata (for vehicles, by VIN).
//
// The returned record is opaque: it is stored on the inspection verbatim and
// only ever echoed back in reports.
type VehicleDecoder interface {
	// Decode returns the metadata record for a subject identifier.
	// Returns ENOTFOUND if the identifier is unknown.
	// Returns ELOOKUP if the lookup service is unreachable or errored.
	Decode(ctx context.Context, subjectID string) (json.RawMessage, error)
}
