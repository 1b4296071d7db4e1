package checkmate

import (
	"time"
)

// FinalizePolicy controls which conditions block a finalize beyond missing
// mandatory data.
type FinalizePolicy struct {
	// BlockOnRequiredFindings rejects finalize while any item carries a
	// Required status. Off by default: a Required status is a finding to
	// report, not an error.
	BlockOnRequiredFindings bool
}

// Finalize validates a draft and freezes it, stamping FinalizedAt with now.
//
// Checks run in order and the first failure is returned:
//  1. the inspection is a draft (an already finalized inspection is returned
//     unchanged by the caller before reaching here),
//  2. every required item has a status (all missing ids are reported),
//  3. with BlockOnRequiredFindings, no item has a Required status.
func (i *Inspection) Finalize(now time.Time, policy FinalizePolicy) error {
	if !i.State.CanTransitionTo(StateFinalized) {
		return InvalidState("Inspection %s cannot be finalized from state %q", i.ID, i.State)
	}

	if missing := MissingRequired(i); len(missing) > 0 {
		return ValidationFailed("Required items have no status", missing)
	}

	if policy.BlockOnRequiredFindings {
		var blocking []string
		for _, it := range i.Items() {
			if it.Status == StatusRequired {
				blocking = append(blocking, it.ID)
			}
		}
		if len(blocking) > 0 {
			return ValidationFailed("Items with required work block finalize", blocking)
		}
	}

	finalizedAt := now.UTC()
	i.State = StateFinalized
	i.FinalizedAt = &finalizedAt
	i.UpdatedAt = finalizedAt
	return nil
}
