package checkmate

// ItemKind marks template items that carry measurements besides a status.
type ItemKind string

const (
	ItemKindCheck     ItemKind = ""          // status only
	ItemKindTire      ItemKind = "tire"      // accepts a TireReading
	ItemKindAlignment ItemKind = "alignment" // status drives the balance suggestion
)

// IsValid returns true if the kind is a recognised value.
func (k ItemKind) IsValid() bool {
	return k == ItemKindCheck || k == ItemKindTire || k == ItemKindAlignment
}

// Tire measurement limits.
const (
	MaxTirePSI         = 80
	MaxTreadDepth32nds = 20

	// MinSafeTread32nds is the tread depth below which maintenance is suggested.
	MinSafeTread32nds = 3
)

// WearPattern is the observed tread wear of one tire.
type WearPattern string

const (
	WearNone    WearPattern = ""
	WearEven    WearPattern = "even"
	WearInner   WearPattern = "inner"
	WearOuter   WearPattern = "outer"
	WearCenter  WearPattern = "center"
	WearCupping WearPattern = "cupping"
)

// IsValid returns true if the pattern is a recognised value.
func (w WearPattern) IsValid() bool {
	switch w {
	case WearNone, WearEven, WearInner, WearOuter, WearCenter, WearCupping:
		return true
	}
	return false
}

// IsUneven reports whether the pattern points at rotation or alignment work.
func (w WearPattern) IsUneven() bool {
	return w == WearInner || w == WearOuter || w == WearCenter || w == WearCupping
}

// TireReading holds the measurements taken at one tire position.
// Every field is optional; a reading with no field set is empty.
type TireReading struct {
	PSIIn      *float64    `json:"psiIn,omitempty"`
	PSIOut     *float64    `json:"psiOut,omitempty"`
	Tread32nds *float64    `json:"tread32nds,omitempty"`
	Wear       WearPattern `json:"wear,omitempty"`
}

// IsEmpty reports whether no measurement was recorded.
func (r TireReading) IsEmpty() bool {
	return r.PSIIn == nil && r.PSIOut == nil && r.Tread32nds == nil && r.Wear == WearNone
}

// Validate checks measurement ranges: pressures within 0-80 PSI, tread within
// 0-20/32nds, and the adjusted pressure not below the measured one.
func (r TireReading) Validate() error {
	fields := map[string]string{}
	if r.PSIIn != nil && (*r.PSIIn < 0 || *r.PSIIn > MaxTirePSI) {
		fields["psiIn"] = "must be between 0 and 80"
	}
	if r.PSIOut != nil && (*r.PSIOut < 0 || *r.PSIOut > MaxTirePSI) {
		fields["psiOut"] = "must be between 0 and 80"
	}
	if r.Tread32nds != nil && (*r.Tread32nds < 0 || *r.Tread32nds > MaxTreadDepth32nds) {
		fields["tread32nds"] = "must be between 0 and 20"
	}
	if !r.Wear.IsValid() {
		fields["wear"] = "must be one of: even inner outer center cupping"
	}
	if _, bad := fields["psiOut"]; !bad && r.PSIIn != nil && r.PSIOut != nil && *r.PSIOut < *r.PSIIn {
		fields["psiOut"] = "must not be less than psiIn"
	}
	if len(fields) > 0 {
		return ErrorWithFields(fields)
	}
	return nil
}

// clone returns a deep copy so callers never share measurement pointers.
func (r *TireReading) clone() *TireReading {
	if r == nil {
		return nil
	}
	c := TireReading{Wear: r.Wear}
	c.PSIIn = cloneFloat(r.PSIIn)
	c.PSIOut = cloneFloat(r.PSIOut)
	c.Tread32nds = cloneFloat(r.Tread32nds)
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// SetItemTireReading records the measurements of a tire item. An empty
// reading clears them.
func (i *Inspection) SetItemTireReading(itemID string, reading TireReading) (*Item, error) {
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	it, err := i.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	if it.Kind != ItemKindTire {
		return nil, Invalid("Item %q does not take tire readings", itemID)
	}
	if reading.IsEmpty() {
		it.Tire = nil
	} else {
		it.Tire = reading.clone()
	}
	return it, nil
}

// WorkSuggestion names follow-up work derived from tire and alignment results.
type WorkSuggestion string

const (
	SuggestRotation        WorkSuggestion = "rotation"
	SuggestTireWearConcern WorkSuggestion = "tire_wear_concern"
	SuggestBalance         WorkSuggestion = "balance"
	SuggestMaintenance     WorkSuggestion = "maintenance"
)

// SuggestWork derives follow-up work from the inspection:
//
//   - uneven wear on any tire suggests rotation and flags a wear concern
//   - an alignment item rated recommended or required suggests balance
//   - tread below 3/32nds on any tire suggests maintenance
//
// The result is de-duplicated and always in the order above.
func SuggestWork(i *Inspection) []WorkSuggestion {
	var unevenWear, alignment, lowTread bool
	for _, it := range i.Items() {
		switch it.Kind {
		case ItemKindTire:
			if it.Tire == nil {
				continue
			}
			if it.Tire.Wear.IsUneven() {
				unevenWear = true
			}
			if it.Tire.Tread32nds != nil && *it.Tire.Tread32nds < MinSafeTread32nds {
				lowTread = true
			}
		case ItemKindAlignment:
			if it.Status.IsFinding() {
				alignment = true
			}
		}
	}

	var out []WorkSuggestion
	if unevenWear {
		out = append(out, SuggestRotation, SuggestTireWearConcern)
	}
	if alignment {
		out = append(out, SuggestBalance)
	}
	if lowTread {
		out = append(out, SuggestMaintenance)
	}
	return out
}
