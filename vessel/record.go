// Package vessel extracts telemetry records from feed payloads and maintains
// the live raw and formatted snapshots of the vessel state.
package vessel

import (
	"time"

	"flyer-vessel-viz/units"
)

// RawRecord is one observation: quantity Key had Value, expressed in Unit, at
// ObservedAt. Unit is units.Unresolved when the catalog does not know Key.
type RawRecord struct {
	Key        string     `json:"key"`
	Value      float64    `json:"value"`
	Unit       units.Unit `json:"unit"`
	ObservedAt time.Time  `json:"observed_at"`
}

// Resolved reports whether the record's key was known to the catalog when it
// was extracted.
func (r RawRecord) Resolved() bool {
	return r.Unit != units.Unresolved
}

// FormattedRecord is the display form of a RawRecord.
type FormattedRecord struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	LastUpdate string `json:"last_update"`
}

// Format renders rec through f.
func Format(f *units.Formatter, rec RawRecord) (FormattedRecord, error) {
	out, err := f.Format(rec.Key, rec.Value, rec.Unit, rec.ObservedAt)
	if err != nil {
		return FormattedRecord{}, err
	}
	return FormattedRecord{
		Key:        rec.Key,
		Label:      out.Label,
		Value:      out.Value,
		LastUpdate: out.LastUpdate,
	}, nil
}
