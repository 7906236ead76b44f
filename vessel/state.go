package vessel

import (
	"errors"

	"flyer-vessel-viz/units"
)

// RawState maps each quantity key to its most recent RawRecord. A RawState is
// never modified after it is published; Merge returns a new one.
type RawState map[string]RawRecord

// FormattedState maps each displayable key to its most recent
// FormattedRecord, kept in step with a RawState.
type FormattedState map[string]FormattedRecord

// Merge returns a copy of s with every record applied in order, the last record
// for a key winning regardless of timestamps. s itself is left untouched.
func (s RawState) Merge(records []RawRecord) RawState {
	next := make(RawState, len(s)+len(records))
	for k, v := range s {
		next[k] = v
	}
	for _, rec := range records {
		next[rec.Key] = rec
	}
	return next
}

// Get returns the record for key.
func (s RawState) Get(key string) (RawRecord, bool) {
	rec, ok := s[key]
	return rec, ok
}

// Merge returns a copy of s with every displayable record formatted and
// applied. Records the catalog does not know are skipped. A record that fails
// to format removes its key, so the formatted view never shows a value older
// than the raw one; such failures are returned joined.
func (s FormattedState) Merge(f *units.Formatter, records []RawRecord) (FormattedState, error) {
	next := make(FormattedState, len(s)+len(records))
	for k, v := range s {
		next[k] = v
	}

	var errs []error
	for _, rec := range records {
		if _, ok := f.Catalog().Lookup(rec.Key); !ok {
			continue
		}
		fr, err := Format(f, rec)
		if err != nil {
			delete(next, rec.Key)
			errs = append(errs, err)
			continue
		}
		next[rec.Key] = fr
	}
	return next, errors.Join(errs...)
}

// Ordered returns the records for the keys in order, skipping absent ones.
func (s FormattedState) Ordered(order []string) []FormattedRecord {
	rows := make([]FormattedRecord, 0, len(order))
	for _, key := range order {
		if rec, ok := s[key]; ok {
			rows = append(rows, rec)
		}
	}
	return rows
}
