package vessel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"flyer-vessel-viz/units"
)

// Profile selects how inbound payloads are interpreted.
type Profile string

const (
	// ProfileAuto picks the profile from the payload shape.
	ProfileAuto Profile = "auto"
	// ProfileFlat is a JSON object of key -> value with a "timestamp" key.
	ProfileFlat Profile = "flat"
	// ProfileStructured is a Signal K style delta with updates[].values[].
	ProfileStructured Profile = "structured"
	// ProfileSentence is one or more raw NMEA 0183 sentences.
	ProfileSentence Profile = "sentence"
)

// TimestampKey is the flat-profile key carrying the batch time.
const TimestampKey = "timestamp"

var ErrMalformed = errors.New("malformed payload")

// ParseProfile converts a configuration string into a Profile.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProfileAuto:
		return ProfileAuto, nil
	case ProfileFlat, ProfileStructured, ProfileSentence:
		return p, nil
	default:
		return "", fmt.Errorf("unknown payload profile %q", s)
	}
}

// Extractor turns one inbound payload into an ordered list of RawRecords. It
// holds no mutable state; Extract is safe for concurrent use.
type Extractor struct {
	catalog *units.Catalog
	profile Profile
	now     func() time.Time
}

// NewExtractor returns an extractor resolving units through catalog.
func NewExtractor(catalog *units.Catalog, profile Profile) *Extractor {
	if profile == "" {
		profile = ProfileAuto
	}
	return &Extractor{catalog: catalog, profile: profile, now: time.Now}
}

// WithClock returns a copy of e using now to stamp payloads that carry no
// date, i.e. NMEA sentences and keyed values without a timestamp.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	cp := *e
	cp.now = now
	return &cp
}

// Profile returns the configured profile.
func (e *Extractor) Profile() Profile {
	return e.profile
}

// Extract parses payload. A malformed payload yields ErrMalformed and no
// records at all. Records keep payload order, so a key repeated within one
// payload resolves to its last occurrence once merged.
func (e *Extractor) Extract(payload []byte) ([]RawRecord, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	profile := e.profile
	if profile == ProfileAuto {
		profile = detectProfile(payload)
	}

	switch profile {
	case ProfileStructured:
		return e.extractStructured(payload)
	case ProfileFlat:
		return e.extractFlat(payload)
	case ProfileSentence:
		return e.extractSentences(payload)
	default:
		return nil, fmt.Errorf("%w: unsupported profile %q", ErrMalformed, profile)
	}
}

// ExtractKeyed parses a payload published on a per-key topic: a bare number,
// a position object or a {"value","timestamp"} object for key.
func (e *Extractor) ExtractKeyed(key string, payload []byte) ([]RawRecord, error) {
	payload = bytes.TrimSpace(payload)
	if key == "" || len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty keyed payload", ErrMalformed)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	return e.appendValue(nil, key, payload, e.now(), true), nil
}

func detectProfile(payload []byte) Profile {
	switch payload[0] {
	case '$', '!':
		return ProfileSentence
	case '{':
		var probe struct {
			Updates json.RawMessage `json:"updates"`
		}
		if err := json.Unmarshal(payload, &probe); err == nil && probe.Updates != nil {
			return ProfileStructured
		}
		return ProfileFlat
	}
	return ProfileFlat
}

type delta struct {
	Updates []deltaUpdate `json:"updates"`
}

type deltaUpdate struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Values    []deltaValue    `json:"values"`
}

type deltaValue struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

func (e *Extractor) extractStructured(payload []byte) ([]RawRecord, error) {
	var msg delta
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Updates == nil {
		return nil, fmt.Errorf("%w: missing updates", ErrMalformed)
	}

	var out []RawRecord
	for i, u := range msg.Updates {
		if len(u.Timestamp) == 0 {
			return nil, fmt.Errorf("%w: update %d has no timestamp", ErrMalformed, i)
		}
		at, err := parseTimestamp(u.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: update %d: %v", ErrMalformed, i, err)
		}
		if u.Values == nil {
			return nil, fmt.Errorf("%w: update %d has no values", ErrMalformed, i)
		}
		for j, v := range u.Values {
			if v.Path == "" {
				return nil, fmt.Errorf("%w: update %d value %d has no path", ErrMalformed, i, j)
			}
			out = e.appendValue(out, v.Path, v.Value, at, false)
		}
	}
	return out, nil
}

type field struct {
	key string
	raw json.RawMessage
}

func (e *Extractor) extractFlat(payload []byte) ([]RawRecord, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		at    time.Time
		found bool
	)
	for _, f := range fields {
		if f.key != TimestampKey {
			continue
		}
		if at, err = parseTimestamp(f.raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformed, TimestampKey)
	}

	var out []RawRecord
	for _, f := range fields {
		if f.key == TimestampKey {
			continue
		}
		out = e.appendValue(out, f.key, f.raw, at, true)
	}
	return out, nil
}

// decodeObject reads a JSON object keeping member order.
func decodeObject(payload []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("payload is not a JSON object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		fields = append(fields, field{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// appendValue converts one JSON value into zero, one or two records. Numbers
// become a record, {latitude, longitude} objects are split in two, and in the
// flat profile {"value", "timestamp"} objects carry their own time. Anything
// else is not a measurement and is skipped.
func (e *Extractor) appendValue(out []RawRecord, key string, raw json.RawMessage, at time.Time, nested bool) []RawRecord {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return out
		}
		if lat, lng, ok := position(obj); ok {
			out = append(out, e.record(key+".latitude", lat, at))
			return append(out, e.record(key+".longitude", lng, at))
		}
		if !nested {
			return out
		}
		inner, ok := obj["value"]
		if !ok {
			return out
		}
		if ts, ok := obj[TimestampKey]; ok {
			if t, err := parseTimestamp(ts); err == nil {
				at = t
			}
		}
		return e.appendValue(out, key, inner, at, false)
	case '"', 't', 'f', 'n', '[':
		return out
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return out
	}
	return append(out, e.record(key, v, at))
}

func position(obj map[string]json.RawMessage) (lat, lng float64, ok bool) {
	rawLat, okLat := obj["latitude"]
	rawLng, okLng := obj["longitude"]
	if !okLat || !okLng {
		return 0, 0, false
	}
	if json.Unmarshal(rawLat, &lat) != nil || json.Unmarshal(rawLng, &lng) != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

func (e *Extractor) record(key string, value float64, at time.Time) RawRecord {
	unit := units.Unresolved
	if q, ok := e.catalog.Lookup(key); ok {
		unit = q.Unit
	}
	return RawRecord{Key: key, Value: value, Unit: unit, ObservedAt: at}
}

// parseTimestamp accepts RFC 3339 strings and unix epoch numbers. Numbers of
// 1e12 or more are milliseconds, smaller ones seconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return time.Time{}, errors.New("empty timestamp")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	if n <= 0 || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("timestamp %s out of range", raw)
	}
	if n >= 1e12 {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
