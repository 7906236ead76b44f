package vessel

import (
	"errors"
	"testing"
	"time"

	"flyer-vessel-viz/units"
)

func newTestExtractor(profile Profile) *Extractor {
	return NewExtractor(units.MustCatalog(), profile)
}

func TestExtractStructuredFlattensPosition(t *testing.T) {
	payload := []byte(`{
		"context": "vessels.urn:mrn:imo:mmsi:368204530",
		"updates": [{
			"timestamp": "2025-04-03T22:05:57.000Z",
			"values": [{"path": "navigation.position", "value": {"latitude": 45.6, "longitude": -122.65}}]
		}]
	}`)
	recs, err := newTestExtractor(ProfileAuto).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(recs), recs)
	}

	want := time.Date(2025, 4, 3, 22, 5, 57, 0, time.UTC)
	if recs[0].Key != "navigation.position.latitude" || recs[0].Value != 45.6 {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Key != "navigation.position.longitude" || recs[1].Value != -122.65 {
		t.Errorf("second record = %+v", recs[1])
	}
	for _, r := range recs {
		if !r.ObservedAt.Equal(want) {
			t.Errorf("%s observed at %v, want %v", r.Key, r.ObservedAt, want)
		}
		if r.Unit != units.DecimalDegrees {
			t.Errorf("%s unit = %q", r.Key, r.Unit)
		}
	}
}

func TestExtractStructuredMultipleUpdates(t *testing.T) {
	payload := []byte(`{"updates": [
		{"timestamp": "2025-04-03T22:00:00Z", "values": [
			{"path": "navigation.speedOverGround", "value": 3.1},
			{"path": "navigation.courseOverGroundTrue", "value": 1.57}
		]},
		{"timestamp": "2025-04-03T22:00:01Z", "values": [
			{"path": "navigation.speedOverGround", "value": 3.3}
		]}
	]}`)
	recs, err := newTestExtractor(ProfileStructured).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[2].Value != 3.3 || recs[2].ObservedAt.Second() != 1 {
		t.Errorf("last record = %+v", recs[2])
	}
	if recs[0].Unit != units.MeterPerSecond {
		t.Errorf("unit = %q", recs[0].Unit)
	}
}

func TestExtractStructuredMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"updates": [`,
		"missing timestamp": `{"updates": [{"values": [{"path": "a", "value": 1}]}]}`,
		"bad timestamp":     `{"updates": [{"timestamp": "yesterday", "values": []}]}`,
		"missing values":    `{"updates": [{"timestamp": "2025-04-03T22:00:00Z"}]}`,
		"missing path":      `{"updates": [{"timestamp": "2025-04-03T22:00:00Z", "values": [{"value": 1}]}]}`,
		"updates not list":  `{"updates": {"timestamp": "2025-04-03T22:00:00Z"}}`,
		"null updates":      `{"updates": null}`,
	}
	e := newTestExtractor(ProfileStructured)
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			recs, err := e.Extract([]byte(payload))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if len(recs) != 0 {
				t.Fatalf("expected no records, got %d", len(recs))
			}
		})
	}
}

func TestExtractStructuredMalformedLaterUpdateDiscardsAll(t *testing.T) {
	payload := []byte(`{"updates": [
		{"timestamp": "2025-04-03T22:00:00Z", "values": [{"path": "navigation.headingTrue", "value": 1}]},
		{"values": [{"path": "navigation.headingTrue", "value": 2}]}
	]}`)
	recs, err := newTestExtractor(ProfileAuto).Extract(payload)
	if !errors.Is(err, ErrMalformed) || recs != nil {
		t.Fatalf("got %v, %v", recs, err)
	}
}

func TestExtractUnknownPathPassesThrough(t *testing.T) {
	payload := []byte(`{"updates": [{"timestamp": "2025-04-03T22:00:00Z", "values": [
		{"path": "propulsion.main.revolutions", "value": 28.5},
		{"path": "navigation.headingTrue", "value": 0.5}
	]}]}`)
	recs, err := newTestExtractor(ProfileAuto).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Resolved() {
		t.Errorf("unknown key resolved to %q", recs[0].Unit)
	}
	if !recs[1].Resolved() {
		t.Error("known key unresolved")
	}
}

func TestExtractFlatKeepsOrderAndSkipsText(t *testing.T) {
	payload := []byte(`{
		"latitude": 31.854926666666668,
		"longitude": -116.62007166666666,
		"timeUTC": "01:00:13",
		"gll_mode": "D",
		"sentence_type": "GLL",
		"timestamp": 1743717957
	}`)
	recs, err := newTestExtractor(ProfileAuto).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records: %+v", len(recs), recs)
	}
	if recs[0].Key != "latitude" || recs[1].Key != "longitude" {
		t.Errorf("order = %s, %s", recs[0].Key, recs[1].Key)
	}
	want := time.Unix(1743717957, 0)
	for _, r := range recs {
		if !r.ObservedAt.Equal(want) {
			t.Errorf("%s at %v, want %v", r.Key, r.ObservedAt, want)
		}
	}
}

func TestExtractFlatPerFieldTimestamp(t *testing.T) {
	payload := []byte(`{
		"timestamp": 1743717957000,
		"sog_knots": {"value": 6.2, "timestamp": "2025-04-03T22:00:00Z"},
		"cog_true": 181.0
	}`)
	recs, err := newTestExtractor(ProfileFlat).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if got := recs[0].ObservedAt; !got.Equal(time.Date(2025, 4, 3, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("per-field time = %v", got)
	}
	if got := recs[1].ObservedAt; !got.Equal(time.UnixMilli(1743717957000)) {
		t.Errorf("batch time = %v", got)
	}
}

func TestExtractFlatRepeatedKeyKeepsBoth(t *testing.T) {
	payload := []byte(`{"timestamp": 1743717957, "depth_meters": 4.0, "depth_meters": 4.5}`)
	recs, err := newTestExtractor(ProfileFlat).Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(recs) != 2 || recs[1].Value != 4.5 {
		t.Fatalf("records = %+v", recs)
	}
}

func TestExtractFlatMissingTimestamp(t *testing.T) {
	_, err := newTestExtractor(ProfileFlat).Extract([]byte(`{"sog_knots": 5}`))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractFlatRejectsArray(t *testing.T) {
	_, err := newTestExtractor(ProfileFlat).Extract([]byte(`[1, 2, 3]`))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	payload := []byte(`{"timestamp": 1743717957, "a": 1, "b": 2, "c": {"latitude": 1, "longitude": 2}}`)
	e := newTestExtractor(ProfileAuto)
	first, err := e.Extract(payload)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := e.Extract(payload)
		if len(again) != len(first) {
			t.Fatalf("length changed: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("record %d differs: %+v vs %+v", j, again[j], first[j])
			}
		}
	}
}

func TestExtractKeyed(t *testing.T) {
	now := time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(ProfileAuto).WithClock(func() time.Time { return now })

	recs, err := e.ExtractKeyed("navigation.headingTrue", []byte(`1.25`))
	if err != nil {
		t.Fatalf("ExtractKeyed: %v", err)
	}
	if len(recs) != 1 || recs[0].Value != 1.25 || !recs[0].ObservedAt.Equal(now) {
		t.Fatalf("records = %+v", recs)
	}

	recs, err = e.ExtractKeyed("navigation.position", []byte(`{"latitude": 1.5, "longitude": 2.5}`))
	if err != nil || len(recs) != 2 {
		t.Fatalf("position: %+v, %v", recs, err)
	}

	if _, err := e.ExtractKeyed("x", []byte(`{oops`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	for in, want := range map[string]Profile{
		"":           ProfileAuto,
		"auto":       ProfileAuto,
		"Flat":       ProfileFlat,
		"structured": ProfileStructured,
		"sentence":   ProfileSentence,
	} {
		got, err := ParseProfile(in)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseProfile("signalk-v2"); err == nil {
		t.Error("expected error for unknown profile")
	}
}
