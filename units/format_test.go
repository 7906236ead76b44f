package units

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

var observed = time.Date(2025, 4, 3, 22, 5, 57, 0, time.UTC)

func TestFormatSpeedOverGround(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	got, err := f.Format("navigation.speedOverGround", 5.0, MeterPerSecond, observed)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got.Value != "9.7 kn" {
		t.Errorf("Value = %q, want %q", got.Value, "9.7 kn")
	}
	if got.Label != "Speed over ground" {
		t.Errorf("Label = %q", got.Label)
	}
	if got.LastUpdate != "2025-04-03 22:05:57" {
		t.Errorf("LastUpdate = %q", got.LastUpdate)
	}
}

func TestFormatUsesCatalogUnitWhenUnresolved(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	got, err := f.Format("environment.water.temperature", 288.15, Unresolved, observed)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got.Value != "15.0°C" {
		t.Errorf("Value = %q", got.Value)
	}
}

func TestFormatValuePrecision(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	tests := []struct {
		name  string
		value float64
		group Group
		unit  Unit
		want  string
	}{
		{"course in radians", math.Pi / 2, GroupDirection, Radian, "90°"},
		{"rudder in radians", 0.1, GroupAngle, Radian, "5.7°"},
		{"depth", 12.345, GroupDepth, Meter, "12.3 m"},
		{"pressure", 101330, GroupPressure, Pascal, "1013.3 mbar"},
		{"water temperature", 273.15, GroupTemperature, DegreeK, "0.0°C"},
		{"flat temperature", 18.26, GroupTemperature, DegreeC, "18.3°C"},
		{"log", 1852, GroupDistance, Meter, "1.0 nm"},
		{"flat sog", 6.04, GroupSpeed, Knot, "6.0 kn"},
		{"flat cog", 271.6, GroupDirection, DegreeTrue, "272°"},
		{"epoch millis", float64(observed.UnixMilli()), GroupTime, UnixEpoch, "2025-04-03 22:05:57"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.FormatValue(tt.value, tt.group, tt.unit)
			if err != nil {
				t.Fatalf("FormatValue: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatValueWithOverride(t *testing.T) {
	f := NewFormatter(MustCatalog(WithPreferredUnit(GroupTemperature, DegreeF)), time.UTC)
	got, err := f.FormatValue(373.15, GroupTemperature, DegreeK)
	if err != nil {
		t.Fatalf("FormatValue: %v", err)
	}
	if got != "212.0°F" {
		t.Errorf("got %q", got)
	}
}

func TestFormatCoordinates(t *testing.T) {
	dd := NewFormatter(MustCatalog(WithCoordinateFormat(DecimalDegrees)), time.UTC)
	dm := NewFormatter(MustCatalog(WithCoordinateFormat(DegreesMinutes)), time.UTC)

	tests := []struct {
		f     *Formatter
		value float64
		group Group
		want  string
	}{
		{dd, 36.5, GroupLatitude, "36.5000°N"},
		{dm, 36.5, GroupLatitude, "36° 30.0'N"},
		{dd, -33.8568, GroupLatitude, "33.8568°S"},
		{dm, -122.65, GroupLongitude, "122° 39.0'W"},
		{dm, 0, GroupLongitude, "0° 0.0'E"},
		{dm, 10.99999, GroupLatitude, "11° 0.0'N"},
	}
	for _, tt := range tests {
		got, err := tt.f.FormatLatLon(tt.value, tt.group, DecimalDegrees)
		if err != nil {
			t.Fatalf("FormatLatLon(%v): %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("FormatLatLon(%v, %s) = %q, want %q", tt.value, tt.group, got, tt.want)
		}
	}
}

func TestFormatRejectsUnknownKey(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	_, err := f.Format("navigation.anchor.maxRadius", 30, Meter, observed)
	if !errors.Is(err, ErrUnknownQuantity) {
		t.Fatalf("expected ErrUnknownQuantity, got %v", err)
	}
}

func TestFormatNeverRendersNaN(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		got, err := f.Format("depth_meters", v, Meter, observed)
		if !errors.Is(err, ErrNotFinite) {
			t.Fatalf("expected ErrNotFinite, got %v", err)
		}
		if strings.Contains(got.Value, "NaN") {
			t.Fatalf("rendered %q", got.Value)
		}
	}
}

func TestFormatRejectsForeignUnit(t *testing.T) {
	f := NewFormatter(MustCatalog(), time.UTC)
	_, err := f.Format("navigation.speedOverGround", 3, Pascal, observed)
	if !errors.Is(err, ErrNoConversion) {
		t.Fatalf("expected ErrNoConversion, got %v", err)
	}
}

func TestFormatTimeZone(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	f := NewFormatter(MustCatalog(), loc)
	if got := f.FormatTime(observed); got != "2025-04-03 15:05:57" {
		t.Errorf("FormatTime = %q", got)
	}
}
