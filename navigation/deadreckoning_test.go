package navigation

import (
	"math"
	"testing"
	"time"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestProjectEastAlongEquator(t *testing.T) {
	// 111195 m is one degree of arc on a 6371 km sphere.
	seg, ok := Projector{}.Project(LatLng{}, 90, 111195.0/600, 0)
	if !ok {
		t.Fatal("expected a segment")
	}
	if !near(seg.To.Lat, 0, 1e-6) || !near(seg.To.Lng, 1.0, 1e-4) {
		t.Fatalf("to = %+v", seg.To)
	}
	if seg.Horizon != DefaultHorizon {
		t.Errorf("horizon = %v", seg.Horizon)
	}
	if !near(seg.Distance, 111195, 1e-6) {
		t.Errorf("distance = %v", seg.Distance)
	}
}

func TestProjectNorth(t *testing.T) {
	seg, ok := Projector{Horizon: time.Minute}.Project(LatLng{Lat: 45, Lng: -122}, 0, 111195.0/60, 0)
	if !ok {
		t.Fatal("expected a segment")
	}
	if !near(seg.To.Lat, 46, 1e-4) || !near(seg.To.Lng, -122, 1e-9) {
		t.Fatalf("to = %+v", seg.To)
	}
}

func TestProjectExplicitHorizonWins(t *testing.T) {
	seg, ok := Projector{Horizon: time.Hour}.Project(LatLng{}, 180, 1, 10*time.Second)
	if !ok || seg.Distance != 10 {
		t.Fatalf("seg = %+v ok = %v", seg, ok)
	}
}

func TestProjectNormalizesBearing(t *testing.T) {
	seg, ok := Projector{}.Project(LatLng{}, -90, 1, time.Second)
	if !ok || seg.Bearing != 270 {
		t.Fatalf("bearing = %v", seg.Bearing)
	}
	if seg.To.Lng >= 0 {
		t.Errorf("expected westward projection, got %+v", seg.To)
	}
}

func TestProjectAcrossAntimeridian(t *testing.T) {
	seg, ok := Projector{}.Project(LatLng{Lat: 0, Lng: 179.9}, 90, 111195.0/600, 0)
	if !ok {
		t.Fatal("expected a segment")
	}
	if !near(seg.To.Lng, -179.1, 1e-3) {
		t.Fatalf("lng = %v", seg.To.Lng)
	}
}

func TestProjectDegenerate(t *testing.T) {
	tests := map[string]struct {
		origin  LatLng
		bearing float64
		speed   float64
	}{
		"stopped":     {LatLng{1, 1}, 90, 0},
		"astern":      {LatLng{1, 1}, 90, -2},
		"nan speed":   {LatLng{1, 1}, 90, math.NaN()},
		"inf bearing": {LatLng{1, 1}, math.Inf(1), 3},
		"bad origin":  {LatLng{95, 0}, 90, 3},
		"nan origin":  {LatLng{math.NaN(), 0}, 90, 3},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if seg, ok := (Projector{}).Project(tc.origin, tc.bearing, tc.speed, 0); ok {
				t.Fatalf("unexpected segment %+v", seg)
			}
		})
	}
}
