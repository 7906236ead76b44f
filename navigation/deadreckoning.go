// Package navigation projects a vessel's position forward along its course.
package navigation

import (
	"math"
	"time"
)

const (
	// EarthRadiusMeters is the mean earth radius used for projection.
	EarthRadiusMeters = 6371000.0

	// DefaultHorizon is how far ahead the course line reaches.
	DefaultHorizon = 600 * time.Second
)

// LatLng is a position in signed decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a finite position on the globe.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Segment is a straight course line from From to To.
type Segment struct {
	From     LatLng        `json:"from"`
	To       LatLng        `json:"to"`
	Bearing  float64       `json:"bearing"`
	Distance float64       `json:"distance_m"`
	Horizon  time.Duration `json:"horizon_ns"`
}

// Projector computes dead-reckoning segments. The zero value uses
// DefaultHorizon.
type Projector struct {
	Horizon time.Duration
}

// Project returns the great-circle segment a vessel at origin covers in horizon
// when holding bearingDeg (degrees true) at speedMPS (meters per second). A
// non-positive horizon means the projector's own. ok is false when there is
// nothing to draw: no forward speed, a non-finite input, or an invalid origin.
func (p Projector) Project(origin LatLng, bearingDeg, speedMPS float64, horizon time.Duration) (Segment, bool) {
	if horizon <= 0 {
		horizon = p.Horizon
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if !origin.Valid() || !finite(bearingDeg) || !finite(speedMPS) || speedMPS <= 0 {
		return Segment{}, false
	}

	bearing := math.Mod(bearingDeg, 360)
	if bearing < 0 {
		bearing += 360
	}
	distance := speedMPS * horizon.Seconds()

	return Segment{
		From:     origin,
		To:       Destination(origin, bearing, distance),
		Bearing:  bearing,
		Distance: distance,
		Horizon:  horizon,
	}, true
}

// Destination returns the point reached from origin after travelling
// distanceM meters along the great circle with initial bearing bearingDeg.
func Destination(origin LatLng, bearingDeg, distanceM float64) LatLng {
	lat1 := toRad(origin.Lat)
	lng1 := toRad(origin.Lng)
	brng := toRad(bearingDeg)
	ang := distanceM / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2),
	)

	return LatLng{Lat: toDeg(lat2), Lng: normalizeLng(toDeg(lng2))}
}

func normalizeLng(lng float64) float64 {
	lng = math.Mod(lng+540, 360) - 180
	if lng == -180 {
		return 180
	}
	return lng
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
