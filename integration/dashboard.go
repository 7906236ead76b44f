// Package integration maps session snapshots into the view the dashboard
// renders: boat marker, course line, wind barb, table and status line.
package integration

import (
	"math"
	"sync"
	"time"

	"flyer-vessel-viz/navigation"
	"flyer-vessel-viz/units"
	"flyer-vessel-viz/vessel"
)

// Candidate keys, structured path first and flat key second.
var (
	latitudeKeys  = []string{"navigation.position.latitude", "latitude"}
	longitudeKeys = []string{"navigation.position.longitude", "longitude"}
	cogKeys       = []string{"navigation.courseOverGroundTrue", "cog_true"}
	sogKeys       = []string{"navigation.speedOverGround", "sog_knots"}
	stwKeys       = []string{"navigation.speedThroughWater", "stw_knots"}
	headingKeys   = []string{"navigation.headingTrue", "hdg_true"}
	twdKeys       = []string{"environment.wind.directionTrue", "twd_true"}
	twsKeys       = []string{"environment.wind.speedOverGround", "environment.wind.speedTrue", "tws_knots"}
	awaKeys       = []string{"environment.wind.angleApparent", "awa"}
	awsKeys       = []string{"environment.wind.speedApparent", "aws_knots"}
)

// Wind is the wind shown by the barb. DirectionDeg is where the wind blows
// from, degrees true.
type Wind struct {
	SpeedKnots   float64 `json:"speed_knots"`
	DirectionDeg float64 `json:"direction_deg"`
	Derived      bool    `json:"derived"`
	Barb         Barb    `json:"barb"`
}

// Dashboard is everything a client needs to draw one frame.
type Dashboard struct {
	Seq        uint64                   `json:"seq"`
	UpdatedAt  time.Time                `json:"updated_at"`
	Status     string                   `json:"status"`
	Position   *navigation.LatLng       `json:"position,omitempty"`
	HeadingDeg *float64                 `json:"heading_deg,omitempty"`
	COG        *navigation.Segment      `json:"cog,omitempty"`
	Wind       *Wind                    `json:"wind,omitempty"`
	Rows       []vessel.FormattedRecord `json:"rows"`
}

// MapperConfig controls what the dashboard shows.
type MapperConfig struct {
	Order         []string
	DefaultStatus string
	// MinCOGLength is the shortest course line drawn, in meters.
	MinCOGLength float64
	Horizon      time.Duration
}

// DashboardMapper builds Dashboard views from snapshots. The broker status
// line may be updated from any goroutine.
type DashboardMapper struct {
	catalog   *units.Catalog
	projector navigation.Projector
	cfg       MapperConfig

	mu     sync.RWMutex
	status string
}

func NewDashboardMapper(catalog *units.Catalog, cfg MapperConfig) *DashboardMapper {
	return &DashboardMapper{
		catalog:   catalog,
		projector: navigation.Projector{Horizon: cfg.Horizon},
		cfg:       cfg,
	}
}

// SetStatus records the latest status line published on the broker.
func (m *DashboardMapper) SetStatus(s string) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Status returns the broker status line, empty when none was received.
func (m *DashboardMapper) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Order returns the table order.
func (m *DashboardMapper) Order() []string {
	return m.cfg.Order
}

// Map builds the dashboard view of snap.
func (m *DashboardMapper) Map(snap *vessel.Snapshot) Dashboard {
	d := Dashboard{
		Seq:       snap.Seq,
		UpdatedAt: snap.UpdatedAt,
		Rows:      snap.Formatted.Ordered(m.cfg.Order),
	}

	pos, hasPos := m.Position(snap.Raw)
	if hasPos {
		d.Position = &pos
		d.Status = m.Status()
	} else {
		d.Status = m.cfg.DefaultStatus
	}

	if hdg, ok := m.value(snap.Raw, units.DegreeTrue, headingKeys); ok {
		d.HeadingDeg = &hdg
	}
	if hasPos {
		if seg, ok := m.CourseLine(snap.Raw, pos, 0); ok {
			d.COG = &seg
		}
	}
	if w, ok := m.Wind(snap.Raw); ok {
		d.Wind = &w
	}
	return d
}

// Position returns the boat position, if both coordinates are known and
// valid.
func (m *DashboardMapper) Position(raw vessel.RawState) (navigation.LatLng, bool) {
	lat, ok := m.value(raw, units.DecimalDegrees, latitudeKeys)
	if !ok {
		return navigation.LatLng{}, false
	}
	lng, ok := m.value(raw, units.DecimalDegrees, longitudeKeys)
	if !ok {
		return navigation.LatLng{}, false
	}
	p := navigation.LatLng{Lat: lat, Lng: lng}
	return p, p.Valid()
}

// CourseLine projects the course over ground from origin. A non-positive
// horizon means the configured one.
func (m *DashboardMapper) CourseLine(raw vessel.RawState, origin navigation.LatLng, horizon time.Duration) (navigation.Segment, bool) {
	cog, ok := m.value(raw, units.DegreeTrue, cogKeys)
	if !ok {
		return navigation.Segment{}, false
	}
	sog, ok := m.value(raw, units.MeterPerSecond, sogKeys)
	if !ok {
		return navigation.Segment{}, false
	}
	seg, ok := m.projector.Project(origin, cog, sog, horizon)
	if !ok || seg.Distance < m.cfg.MinCOGLength {
		return navigation.Segment{}, false
	}
	return seg, true
}

// Wind returns the true wind. When only apparent wind is reported it is
// derived from the apparent wind, the heading and the boat speed.
func (m *DashboardMapper) Wind(raw vessel.RawState) (Wind, bool) {
	tws, okS := m.value(raw, units.Knot, twsKeys)
	twd, okD := m.value(raw, units.DegreeTrue, twdKeys)
	if okS && okD {
		return Wind{SpeedKnots: tws, DirectionDeg: normalizeDeg(twd), Barb: ComposeBarb(tws)}, true
	}

	aws, ok := m.value(raw, units.Knot, awsKeys)
	if !ok {
		return Wind{}, false
	}
	awa, ok := m.value(raw, units.DegreeAngle, awaKeys)
	if !ok {
		return Wind{}, false
	}
	hdg, ok := m.value(raw, units.DegreeTrue, headingKeys)
	if !ok {
		return Wind{}, false
	}
	bs, ok := m.BoatSpeed(raw)
	if !ok {
		return Wind{}, false
	}

	speed, angle := TrueWind(aws, awa, bs)
	return Wind{
		SpeedKnots:   speed,
		DirectionDeg: normalizeDeg(hdg + angle),
		Derived:      true,
		Barb:         ComposeBarb(speed),
	}, true
}

// BoatSpeed returns speed over ground in knots, falling back to speed through
// water.
func (m *DashboardMapper) BoatSpeed(raw vessel.RawState) (float64, bool) {
	if sog, ok := m.value(raw, units.Knot, sogKeys); ok {
		return sog, true
	}
	return m.value(raw, units.Knot, stwKeys)
}

// TrueWind removes the boat's own motion from the apparent wind. Angles are
// degrees relative to the bow; the returned angle is in (-180, 180].
func TrueWind(aws, awa, boatSpeed float64) (tws, twa float64) {
	awaRad := awa * math.Pi / 180.0

	// Apparent wind components, y along the bow.
	awx := aws * math.Sin(awaRad)
	awy := aws * math.Cos(awaRad)

	// True wind = apparent wind - headwind from boat motion
	twx := awx
	twy := awy - boatSpeed

	tws = math.Hypot(twx, twy)
	if tws == 0 {
		return 0, 0
	}
	twa = math.Atan2(twx, twy) * 180.0 / math.Pi
	return tws, twa
}

// value returns the first of keys present in raw, converted to target.
func (m *DashboardMapper) value(raw vessel.RawState, target units.Unit, keys []string) (float64, bool) {
	for _, key := range keys {
		rec, ok := raw.Get(key)
		if !ok || !rec.Resolved() {
			continue
		}
		v, err := m.catalog.Convert(rec.Value, rec.Unit, target)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return v, true
	}
	return 0, false
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
