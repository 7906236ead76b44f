// Package units holds the quantity catalog and the value formatter that turn
// raw vessel telemetry into display strings.
package units

import (
	"errors"
	"fmt"
	"sort"
)

// Unit identifies the unit a value is expressed in.
type Unit string

// Group is the logical category of a physical quantity.
type Group string

const (
	Unresolved Unit = ""

	MeterPerSecond Unit = "meter_per_second"
	Knot           Unit = "knot"
	KmPerHour      Unit = "km_per_hour"
	MilePerHour    Unit = "mile_per_hour"
	Radian         Unit = "radian"
	DegreeAngle    Unit = "degree_angle"
	DegreeTrue     Unit = "degree_true"
	Meter          Unit = "meter"
	Foot           Unit = "foot"
	Kilometer      Unit = "kilometer"
	NauticalMile   Unit = "nautical_mile"
	DegreeK        Unit = "degree_K"
	DegreeC        Unit = "degree_C"
	DegreeF        Unit = "degree_F"
	Pascal         Unit = "pascal"
	Millibar       Unit = "millibar"
	UnixEpoch      Unit = "unix_epoch"

	// Coordinate "units" are really display modes for latitude and longitude.
	DecimalDegrees Unit = "dd.dd"
	DegreesMinutes Unit = "dd mm.mm"
)

const (
	GroupAngle       Group = "group_angle"
	GroupDepth       Group = "group_depth"
	GroupDirection   Group = "group_direction"
	GroupDistance    Group = "group_distance"
	GroupLatitude    Group = "group_latitude"
	GroupLongitude   Group = "group_longitude"
	GroupPressure    Group = "group_pressure"
	GroupSpeed       Group = "group_speed"
	GroupTemperature Group = "group_temperature"
	GroupTime        Group = "group_time"
)

var (
	ErrUnknownQuantity = errors.New("unknown quantity")
	ErrUnknownGroup    = errors.New("no preferred unit for group")
	ErrNoConversion    = errors.New("no conversion registered")
)

// Quantity is the catalog entry for one quantity key.
type Quantity struct {
	Key   string
	Unit  Unit
	Group Group
	Label string
}

// ConversionFunc converts a value between two units.
type ConversionFunc func(float64) float64

type conversionKey struct {
	from, to Unit
}

// Catalog is the read-only unit configuration shared by the extractor and the
// formatter. It must not be modified after NewCatalog returns.
type Catalog struct {
	quantities  map[string]Quantity
	preferred   map[Group]Unit
	suffixes    map[Unit]string
	precision   map[Unit]int
	conversions map[conversionKey]ConversionFunc
}

// Option customizes a catalog under construction.
type Option func(*Catalog)

// WithPreferredUnit overrides the display unit of a group.
func WithPreferredUnit(group Group, unit Unit) Option {
	return func(c *Catalog) {
		c.preferred[group] = unit
	}
}

// WithCoordinateFormat selects decimal degrees or degrees and decimal minutes
// for both latitude and longitude.
func WithCoordinateFormat(format Unit) Option {
	return func(c *Catalog) {
		c.preferred[GroupLatitude] = format
		c.preferred[GroupLongitude] = format
	}
}

// WithQuantity registers or replaces a quantity.
func WithQuantity(q Quantity) Option {
	return func(c *Catalog) {
		c.quantities[q.Key] = q
	}
}

// WithConversion registers a direct conversion between two units.
func WithConversion(from, to Unit, fn ConversionFunc) Option {
	return func(c *Catalog) {
		c.conversions[conversionKey{from, to}] = fn
	}
}

// NewCatalog builds the default catalog, applies opts and validates every
// registered quantity. A catalog that cannot display one of its own keys is a
// configuration error.
func NewCatalog(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		quantities:  make(map[string]Quantity, len(defaultQuantities)),
		preferred:   make(map[Group]Unit, len(defaultPreferred)),
		suffixes:    make(map[Unit]string, len(defaultSuffixes)),
		precision:   make(map[Unit]int, len(defaultPrecision)),
		conversions: make(map[conversionKey]ConversionFunc),
	}
	for _, q := range defaultQuantities {
		c.quantities[q.Key] = q
	}
	for g, u := range defaultPreferred {
		c.preferred[g] = u
	}
	for u, s := range defaultSuffixes {
		c.suffixes[u] = s
	}
	for u, p := range defaultPrecision {
		c.precision[u] = p
	}
	for from, targets := range defaultConversions {
		for to, fn := range targets {
			c.conversions[conversionKey{from, to}] = fn
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Validate(c.Keys()...); err != nil {
		return nil, fmt.Errorf("invalid unit catalog: %w", err)
	}
	return c, nil
}

// MustCatalog is NewCatalog for package-level test fixtures and defaults.
func MustCatalog(opts ...Option) *Catalog {
	c, err := NewCatalog(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the catalog entry for key, if any.
func (c *Catalog) Lookup(key string) (Quantity, bool) {
	q, ok := c.quantities[key]
	return q, ok
}

// UnitOf returns the unit raw values of key arrive in.
func (c *Catalog) UnitOf(key string) (Unit, error) {
	q, ok := c.quantities[key]
	if !ok {
		return Unresolved, fmt.Errorf("%w: %q", ErrUnknownQuantity, key)
	}
	return q.Unit, nil
}

// GroupOf returns the display group of key.
func (c *Catalog) GroupOf(key string) (Group, error) {
	q, ok := c.quantities[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownQuantity, key)
	}
	return q.Group, nil
}

// PreferredUnit returns the unit values of group are displayed in.
func (c *Catalog) PreferredUnit(group Group) (Unit, error) {
	u, ok := c.preferred[group]
	if !ok {
		return Unresolved, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return u, nil
}

// Label returns the human readable name of key.
func (c *Catalog) Label(key string) (string, error) {
	q, ok := c.quantities[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownQuantity, key)
	}
	return q.Label, nil
}

// Suffix returns the display suffix for unit, or "" if none is registered.
func (c *Catalog) Suffix(unit Unit) string {
	return c.suffixes[unit]
}

// Precision returns the number of decimals used for unit. Unknown units get -1,
// meaning shortest representation.
func (c *Catalog) Precision(unit Unit) int {
	if p, ok := c.precision[unit]; ok {
		return p
	}
	return -1
}

// Convert converts value from one unit to another. Only directly registered
// conversions are used; conversions are never chained.
func (c *Catalog) Convert(value float64, from, to Unit) (float64, error) {
	if from == to {
		return value, nil
	}
	fn, ok := c.conversions[conversionKey{from, to}]
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", ErrNoConversion, from, to)
	}
	return fn(value), nil
}

// CanConvert reports whether Convert(from, to) would succeed.
func (c *Catalog) CanConvert(from, to Unit) bool {
	if from == to {
		return true
	}
	_, ok := c.conversions[conversionKey{from, to}]
	return ok
}

// Keys returns all known quantity keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.quantities))
	for k := range c.quantities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every key is known and can be rendered in the preferred
// unit of its group. All problems are reported together.
func (c *Catalog) Validate(keys ...string) error {
	var errs []error
	for _, key := range keys {
		q, ok := c.quantities[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownQuantity, key))
			continue
		}
		target, ok := c.preferred[q.Group]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w: %q", key, ErrUnknownGroup, q.Group))
			continue
		}
		if isCoordinate(q.Group) {
			if q.Unit != DecimalDegrees {
				errs = append(errs, fmt.Errorf("%s: coordinates must arrive in %s, got %q", key, DecimalDegrees, q.Unit))
			}
			if target != DecimalDegrees && target != DegreesMinutes {
				errs = append(errs, fmt.Errorf("%s: unsupported coordinate format %q", key, target))
			}
			continue
		}
		if !c.CanConvert(q.Unit, target) {
			errs = append(errs, fmt.Errorf("%s: %w: %s -> %s", key, ErrNoConversion, q.Unit, target))
		}
	}
	return errors.Join(errs...)
}

func isCoordinate(g Group) bool {
	return g == GroupLatitude || g == GroupLongitude
}
