package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimeLayout is the layout used for every rendered timestamp.
const TimeLayout = "2006-01-02 15:04:05"

var ErrNotFinite = errors.New("value is not a finite number")

// Formatted is the display form of one observation.
type Formatted struct {
	Label      string
	Value      string
	LastUpdate string
}

// Formatter converts raw values to their group's preferred unit and renders
// them with a unit suffix.
type Formatter struct {
	catalog *Catalog
	loc     *time.Location
}

// NewFormatter returns a formatter rendering timestamps in loc. A nil loc means
// UTC.
func NewFormatter(catalog *Catalog, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{catalog: catalog, loc: loc}
}

// Catalog returns the catalog the formatter was built with.
func (f *Formatter) Catalog() *Catalog {
	return f.catalog
}

// Format renders the observation of key. unit is the unit value is expressed
// in; Unresolved means the catalog's source unit for key.
func (f *Formatter) Format(key string, value float64, unit Unit, observedAt time.Time) (Formatted, error) {
	q, ok := f.catalog.Lookup(key)
	if !ok {
		return Formatted{}, fmt.Errorf("%w: %q", ErrUnknownQuantity, key)
	}
	if unit == Unresolved {
		unit = q.Unit
	}

	var (
		val string
		err error
	)
	if isCoordinate(q.Group) {
		val, err = f.FormatLatLon(value, q.Group, unit)
	} else {
		val, err = f.FormatValue(value, q.Group, unit)
	}
	if err != nil {
		return Formatted{}, fmt.Errorf("format %s: %w", key, err)
	}

	return Formatted{
		Label:      q.Label,
		Value:      val,
		LastUpdate: f.FormatTime(observedAt),
	}, nil
}

// FormatValue converts value from unit into the preferred unit of group and
// renders it with the precision and suffix of that unit.
func (f *Formatter) FormatValue(value float64, group Group, unit Unit) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", ErrNotFinite
	}
	target, err := f.catalog.PreferredUnit(group)
	if err != nil {
		return "", err
	}
	converted, err := f.catalog.Convert(value, unit, target)
	if err != nil {
		return "", err
	}

	if target == UnixEpoch {
		return f.FormatTime(time.UnixMilli(int64(converted))), nil
	}

	fval := strconv.FormatFloat(converted, 'f', f.catalog.Precision(target), 64)
	return fval + f.catalog.Suffix(target), nil
}

// FormatLatLon renders a signed decimal-degree coordinate in the display mode
// configured for group, followed by its hemisphere letter.
func (f *Formatter) FormatLatLon(value float64, group Group, unit Unit) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", ErrNotFinite
	}
	if unit != DecimalDegrees {
		return "", fmt.Errorf("%w: %s -> %s", ErrNoConversion, unit, DecimalDegrees)
	}
	mode, err := f.catalog.PreferredUnit(group)
	if err != nil {
		return "", err
	}

	var fval string
	switch mode {
	case DecimalDegrees:
		fval = strconv.FormatFloat(math.Abs(value), 'f', 4, 64) + "°"
	case DegreesMinutes:
		abs := math.Abs(value)
		degrees := math.Floor(abs)
		minutes := math.Round((abs-degrees)*600) / 10
		if minutes >= 60 {
			degrees++
			minutes -= 60
		}
		fval = strconv.FormatFloat(degrees, 'f', 0, 64) + "° " +
			strconv.FormatFloat(minutes, 'f', 1, 64) + "'"
	default:
		return "", fmt.Errorf("unsupported coordinate format %q", mode)
	}

	return fval + hemisphere(value, group), nil
}

// FormatTime renders t in the formatter's time zone.
func (f *Formatter) FormatTime(t time.Time) string {
	return t.In(f.loc).Format(TimeLayout)
}

func hemisphere(value float64, group Group) string {
	if group == GroupLatitude {
		if value >= 0 {
			return "N"
		}
		return "S"
	}
	if value >= 0 {
		return "E"
	}
	return "W"
}
