package vessel

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"flyer-vessel-viz/units"
)

// extractSentences maps NMEA 0183 sentences onto the flat-profile keys. Lines
// that fail to parse or that carry no data we display are skipped; a payload
// without a single usable sentence is malformed.
func (e *Extractor) extractSentences(payload []byte) ([]RawRecord, error) {
	at := e.now().UTC()

	var (
		out    []RawRecord
		parsed int
	)
	sc := bufio.NewScanner(bytes.NewReader(payload))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		parsed++
		out = e.appendSentence(out, s, at)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed == 0 {
		return nil, fmt.Errorf("%w: no parseable sentence", ErrMalformed)
	}
	return out, nil
}

func (e *Extractor) appendSentence(out []RawRecord, s nmea.Sentence, at time.Time) []RawRecord {
	switch m := s.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return out
		}
		out = append(out,
			e.record("latitude", m.Latitude, at),
			e.record("longitude", m.Longitude, at),
		)
		if present(m.Fields, 6) {
			out = append(out, e.record("sog_knots", m.Speed, at))
		}
		if present(m.Fields, 7) {
			out = append(out, e.record("cog_true", m.Course, at))
		}
	case nmea.GLL:
		if m.Validity != nmea.ValidGLL {
			return out
		}
		out = append(out,
			e.record("latitude", m.Latitude, at),
			e.record("longitude", m.Longitude, at),
		)
	case nmea.VTG:
		if present(m.Fields, 0) {
			out = append(out, e.record("cog_true", m.TrueTrack, at))
		}
		if present(m.Fields, 4) {
			out = append(out, e.record("sog_knots", m.GroundSpeedKnots, at))
		}
	case nmea.HDT:
		out = append(out, e.record("hdg_true", m.Heading, at))
	case nmea.DBT:
		out = append(out, e.record("depth_meters", m.DepthMeters, at))
	case nmea.DPT:
		out = append(out, e.record("depth_meters", m.Depth, at))
	case nmea.MTW:
		if !m.CelsiusValid {
			return out
		}
		out = append(out, e.record("temperature_water_celsius", m.Temperature, at))
	case nmea.MWV:
		if !m.StatusValid {
			return out
		}
		speed, ok := e.windSpeedKnots(m.WindSpeed, m.WindSpeedUnit)
		switch m.Reference {
		case "R":
			angle := m.WindAngle
			if angle > 180 {
				angle -= 360
			}
			out = append(out, e.record("awa", angle, at))
			if ok {
				out = append(out, e.record("aws_knots", speed, at))
			}
		case "T":
			if ok {
				out = append(out, e.record("tws_knots", speed, at))
			}
		}
	}
	return out
}

// present reports whether field i of a sentence was sent. Receivers leave
// course and speed blank when they have no fix or are stationary.
func present(fields []string, i int) bool {
	return i < len(fields) && strings.TrimSpace(fields[i]) != ""
}

func (e *Extractor) windSpeedKnots(v float64, unit string) (float64, bool) {
	var from units.Unit
	switch unit {
	case "N":
		return v, true
	case "M":
		from = units.MeterPerSecond
	case "K":
		from = units.KmPerHour
	default:
		return 0, false
	}
	kn, err := e.catalog.Convert(v, from, units.Knot)
	if err != nil {
		return 0, false
	}
	return kn, true
}
