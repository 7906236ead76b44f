// Package config holds the runtime settings of the flyer server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flyer-vessel-viz/units"
	"flyer-vessel-viz/vessel"
)

// Subscription modes for the MQTT feed.
const (
	SubscribeWildcard = "wildcard"
	SubscribePerKey   = "per-key"
)

const envPrefix = "FLYER_"

// Config holds server, feed and display configuration.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	MQTTBroker      string
	MQTTPort        int
	MQTTUsername    string
	MQTTPassword    string
	UseTLS          bool
	InsecureSkipTLS bool
	MQTTPrefix      string
	VesselID        string // "+" listens to every vessel
	SubscribeMode   string
	StatusTopic     string

	KafkaBrokers []string // empty disables the Kafka feed
	KafkaTopic   string
	KafkaGroup   string

	Profile          string
	CoordinateFormat string
	UnitOverrides    map[units.Group]units.Unit
	TimeZone         string

	Horizon       time.Duration
	MinCOGLength  float64 // meters
	TableOrder    []string
	DefaultStatus string

	QueueSize     int
	BufferSize    int
	RecordLogPath string // empty disables the CSV record log
	StatsInterval time.Duration
}

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		LogLevel:         "info",
		MQTTBroker:       "localhost",
		MQTTPort:         1883,
		MQTTPrefix:       "nmea",
		VesselID:         "+",
		SubscribeMode:    SubscribeWildcard,
		StatusTopic:      "status",
		KafkaTopic:       "nmea",
		KafkaGroup:       "flyer",
		Profile:          string(vessel.ProfileAuto),
		CoordinateFormat: string(units.DegreesMinutes),
		UnitOverrides:    map[units.Group]units.Unit{},
		TimeZone:         "UTC",
		Horizon:          600 * time.Second,
		MinCOGLength:     5,
		TableOrder: []string{
			"latitude",
			"longitude",
			"sog_knots",
			"cog_true",
			"hdg_true",
			"depth_meters",
			"tws_knots",
			"twd_true",
			"aws_knots",
			"awa",
			"temperature_water_celsius",
			"temperature_air_celsius",
			"rudder_angle",
		},
		DefaultStatus: "If no position appears after a few seconds, it is because power is off on the boat.",
		QueueSize:     1000,
		BufferSize:    1000,
		StatsInterval: 30 * time.Second,
	}
}

// FromEnv returns Default overridden by FLYER_* environment variables.
// Malformed values are reported together; the remaining settings still apply.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	e := env{lookup: lookup}

	e.str("HTTP_ADDR", &cfg.HTTPAddr)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.boolean("LOG_PRETTY", &cfg.LogPretty)

	e.str("MQTT_BROKER", &cfg.MQTTBroker)
	e.integer("MQTT_PORT", &cfg.MQTTPort)
	e.str("MQTT_USERNAME", &cfg.MQTTUsername)
	e.str("MQTT_PASSWORD", &cfg.MQTTPassword)
	e.boolean("MQTT_TLS", &cfg.UseTLS)
	e.boolean("MQTT_TLS_INSECURE", &cfg.InsecureSkipTLS)
	e.str("MQTT_PREFIX", &cfg.MQTTPrefix)
	e.str("VESSEL_ID", &cfg.VesselID)
	e.str("SUBSCRIBE_MODE", &cfg.SubscribeMode)
	e.str("STATUS_TOPIC", &cfg.StatusTopic)

	e.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	e.str("KAFKA_TOPIC", &cfg.KafkaTopic)
	e.str("KAFKA_GROUP", &cfg.KafkaGroup)

	e.str("PROFILE", &cfg.Profile)
	e.str("COORDINATE_FORMAT", &cfg.CoordinateFormat)
	if v, ok := e.get("UNITS"); ok {
		overrides, err := ParseUnitOverrides(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%sUNITS: %w", envPrefix, err))
		} else {
			cfg.UnitOverrides = overrides
		}
	}
	e.str("TIME_ZONE", &cfg.TimeZone)

	e.duration("HORIZON", &cfg.Horizon)
	e.float("MIN_COG_LENGTH", &cfg.MinCOGLength)
	e.list("TABLE_ORDER", &cfg.TableOrder)
	e.str("DEFAULT_STATUS", &cfg.DefaultStatus)

	e.integer("QUEUE_SIZE", &cfg.QueueSize)
	e.integer("BUFFER_SIZE", &cfg.BufferSize)
	e.str("RECORD_LOG", &cfg.RecordLogPath)
	e.duration("STATS_INTERVAL", &cfg.StatsInterval)

	return cfg, errors.Join(e.errs...)
}

// Validate reports every setting that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		errs = append(errs, fmt.Errorf("mqtt port %d out of range", c.MQTTPort))
	}
	if c.SubscribeMode != SubscribeWildcard && c.SubscribeMode != SubscribePerKey {
		errs = append(errs, fmt.Errorf("unknown subscribe mode %q", c.SubscribeMode))
	}
	if _, err := vessel.ParseProfile(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	if c.Horizon <= 0 {
		errs = append(errs, fmt.Errorf("horizon must be positive, got %s", c.Horizon))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// Catalog builds the unit catalog with the configured display units.
func (c Config) Catalog() (*units.Catalog, error) {
	opts := []units.Option{units.WithCoordinateFormat(units.Unit(c.CoordinateFormat))}
	for g, u := range c.UnitOverrides {
		opts = append(opts, units.WithPreferredUnit(g, u))
	}
	return units.NewCatalog(opts...)
}

// Location returns the time zone timestamps are displayed in.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// ParseUnitOverrides parses "group=unit" pairs separated by commas, e.g.
// "group_speed=meter_per_second,group_depth=foot".
func ParseUnitOverrides(s string) (map[units.Group]units.Unit, error) {
	out := map[units.Group]units.Unit{}
	for _, pair := range splitAndTrim(s, ",") {
		g, u, ok := strings.Cut(pair, "=")
		g, u = strings.TrimSpace(g), strings.TrimSpace(u)
		if !ok || g == "" || u == "" {
			return nil, fmt.Errorf("bad unit override %q", pair)
		}
		out[units.Group(g)] = units.Unit(u)
	}
	return out, nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) get(name string) (string, bool) {
	v, ok := e.lookup(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *env) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *env) list(name string, dst *[]string) {
	if v, ok := e.get(name); ok {
		*dst = splitAndTrim(v, ",")
	}
}

func (e *env) integer(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (e *env) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = f
	}
}

func (e *env) boolean(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("90s") or plain seconds ("90").
func (e *env) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
			return
		}
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: invalid duration %q", envPrefix, name, v))
			return
		}
		*dst = time.Duration(secs * float64(time.Second))
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
