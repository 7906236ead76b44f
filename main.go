// Command flyer aggregates live vessel data from MQTT or Kafka feeds and
// serves it as a dashboard, a JSON API and a push stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"flyer-vessel-viz/config"
	"flyer-vessel-viz/integration"
	"flyer-vessel-viz/logging"
	"flyer-vessel-viz/metrics"
	"flyer-vessel-viz/nmea"
	"flyer-vessel-viz/storage"
	"flyer-vessel-viz/stream"
	"flyer-vessel-viz/units"
	"flyer-vessel-viz/vessel"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Flags default to the environment so either can be used.
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.MQTTBroker, "broker", cfg.MQTTBroker, "MQTT broker host (empty disables MQTT)")
	flag.IntVar(&cfg.MQTTPort, "port", cfg.MQTTPort, "MQTT broker port")
	flag.StringVar(&cfg.MQTTPrefix, "prefix", cfg.MQTTPrefix, "MQTT topic prefix")
	flag.StringVar(&cfg.VesselID, "vessel", cfg.VesselID, "vessel id topic segment (+ for any)")
	flag.StringVar(&cfg.SubscribeMode, "mode", cfg.SubscribeMode, "subscription mode: wildcard or per-key")
	flag.StringVar(&cfg.Profile, "profile", cfg.Profile, "payload profile: auto, flat, structured or sentence")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.LogPretty, "pretty", cfg.LogPretty, "human readable console logs")
	flag.StringVar(&cfg.RecordLogPath, "record-log", cfg.RecordLogPath, "append applied records to this CSV file")
	flag.DurationVar(&cfg.Horizon, "horizon", cfg.Horizon, "dead-reckoning horizon")
	kafkaBrokers := flag.String("kafka", strings.Join(cfg.KafkaBrokers, ","), "comma separated Kafka brokers (empty disables Kafka)")
	flag.Parse()

	cfg.KafkaBrokers = nil
	for _, b := range strings.Split(*kafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("flyer stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	if err := catalog.Validate(cfg.TableOrder...); err != nil {
		logger.Warn().Err(err).Msg("table order names keys outside the catalog")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	profile, err := vessel.ParseProfile(cfg.Profile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	formatter := units.NewFormatter(catalog, loc)
	agg := vessel.NewAggregator(formatter)
	extractor := vessel.NewExtractor(catalog, profile)
	buffer := storage.NewRingBuffer(cfg.BufferSize)

	opts := nmea.Options{
		Logger:  logging.Component(logger, "mqtt"),
		Metrics: m,
		Buffer:  buffer,
		Keys:    catalog.Keys(),
	}
	if cfg.RecordLogPath != "" {
		w, err := storage.NewCSVWriter(cfg.RecordLogPath)
		if err != nil {
			return err
		}
		opts.CSVWriter = w
		logger.Info().Str("path", cfg.RecordLogPath).Msg("record log enabled")
	}

	mapper := integration.NewDashboardMapper(catalog, integration.MapperConfig{
		Order:         cfg.TableOrder,
		DefaultStatus: cfg.DefaultStatus,
		MinCOGLength:  cfg.MinCOGLength,
		Horizon:       cfg.Horizon,
	})
	hub := stream.NewHub(logging.Component(logger, "stream"), m, func() stream.Message {
		return dashboardMessage(mapper.Map(agg.Snapshot()))
	})
	agg.OnUpdate(func(snap *vessel.Snapshot) {
		m.SetStateKeys(len(snap.Raw))
		hub.Broadcast(dashboardMessage(mapper.Map(snap)))
	})
	opts.OnStatus = func(status string) {
		mapper.SetStatus(status)
		hub.Broadcast(dashboardMessage(mapper.Map(agg.Snapshot())))
	}

	collector := nmea.NewCollector(cfg, extractor, agg, opts)

	srv := &Server{
		logger:     logger,
		catalog:    catalog,
		aggregator: agg,
		mapper:     mapper,
		buffer:     buffer,
		collector:  collector,
		hub:        hub,
		metrics:    m,
		horizon:    cfg.Horizon,
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("broker", cfg.MQTTBroker).
		Str("mode", cfg.SubscribeMode).
		Str("profile", string(profile)).
		Msg("flyer starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return collector.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Msg("flyer stopped")
	return err
}
