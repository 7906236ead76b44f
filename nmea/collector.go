// Package nmea collects vessel telemetry from the MQTT broker (and optionally
// Kafka) and feeds it through extraction into the session state.
package nmea

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"flyer-vessel-viz/config"
	"flyer-vessel-viz/metrics"
	"flyer-vessel-viz/storage"
	"flyer-vessel-viz/vessel"
)

// BufferInterface is the update log the collector appends to.
type BufferInterface interface {
	Push(b storage.Batch)
	Size() int
	GetStats() storage.Stats
}

// CSVWriterInterface persists applied batches.
type CSVWriterInterface interface {
	WriteBatch(b storage.Batch) error
	Close() error
}

// Options carries the collector's optional collaborators.
type Options struct {
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Buffer    BufferInterface
	CSVWriter CSVWriterInterface
	// OnStatus receives every status line published on the broker.
	OnStatus func(string)
	// Keys are the quantities subscribed to in per-key mode.
	Keys []string
}

type Collector struct {
	config     config.Config
	logger     zerolog.Logger
	extractor  *vessel.Extractor
	aggregator *vessel.Aggregator
	buffer     BufferInterface
	csvWriter  CSVWriterInterface
	metrics    *metrics.Metrics
	onStatus   func(string)
	keys       []string

	client    mqtt.Client
	kafka     *KafkaSource
	connected atomic.Bool
	stats     *Statistics
	queue     chan Payload
}

func NewCollector(cfg config.Config, extractor *vessel.Extractor, aggregator *vessel.Aggregator, opts Options) *Collector {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	c := &Collector{
		config:     cfg,
		logger:     opts.Logger,
		extractor:  extractor,
		aggregator: aggregator,
		buffer:     opts.Buffer,
		csvWriter:  opts.CSVWriter,
		metrics:    opts.Metrics,
		onStatus:   opts.OnStatus,
		keys:       opts.Keys,
		stats:      NewStatistics(),
		queue:      make(chan Payload, size),
	}
	if len(cfg.KafkaBrokers) > 0 {
		c.kafka = NewKafkaSource(cfg, c.logger.With().Str("component", "kafka").Logger(), c.Submit)
	}
	return c
}

// Topics returns the feed subscriptions for the configured mode.
func Topics(cfg config.Config, keys []string) []string {
	base := cfg.MQTTPrefix + "/" + cfg.VesselID
	if cfg.SubscribeMode != config.SubscribePerKey {
		return []string{base + "/#"}
	}
	topics := make([]string, 0, len(keys))
	for _, key := range keys {
		topics = append(topics, base+"/"+key)
	}
	return topics
}

// keyFromTopic returns the quantity key a per-key topic carries: everything
// after the prefix and vessel segments.
func keyFromTopic(prefix, topic string) string {
	skip := strings.Count(prefix, "/") + 2
	parts := strings.SplitN(topic, "/", skip+1)
	if len(parts) <= skip {
		return ""
	}
	return parts[skip]
}

// Run connects the feeds and ingests payloads until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		c.logger.Warn().Err(err).Msg("mqtt feed unavailable, serving without live data")
	}
	defer c.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.ingestWorker(gctx)
		return nil
	})
	g.Go(func() error {
		c.statsReporter(gctx)
		return nil
	})
	if c.kafka != nil {
		g.Go(func() error {
			err := c.kafka.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Start connects to the MQTT broker. The client keeps retrying in the
// background when the first attempt does not complete in time.
func (c *Collector) Start() error {
	if c.config.MQTTBroker == "" {
		c.logger.Info().Msg("no mqtt broker configured")
		return nil
	}

	opts := mqtt.NewClientOptions()

	protocol := "tcp"
	if c.config.UseTLS {
		protocol = "tls"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", protocol, c.config.MQTTBroker, c.config.MQTTPort)
	opts.AddBroker(brokerURL)

	clientID := "flyer-" + uuid.NewString()
	opts.SetClientID(clientID)

	if c.config.MQTTUsername != "" {
		opts.SetUsername(c.config.MQTTUsername)
		opts.SetPassword(c.config.MQTTPassword)
	}
	if c.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: c.config.InsecureSkipTLS,
		})
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetCleanSession(true)

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = c.onConnectionLost
	opts.OnReconnecting = c.onReconnecting

	c.client = mqtt.NewClient(opts)

	c.logger.Info().Str("broker", brokerURL).Str("client_id", clientID).Msg("connecting")

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connect to %s: timed out, still retrying", brokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", brokerURL, err)
	}
	return nil
}

func (c *Collector) Stop() {
	if c.client != nil {
		c.client.Disconnect(1000)
	}
	if c.kafka != nil {
		if err := c.kafka.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close kafka reader")
		}
	}
	if c.csvWriter != nil {
		if err := c.csvWriter.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close record log")
		}
	}

	st := c.stats.GetSnapshot()
	c.logger.Info().
		Int64("payloads", st.PayloadsReceived).
		Int64("records", st.RecordsApplied).
		Float64("success_rate", st.SuccessRate).
		Msg("collector stopped")
}

func (c *Collector) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.metrics.SetConnected("mqtt", true)

	filters := make(map[string]byte)
	for _, topic := range Topics(c.config, c.keys) {
		filters[topic] = 0
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		c.logger.Warn().Int("topics", len(filters)).Msg("subscribe timeout")
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Error().Err(err).Msg("subscribe")
		return
	}

	if c.config.StatusTopic != "" {
		token = client.Subscribe(c.config.StatusTopic, 0, c.onStatusMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			c.logger.Error().Err(token.Error()).Str("topic", c.config.StatusTopic).Msg("subscribe")
		}
	}

	c.logger.Info().Strs("topics", Topics(c.config, c.keys)).Msg("subscribed")
}

func (c *Collector) onConnectionLost(client mqtt.Client, err error) {
	c.connected.Store(false)
	c.metrics.SetConnected("mqtt", false)
	c.logger.Warn().Err(err).Msg("connection lost, will auto-reconnect")
}

func (c *Collector) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info().Msg("reconnecting")
}

func (c *Collector) onStatusMessage(client mqtt.Client, msg mqtt.Message) {
	c.setStatus(string(msg.Payload()))
}

func (c *Collector) setStatus(s string) {
	c.logger.Info().Str("status", s).Msg("status line")
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

func (c *Collector) onMessage(client mqtt.Client, msg mqtt.Message) {
	if msg.Topic() == c.config.StatusTopic {
		c.setStatus(string(msg.Payload()))
		return
	}
	p := Payload{
		Source:     "mqtt",
		Topic:      msg.Topic(),
		Data:       msg.Payload(),
		ReceivedAt: time.Now(),
	}
	if c.config.SubscribeMode == config.SubscribePerKey {
		p.Key = keyFromTopic(c.config.MQTTPrefix, msg.Topic())
	}
	c.Submit(p)
}

// Submit queues p for ingestion. It never blocks: when the queue is full the
// payload is dropped and counted.
func (c *Collector) Submit(p Payload) bool {
	c.stats.RecordReceived(p.Topic)
	c.metrics.PayloadReceived(p.Source)

	select {
	case c.queue <- p:
		return true
	default:
		c.stats.RecordDropped()
		c.metrics.PayloadDropped()
		return false
	}
}

// ingestWorker is the only writer of the session state, so batches are
// applied in arrival order.
func (c *Collector) ingestWorker(ctx context.Context) {
	for {
		select {
		case p := <-c.queue:
			c.handlePayload(p)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) handlePayload(p Payload) {
	var (
		records []vessel.RawRecord
		err     error
	)
	if p.Key != "" {
		records, err = c.extractor.ExtractKeyed(p.Key, p.Data)
	} else {
		records, err = c.extractor.Extract(p.Data)
	}
	if err != nil {
		c.stats.RecordMalformed()
		c.metrics.PayloadMalformed()
		c.logger.Debug().Err(err).Str("topic", p.Topic).Msg("discarding payload")
		return
	}
	if len(records) == 0 {
		return
	}

	unknown := 0
	for _, r := range records {
		if !r.Resolved() {
			unknown++
		}
	}

	snap, err := c.aggregator.Apply(records)
	formatErrors := countErrors(err)
	if err != nil {
		c.logger.Warn().Err(err).Str("topic", p.Topic).Msg("format records")
	}

	c.stats.RecordApplied(len(records), unknown, formatErrors, p.ReceivedAt)
	c.metrics.RecordsApplied(len(records), unknown)
	c.metrics.FormatErrors(formatErrors)

	batch := storage.Batch{
		Seq:        snap.Seq,
		ReceivedAt: p.ReceivedAt,
		Source:     p.Topic,
		Records:    records,
	}
	if c.buffer != nil {
		c.buffer.Push(batch)
	}
	if c.csvWriter != nil {
		if err := c.csvWriter.WriteBatch(batch); err != nil {
			c.logger.Error().Err(err).Msg("write record log")
		}
	}
}

func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func (c *Collector) statsReporter(ctx context.Context) {
	interval := c.config.StatsInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := c.stats.GetSnapshot()
			ev := c.logger.Info().
				Int64("payloads", st.PayloadsReceived).
				Float64("per_sec", st.PayloadsPerSec).
				Float64("success_rate", st.SuccessRate).
				Int64("dropped", st.PayloadsDropped)
			if c.buffer != nil {
				ev = ev.Int("buffer", c.buffer.Size())
			}
			ev.Msg("stats")
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) Buffer() BufferInterface {
	return c.buffer
}

func (c *Collector) Stats() *Statistics {
	return c.stats
}

func (c *Collector) IsConnected() bool {
	return c.connected.Load() || (c.kafka != nil && c.kafka.Active())
}
