package nmea

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"flyer-vessel-viz/config"
)

// KafkaSource reads feed payloads from a Kafka topic and submits them to the
// collector queue.
type KafkaSource struct {
	reader *kafka.Reader
	logger zerolog.Logger
	submit func(Payload) bool
	active atomic.Bool
}

func NewKafkaSource(cfg config.Config, logger zerolog.Logger, submit func(Payload) bool) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroup,
		Topic:       cfg.KafkaTopic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     200 * time.Millisecond,
	})
	return &KafkaSource{reader: reader, logger: logger, submit: submit}
}

// Run blocks until ctx is cancelled or the reader is closed.
func (k *KafkaSource) Run(ctx context.Context) error {
	cfg := k.reader.Config()
	k.logger.Info().
		Str("brokers", strings.Join(cfg.Brokers, ",")).
		Str("topic", cfg.Topic).
		Str("group", cfg.GroupID).
		Msg("kafka feed started")
	defer k.logger.Info().Msg("kafka feed stopped")

	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			k.active.Store(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", cfg.Topic, err)
		}
		k.active.Store(true)
		k.submit(Payload{
			Source:     "kafka",
			Topic:      msg.Topic,
			Data:       msg.Value,
			ReceivedAt: time.Now(),
		})
	}
}

// Active reports whether the last read succeeded.
func (k *KafkaSource) Active() bool {
	return k.active.Load()
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}
