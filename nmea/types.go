package nmea

import (
	"sync"
	"time"
)

// Payload is one message received from a feed.
type Payload struct {
	Source     string // "mqtt" or "kafka"
	Topic      string
	Key        string // set when the topic names a single quantity
	Data       []byte
	ReceivedAt time.Time
}

// Statistics tracks collector throughput.
type Statistics struct {
	mu                sync.RWMutex
	PayloadsReceived  int64
	PayloadsDropped   int64
	PayloadsMalformed int64
	RecordsApplied    int64
	UnknownKeys       int64
	FormatErrors      int64
	TopicCounts       map[string]int64
	LastUpdate        time.Time
	StartTime         time.Time
}

func NewStatistics() *Statistics {
	return &Statistics{
		TopicCounts: make(map[string]int64),
		StartTime:   time.Now(),
	}
}

func (s *Statistics) RecordReceived(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PayloadsReceived++
	s.TopicCounts[topic]++
}

func (s *Statistics) RecordDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PayloadsDropped++
}

func (s *Statistics) RecordMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PayloadsMalformed++
}

// RecordApplied counts one merged batch.
func (s *Statistics) RecordApplied(records, unknown, formatErrors int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecordsApplied += int64(records)
	s.UnknownKeys += int64(unknown)
	s.FormatErrors += int64(formatErrors)
	s.LastUpdate = at
}

// StatsSnapshot is a point-in-time copy of Statistics.
type StatsSnapshot struct {
	PayloadsReceived  int64            `json:"payloads_received"`
	PayloadsDropped   int64            `json:"payloads_dropped"`
	PayloadsMalformed int64            `json:"payloads_malformed"`
	RecordsApplied    int64            `json:"records_applied"`
	UnknownKeys       int64            `json:"unknown_keys"`
	FormatErrors      int64            `json:"format_errors"`
	SuccessRate       float64          `json:"success_rate"`
	PayloadsPerSec    float64          `json:"payloads_per_sec"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
	TopicCounts       map[string]int64 `json:"topic_counts"`
	LastUpdate        time.Time        `json:"last_update"`
}

func (s *Statistics) GetSnapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		PayloadsReceived:  s.PayloadsReceived,
		PayloadsDropped:   s.PayloadsDropped,
		PayloadsMalformed: s.PayloadsMalformed,
		RecordsApplied:    s.RecordsApplied,
		UnknownKeys:       s.UnknownKeys,
		FormatErrors:      s.FormatErrors,
		TopicCounts:       make(map[string]int64, len(s.TopicCounts)),
		LastUpdate:        s.LastUpdate,
	}
	for k, v := range s.TopicCounts {
		snap.TopicCounts[k] = v
	}

	if s.PayloadsReceived > 0 {
		ok := s.PayloadsReceived - s.PayloadsDropped - s.PayloadsMalformed
		snap.SuccessRate = float64(ok) / float64(s.PayloadsReceived) * 100.0
	}
	uptime := time.Since(s.StartTime)
	snap.UptimeSeconds = uptime.Seconds()
	if uptime.Seconds() > 0 {
		snap.PayloadsPerSec = float64(s.PayloadsReceived) / uptime.Seconds()
	}
	return snap
}
