// Package storage keeps recently applied update batches in memory and exports
// them as CSV.
package storage

import (
	"sync"
	"time"

	"flyer-vessel-viz/vessel"
)

// Batch is one payload's worth of records as applied to the session state.
type Batch struct {
	Seq        uint64             `json:"seq"`
	ReceivedAt time.Time          `json:"received_at"`
	Source     string             `json:"source"`
	Records    []vessel.RawRecord `json:"records"`
}

// RingBuffer holds the most recent batches, overwriting the oldest once full.
type RingBuffer struct {
	data     []Batch
	head     int
	size     int
	capacity int
	mu       sync.RWMutex

	latestBySource map[string]Batch
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		data:           make([]Batch, capacity),
		capacity:       capacity,
		latestBySource: make(map[string]Batch),
	}
}

func (rb *RingBuffer) Push(b Batch) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.head] = b
	rb.head = (rb.head + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
	rb.latestBySource[b.Source] = b
}

// GetRecent returns up to n batches, newest first.
func (rb *RingBuffer) GetRecent(n int) []Batch {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.size || n < 0 {
		n = rb.size
	}

	result := make([]Batch, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.capacity) % rb.capacity
		result[i] = rb.data[idx]
	}
	return result
}

// GetByTimeRange returns the batches received within [start, end], oldest
// first.
func (rb *RingBuffer) GetByTimeRange(start, end time.Time) []Batch {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]Batch, 0)
	oldest := (rb.head - rb.size + rb.capacity) % rb.capacity
	for i := 0; i < rb.size; i++ {
		b := rb.data[(oldest+i)%rb.capacity]
		if !b.ReceivedAt.Before(start) && !b.ReceivedAt.After(end) {
			result = append(result, b)
		}
	}
	return result
}

// GetLatestBySource returns the last batch received from source.
func (rb *RingBuffer) GetLatestBySource(source string) (Batch, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	b, ok := rb.latestBySource[source]
	return b, ok
}

// Reset drops every stored batch.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data = make([]Batch, rb.capacity)
	rb.head = 0
	rb.size = 0
	rb.latestBySource = make(map[string]Batch)
}

func (rb *RingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// Stats describes the buffer's fill level and the time span it covers.
type Stats struct {
	Size            int       `json:"size"`
	Capacity        int       `json:"capacity"`
	Utilization     float64   `json:"utilization"`
	Oldest          time.Time `json:"oldest_timestamp"`
	Newest          time.Time `json:"newest_timestamp"`
	TimeSpanSeconds float64   `json:"time_span_seconds"`
	Sources         int       `json:"sources"`
}

func (rb *RingBuffer) GetStats() Stats {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	st := Stats{
		Size:        rb.size,
		Capacity:    rb.capacity,
		Utilization: float64(rb.size) / float64(rb.capacity) * 100.0,
		Sources:     len(rb.latestBySource),
	}
	if rb.size > 0 {
		st.Oldest = rb.data[(rb.head-rb.size+rb.capacity)%rb.capacity].ReceivedAt
		st.Newest = rb.data[(rb.head-1+rb.capacity)%rb.capacity].ReceivedAt
		st.TimeSpanSeconds = st.Newest.Sub(st.Oldest).Seconds()
	}
	return st
}
