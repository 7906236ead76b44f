package vessel

import (
	"sync"
	"sync/atomic"
	"time"

	"flyer-vessel-viz/units"
)

// Snapshot is one published pair of raw and formatted state. Both maps reflect
// the same sequence of batches.
type Snapshot struct {
	Seq       uint64         `json:"seq"`
	UpdatedAt time.Time      `json:"updated_at"`
	Raw       RawState       `json:"raw"`
	Formatted FormattedState `json:"formatted"`
}

// Aggregator owns the session state. Apply is the only writer; Snapshot may be
// called from any goroutine and never observes a partial merge.
type Aggregator struct {
	formatter *units.Formatter
	now       func() time.Time

	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	listeners []func(*Snapshot)
}

// NewAggregator returns an aggregator with an empty session.
func NewAggregator(f *units.Formatter) *Aggregator {
	a := &Aggregator{formatter: f, now: time.Now}
	a.current.Store(emptySnapshot())
	return a
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Raw: RawState{}, Formatted: FormattedState{}}
}

// Formatter returns the formatter used for the formatted view.
func (a *Aggregator) Formatter() *units.Formatter {
	return a.formatter
}

// OnUpdate registers fn to be called with every published snapshot. fn runs on
// the writer's goroutine and must not block.
func (a *Aggregator) OnUpdate(fn func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Snapshot returns the latest published snapshot.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.current.Load()
}

// Apply merges one batch into both views and publishes the result. An empty
// batch publishes nothing. The returned error reports records that could not
// be formatted; the snapshot is published regardless.
func (a *Aggregator) Apply(records []RawRecord) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.current.Load()
	if len(records) == 0 {
		return prev, nil
	}

	formatted, err := prev.Formatted.Merge(a.formatter, records)
	next := &Snapshot{
		Seq:       prev.Seq + 1,
		UpdatedAt: a.now(),
		Raw:       prev.Raw.Merge(records),
		Formatted: formatted,
	}
	a.current.Store(next)

	for _, fn := range a.listeners {
		fn(next)
	}
	return next, err
}

// Reset starts a new empty session.
func (a *Aggregator) Reset() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := emptySnapshot()
	next.Seq = a.current.Load().Seq + 1
	next.UpdatedAt = a.now()
	a.current.Store(next)

	for _, fn := range a.listeners {
		fn(next)
	}
	return next
}
