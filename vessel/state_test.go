package vessel

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"flyer-vessel-viz/units"
)

var t0 = time.Date(2025, 4, 3, 22, 0, 0, 0, time.UTC)

func rec(key string, v float64, u units.Unit, sec int) RawRecord {
	return RawRecord{Key: key, Value: v, Unit: u, ObservedAt: t0.Add(time.Duration(sec) * time.Second)}
}

func testFormatter() *units.Formatter {
	return units.NewFormatter(units.MustCatalog(), time.UTC)
}

func TestRawMergeLastWriteWinsWithinBatch(t *testing.T) {
	// The later record is older by timestamp and still wins.
	batch := []RawRecord{
		rec("navigation.headingTrue", 1.0, units.Radian, 10),
		rec("navigation.headingTrue", 2.0, units.Radian, 5),
	}
	st := RawState{}.Merge(batch)
	if got := st["navigation.headingTrue"]; got != batch[1] {
		t.Fatalf("got %+v, want %+v", got, batch[1])
	}
}

func TestRawMergeIsNonDestructive(t *testing.T) {
	s0 := RawState{}.Merge([]RawRecord{
		rec("depth_meters", 4.0, units.Meter, 0),
		rec("sog_knots", 5.0, units.Knot, 0),
	})
	before := RawState{}
	for k, v := range s0 {
		before[k] = v
	}

	s1 := s0.Merge([]RawRecord{rec("depth_meters", 3.5, units.Meter, 1)})

	if !reflect.DeepEqual(s0, before) {
		t.Fatalf("original state changed: %+v", s0)
	}
	if s1["depth_meters"].Value != 3.5 {
		t.Errorf("new depth = %v", s1["depth_meters"].Value)
	}
	if s1["sog_knots"] != s0["sog_knots"] {
		t.Error("unaffected key not preserved")
	}
}

func TestMergeIdempotent(t *testing.T) {
	f := testFormatter()
	batch := []RawRecord{
		rec("navigation.speedOverGround", 5.0, units.MeterPerSecond, 0),
		rec("environment.water.temperature", 290.0, units.DegreeK, 0),
	}
	once := RawState{}.Merge(batch)
	twice := once.Merge(batch)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("raw merge not idempotent")
	}

	fOnce, err := FormattedState{}.Merge(f, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	fTwice, err := fOnce.Merge(f, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !reflect.DeepEqual(fOnce, fTwice) {
		t.Fatal("formatted merge not idempotent")
	}
}

func TestFormattedMergeSkipsUnknownKeys(t *testing.T) {
	f := testFormatter()
	batch := []RawRecord{
		{Key: "propulsion.main.revolutions", Value: 28, ObservedAt: t0},
		rec("navigation.speedOverGround", 5.0, units.MeterPerSecond, 0),
	}
	fs, err := FormattedState{}.Merge(f, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok := fs["propulsion.main.revolutions"]; ok {
		t.Error("unknown key formatted")
	}
	if fs["navigation.speedOverGround"].Value != "9.7 kn" {
		t.Errorf("sog = %+v", fs["navigation.speedOverGround"])
	}

	rows := fs.Ordered([]string{"propulsion.main.revolutions", "navigation.speedOverGround", "navigation.headingTrue"})
	if len(rows) != 1 || rows[0].Label != "Speed over ground" {
		t.Errorf("ordered rows = %+v", rows)
	}
}

func TestFormattedMergeDropsStaleOnError(t *testing.T) {
	f := testFormatter()
	fs, _ := FormattedState{}.Merge(f, []RawRecord{rec("depth_meters", 4.0, units.Meter, 0)})
	fs2, err := fs.Merge(f, []RawRecord{rec("depth_meters", 4.0, units.Pascal, 1)})
	if !errors.Is(err, units.ErrNoConversion) {
		t.Fatalf("expected ErrNoConversion, got %v", err)
	}
	if _, ok := fs2["depth_meters"]; ok {
		t.Error("stale formatted value kept")
	}
	if _, ok := fs["depth_meters"]; !ok {
		t.Error("previous formatted state modified")
	}
}

func TestAggregatorKeepsViewsInStep(t *testing.T) {
	f := testFormatter()
	a := NewAggregator(f)

	batches := [][]RawRecord{
		{rec("navigation.speedOverGround", 2.0, units.MeterPerSecond, 0), rec("navigation.headingTrue", 0.5, units.Radian, 0)},
		{rec("navigation.speedOverGround", 5.0, units.MeterPerSecond, 1)},
		{rec("environment.depth.belowKeel", 3.0, units.Meter, 2), {Key: "unknown.path", Value: 1, ObservedAt: t0}},
	}
	for _, b := range batches {
		if _, err := a.Apply(b); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	snap := a.Snapshot()
	if snap.Seq != 3 {
		t.Errorf("Seq = %d", snap.Seq)
	}
	if _, ok := snap.Raw["unknown.path"]; !ok {
		t.Error("unknown key not stored in raw state")
	}
	for key, raw := range snap.Raw {
		if !raw.Resolved() {
			continue
		}
		want, err := Format(f, raw)
		if err != nil {
			t.Fatalf("Format %s: %v", key, err)
		}
		if snap.Formatted[key] != want {
			t.Errorf("%s: formatted %+v, want %+v", key, snap.Formatted[key], want)
		}
	}
	if len(snap.Formatted) != len(snap.Raw)-1 {
		t.Errorf("formatted has %d keys, raw %d", len(snap.Formatted), len(snap.Raw))
	}
}

func TestAggregatorEmptyBatchPublishesNothing(t *testing.T) {
	a := NewAggregator(testFormatter())
	calls := 0
	a.OnUpdate(func(*Snapshot) { calls++ })
	snap, err := a.Apply(nil)
	if err != nil || snap.Seq != 0 || calls != 0 {
		t.Fatalf("snap=%+v err=%v calls=%d", snap, err, calls)
	}
}

func TestAggregatorSnapshotsAreImmutable(t *testing.T) {
	a := NewAggregator(testFormatter())
	a.Apply([]RawRecord{rec("sog_knots", 5.0, units.Knot, 0)})
	held := a.Snapshot()
	a.Apply([]RawRecord{rec("sog_knots", 6.0, units.Knot, 1)})

	if held.Raw["sog_knots"].Value != 5.0 {
		t.Fatal("held snapshot mutated")
	}
	if a.Snapshot().Raw["sog_knots"].Value != 6.0 {
		t.Fatal("new snapshot not published")
	}
}

func TestAggregatorListenersAndReset(t *testing.T) {
	a := NewAggregator(testFormatter())
	var seen []uint64
	a.OnUpdate(func(s *Snapshot) { seen = append(seen, s.Seq) })

	a.Apply([]RawRecord{rec("sog_knots", 5.0, units.Knot, 0)})
	snap := a.Reset()
	if len(snap.Raw) != 0 || len(snap.Formatted) != 0 {
		t.Fatal("reset left state behind")
	}
	if !reflect.DeepEqual(seen, []uint64{1, 2}) {
		t.Fatalf("listener saw %v", seen)
	}
}

func TestAggregatorConcurrentReaders(t *testing.T) {
	a := NewAggregator(testFormatter())
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := a.Snapshot()
				if raw, ok := s.Raw["sog_knots"]; ok {
					if s.Formatted["sog_knots"].LastUpdate != testFormatter().FormatTime(raw.ObservedAt) {
						t.Error("views disagree within one snapshot")
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		a.Apply([]RawRecord{rec("sog_knots", float64(i), units.Knot, i)})
	}
	close(stop)
	wg.Wait()
}
