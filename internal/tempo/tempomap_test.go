package tempo

import (
	"math"
	"testing"

	"github.com/fretline/fretline/internal/model"
)

func TestDefaultSegment(t *testing.T) {
	m := New(nil, 480)
	// 120 BPM at 480 tpq: one quarter note = 0.5s.
	if got := m.TickToSeconds(480); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("TickToSeconds(480) = %v, want 0.5", got)
	}
	if got := m.SecondsToTick(0.5); math.Abs(got-480) > 1e-6 {
		t.Fatalf("SecondsToTick(0.5) = %v, want 480", got)
	}
}

func TestTempoChangeMidway(t *testing.T) {
	changes := []model.TempoChange{
		{Tick: 0, MicrosPerQuarter: 500000},  // 120 BPM
		{Tick: 960, MicrosPerQuarter: 250000}, // 240 BPM
	}
	m := New(changes, 480)
	// First 960 ticks take 1s, the next 960 take 0.5s.
	if got := m.TickToSeconds(960); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("TickToSeconds(960) = %v, want 1.0", got)
	}
	if got := m.TickToSeconds(1920); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("TickToSeconds(1920) = %v, want 1.5", got)
	}
	if got := m.SecondsToTick(1.25); math.Abs(got-1440) > 1e-6 {
		t.Fatalf("SecondsToTick(1.25) = %v, want 1440", got)
	}
}

func TestRoundTrip(t *testing.T) {
	changes := []model.TempoChange{
		{Tick: 0, MicrosPerQuarter: 600000},
		{Tick: 480, MicrosPerQuarter: 400000},
		{Tick: 1920, MicrosPerQuarter: 750000},
		{Tick: 4000, MicrosPerQuarter: 300000},
	}
	m := New(changes, 960)
	for tick := float64(0); tick < 10000; tick += 37.5 {
		got := m.SecondsToTick(m.TickToSeconds(tick))
		if math.Abs(got-tick) > 1e-6 {
			t.Fatalf("round trip of tick %v = %v", tick, got)
		}
	}
}

func TestUnsortedAndDuplicateChanges(t *testing.T) {
	changes := []model.TempoChange{
		{Tick: 960, MicrosPerQuarter: 250000},
		{Tick: 0, MicrosPerQuarter: 1000000},
		{Tick: 0, MicrosPerQuarter: 500000}, // last one at tick 0 wins
	}
	m := New(changes, 480)
	if got := m.TickToSeconds(480); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("TickToSeconds(480) = %v, want 0.5", got)
	}
	segs := m.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].StartTick != 0 || segs[1].StartTick != 960 {
		t.Fatalf("unexpected segment starts: %+v", segs)
	}
}

func TestNegativeQueriesClampToZero(t *testing.T) {
	m := New(nil, 480)
	if got := m.TickToSeconds(-100); got != 0 {
		t.Fatalf("TickToSeconds(-100) = %v, want 0", got)
	}
	if got := m.SecondsToTick(-1); got != 0 {
		t.Fatalf("SecondsToTick(-1) = %v, want 0", got)
	}
}
