// Package tempo converts between score ticks and wall-clock seconds.
package tempo

import (
	"sort"

	"github.com/fretline/fretline/internal/model"
)

// DefaultMicrosPerQuarter is the fallback tempo (120 BPM) used when the
// source carries no tempo events.
const DefaultMicrosPerQuarter = 500000

// DefaultTicksPerQuarter matches the most common SMF resolution.
const DefaultTicksPerQuarter = 480

// Segment is one span of constant tempo. Segments are sorted by StartTick,
// the first starts at tick 0, and there are no gaps or overlaps.
type Segment struct {
	StartTick    int64
	StartSeconds float64
	MicrosPerQuarter int
}

// Map converts ticks to seconds and back under piecewise constant tempo.
type Map struct {
	ticksPerQuarter int
	segments        []Segment
}

// New builds a Map from raw tempo changes. Changes are sorted by tick;
// duplicates at the same tick keep the last one. An empty change list yields
// a single default 120 BPM segment. A non-positive ticksPerQuarter falls
// back to DefaultTicksPerQuarter.
func New(changes []model.TempoChange, ticksPerQuarter int) *Map {
	if ticksPerQuarter <= 0 {
		ticksPerQuarter = DefaultTicksPerQuarter
	}
	sorted := make([]model.TempoChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	segs := []Segment{{StartTick: 0, StartSeconds: 0, MicrosPerQuarter: DefaultMicrosPerQuarter}}
	for _, ch := range sorted {
		if ch.MicrosPerQuarter <= 0 {
			continue
		}
		last := &segs[len(segs)-1]
		if ch.Tick <= last.StartTick {
			// A change at (or before) the current segment start replaces it.
			last.MicrosPerQuarter = ch.MicrosPerQuarter
			continue
		}
		start := last.StartSeconds + float64(ch.Tick-last.StartTick)*secondsPerTick(last.MicrosPerQuarter, ticksPerQuarter)
		segs = append(segs, Segment{StartTick: ch.Tick, StartSeconds: start, MicrosPerQuarter: ch.MicrosPerQuarter})
	}
	return &Map{ticksPerQuarter: ticksPerQuarter, segments: segs}
}

func secondsPerTick(microsPerQuarter, ticksPerQuarter int) float64 {
	return float64(microsPerQuarter) / 1e6 / float64(ticksPerQuarter)
}

// TicksPerQuarter returns the resolution the map was built with.
func (m *Map) TicksPerQuarter() int {
	return m.ticksPerQuarter
}

// Segments returns the segment table.
func (m *Map) Segments() []Segment {
	return m.segments
}

// TickToSeconds converts a tick position to seconds. Total over tick >= 0.
func (m *Map) TickToSeconds(tick float64) float64 {
	if tick <= 0 {
		return 0
	}
	i := sort.Search(len(m.segments), func(i int) bool {
		return float64(m.segments[i].StartTick) > tick
	}) - 1
	seg := m.segments[i]
	return seg.StartSeconds + (tick-float64(seg.StartTick))*secondsPerTick(seg.MicrosPerQuarter, m.ticksPerQuarter)
}

// SecondsToTick converts a time in seconds to a (fractional) tick position.
// Inverse of TickToSeconds up to floating-point epsilon.
func (m *Map) SecondsToTick(seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].StartSeconds > seconds
	}) - 1
	seg := m.segments[i]
	return float64(seg.StartTick) + (seconds-seg.StartSeconds)/secondsPerTick(seg.MicrosPerQuarter, m.ticksPerQuarter)
}
