// Package voices keeps audible voices in sync with a movable play-head.
package voices

import (
	"sort"

	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

// Note is one schedulable voice. ID is unique within the note set.
type Note struct {
	ID        int
	StartTick int64
	EndTick   int64
	Pitch     int
	Velocity  float64
	Channel   int
}

// Output receives scheduling calls. Implementations must tolerate StopAll
// with no active voices. The when argument is the note boundary in seconds
// on the playback clock.
type Output interface {
	NoteOn(n Note, when float64)
	NoteOff(n Note, when float64)
	StopAll()
}

// FromSource converts decoded source events into schedulable notes.
func FromSource(events []model.SourceEvent) []Note {
	notes := make([]Note, 0, len(events))
	for _, ev := range events {
		if ev.TickOn >= ev.TickOff {
			continue
		}
		notes = append(notes, Note{
			ID:        len(notes),
			StartTick: ev.TickOn,
			EndTick:   ev.TickOff,
			Pitch:     ev.Pitch,
			Velocity:  ev.Velocity,
			Channel:   ev.Channel,
		})
	}
	return notes
}

// Scheduler tracks which voices should sound at the current play-head tick.
// Small play-head motions apply an incremental diff over the two sorted
// orders; large jumps and resumes rebuild from scratch.
type Scheduler struct {
	out   Output
	tm    *tempo.Map
	notes []Note

	startOrder []int // note indexes sorted by StartTick
	endOrder   []int // note indexes sorted by EndTick
	startTicks []int64
	endTicks   []int64

	active   map[int]Note
	prevTick float64
	hasPrev  bool

	scrubThreshold float64 // ticks; beyond it Update degenerates to a rebuild
}

// NewScheduler builds a Scheduler over the note set. The scrub threshold
// defaults to half a beat.
func NewScheduler(notes []Note, tm *tempo.Map, out Output) *Scheduler {
	s := &Scheduler{
		out:            out,
		tm:             tm,
		notes:          notes,
		active:         make(map[int]Note),
		scrubThreshold: float64(tm.TicksPerQuarter()) / 2,
	}
	s.startOrder = make([]int, len(notes))
	s.endOrder = make([]int, len(notes))
	for i := range notes {
		s.startOrder[i] = i
		s.endOrder[i] = i
	}
	sort.SliceStable(s.startOrder, func(a, b int) bool {
		return notes[s.startOrder[a]].StartTick < notes[s.startOrder[b]].StartTick
	})
	sort.SliceStable(s.endOrder, func(a, b int) bool {
		return notes[s.endOrder[a]].EndTick < notes[s.endOrder[b]].EndTick
	})
	s.startTicks = make([]int64, len(notes))
	s.endTicks = make([]int64, len(notes))
	for i, idx := range s.startOrder {
		s.startTicks[i] = notes[idx].StartTick
	}
	for i, idx := range s.endOrder {
		s.endTicks[i] = notes[idx].EndTick
	}
	return s
}

// SetScrubThreshold overrides the tick distance beyond which Update rebuilds.
func (s *Scheduler) SetScrubThreshold(ticks float64) {
	s.scrubThreshold = ticks
}

// ActiveCount returns the number of currently sounding voices.
func (s *Scheduler) ActiveCount() int {
	return len(s.active)
}

// IsActive reports whether the note with the given id currently sounds.
func (s *Scheduler) IsActive(id int) bool {
	_, ok := s.active[id]
	return ok
}

// Resume rebuilds the voice set for an arbitrary play-head tick.
func (s *Scheduler) Resume(tick float64) {
	s.rebuild(tick)
}

// Pause stops every active voice and remembers the tick for the next Resume.
func (s *Scheduler) Pause(tick float64) {
	s.stopAll()
	s.prevTick = tick
	s.hasPrev = false
}

// Update moves the play-head. The first call after construction or Pause
// rebuilds; small motions in either direction diff against the previous tick.
func (s *Scheduler) Update(tick float64) {
	if !s.hasPrev {
		s.rebuild(tick)
		return
	}
	delta := tick - s.prevTick
	if delta > s.scrubThreshold || -delta > s.scrubThreshold {
		s.rebuild(tick)
		return
	}
	if delta >= 0 {
		s.diffForward(s.prevTick, tick)
	} else {
		s.diffBackward(tick, s.prevTick)
	}
	s.prevTick = tick
}

func (s *Scheduler) rebuild(tick float64) {
	s.stopAll()
	for i := 0; i < upperBound(s.startTicks, tick); i++ {
		n := s.notes[s.startOrder[i]]
		if float64(n.EndTick) > tick {
			s.start(n)
		}
	}
	s.prevTick = tick
	s.hasPrev = true
}

// diffForward starts notes whose start falls within (prev, tick] and stops
// notes whose end falls within the same interval.
func (s *Scheduler) diffForward(prev, tick float64) {
	for i := upperBound(s.startTicks, prev); i < upperBound(s.startTicks, tick); i++ {
		s.start(s.notes[s.startOrder[i]])
	}
	for i := upperBound(s.endTicks, prev); i < upperBound(s.endTicks, tick); i++ {
		s.stop(s.notes[s.endOrder[i]])
	}
}

// diffBackward stops notes whose start is now in the future and re-activates
// notes whose end moved back inside the active window.
func (s *Scheduler) diffBackward(tick, prev float64) {
	for i := upperBound(s.startTicks, tick); i < upperBound(s.startTicks, prev); i++ {
		s.stop(s.notes[s.startOrder[i]])
	}
	for i := upperBound(s.endTicks, tick); i < upperBound(s.endTicks, prev); i++ {
		n := s.notes[s.endOrder[i]]
		if float64(n.StartTick) <= tick {
			s.start(n)
		}
	}
}

func (s *Scheduler) start(n Note) {
	if _, ok := s.active[n.ID]; ok {
		return
	}
	s.active[n.ID] = n
	s.out.NoteOn(n, s.tm.TickToSeconds(float64(n.StartTick)))
}

func (s *Scheduler) stop(n Note) {
	if _, ok := s.active[n.ID]; !ok {
		return
	}
	delete(s.active, n.ID)
	s.out.NoteOff(n, s.tm.TickToSeconds(float64(n.EndTick)))
}

func (s *Scheduler) stopAll() {
	if len(s.active) == 0 {
		return
	}
	s.active = make(map[int]Note)
	s.out.StopAll()
}
