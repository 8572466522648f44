// Package reduce turns a full note stream into a sparse practice sequence.
package reduce

import (
	"fmt"
	"sort"

	"github.com/fretline/fretline/internal/fretboard"
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

// Clustering window bounds in seconds. Note-on events closer together than
// the window are treated as one chord cluster.
const (
	DefaultClusterWindow = 0.045
	MinClusterWindow     = 0.030
	MaxClusterWindow     = 0.060
)

// Octave shifts attempted when the direct pitch has no playable position.
var octaveAttempts = []int{0, 12, -12}

// Options tune the reduction. The zero value selects the defaults.
type Options struct {
	ClusterWindow float64 // seconds; clamped to [MinClusterWindow, MaxClusterWindow]
	PickLowest    bool    // cluster representative policy; default is highest pitch
	Weights       Weights // cost weights; zero value selects DefaultWeights
}

// Stats counts what the reduction did; skipped notes are expected, not errors.
type Stats struct {
	SourceNotes  int
	Clusters     int
	AfterDensity int
	Skipped      int
}

// Generator reduces note streams against a fretboard solver.
type Generator struct {
	solver *fretboard.Solver
}

// New returns a Generator over the given solver.
func New(solver *fretboard.Solver) *Generator {
	return &Generator{solver: solver}
}

// Generate produces the ordered practice sequence. It is deterministic for
// identical inputs: clustering, density filtering and the continuity-cost
// projection all break ties by enumeration order.
func (g *Generator) Generate(events []model.SourceEvent, profile model.ConstraintProfile, tm *tempo.Map, opts Options) ([]model.TargetEvent, Stats) {
	var stats Stats
	window := clampWindow(opts.ClusterWindow)
	weights := opts.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}

	notes := sortedNoteOns(events)
	stats.SourceNotes = len(notes)

	reps := clusterRepresentatives(notes, tm, window, opts.PickLowest)
	stats.Clusters = len(reps)

	reps = densityFilter(reps, tm, profile.MinGapSeconds())
	stats.AfterDensity = len(reps)

	var out []model.TargetEvent
	prev := noPrevious
	for _, ev := range reps {
		chosen, shift, ok := g.project(ev.Pitch, profile, weights, prev)
		if !ok {
			stats.Skipped++
			continue
		}
		out = append(out, model.TargetEvent{
			ID:            fmt.Sprintf("%d-%d", len(out), ev.TickOn),
			Tick:          ev.TickOn,
			DurationTicks: ev.TickOff - ev.TickOn,
			StringIndex:   chosen.StringIndex,
			Fret:          chosen.Fret,
			Finger:        chosen.Finger,
			ExpectedPitch: ev.Pitch + shift,
			SourcePitch:   ev.Pitch,
		})
		prev = previous{fret: chosen.Fret, finger: chosen.Finger, boxStart: chosen.BoxStart, valid: true}
	}
	return out, stats
}

// project tries the direct pitch, then an octave up, then an octave down,
// and picks the minimum-cost candidate of the first attempt that yields any.
func (g *Generator) project(pitch int, profile model.ConstraintProfile, w Weights, prev previous) (fretboard.Candidate, int, bool) {
	for _, shift := range octaveAttempts {
		shifted := pitch + shift
		if shifted < 0 || shifted > 127 {
			continue
		}
		candidates := g.solver.Solve(shifted, profile)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		bestCost := w.Cost(best, prev, profile.PreferOpenString)
		for _, c := range candidates[1:] {
			if cost := w.Cost(c, prev, profile.PreferOpenString); cost < bestCost {
				best, bestCost = c, cost
			}
		}
		return best, shift, true
	}
	return fretboard.Candidate{}, 0, false
}

// sortedNoteOns orders events by tick, then descending pitch, skipping
// malformed events with a non-positive duration.
func sortedNoteOns(events []model.SourceEvent) []model.SourceEvent {
	notes := make([]model.SourceEvent, 0, len(events))
	for _, ev := range events {
		if ev.TickOn >= ev.TickOff {
			continue
		}
		notes = append(notes, ev)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].TickOn != notes[j].TickOn {
			return notes[i].TickOn < notes[j].TickOn
		}
		return notes[i].Pitch > notes[j].Pitch
	})
	return notes
}

// clusterRepresentatives walks the sorted stream, breaking a cluster whenever
// the gap to the previous member exceeds the window, and keeps one
// representative per cluster.
func clusterRepresentatives(notes []model.SourceEvent, tm *tempo.Map, window float64, pickLowest bool) []model.SourceEvent {
	var reps []model.SourceEvent
	var rep model.SourceEvent
	var prevTime float64
	inCluster := false

	flush := func() {
		if inCluster {
			reps = append(reps, rep)
		}
	}
	for _, ev := range notes {
		t := tm.TickToSeconds(float64(ev.TickOn))
		if !inCluster || t-prevTime > window {
			flush()
			rep = ev
			inCluster = true
		} else if (pickLowest && ev.Pitch < rep.Pitch) || (!pickLowest && ev.Pitch > rep.Pitch) {
			rep = ev
		}
		prevTime = t
	}
	flush()
	return reps
}

// densityFilter keeps a representative only when it is at least minGap
// seconds past the previously kept one. A non-positive gap disables filtering.
func densityFilter(reps []model.SourceEvent, tm *tempo.Map, minGap float64) []model.SourceEvent {
	if minGap <= 0 {
		return reps
	}
	var out []model.SourceEvent
	lastKept := -1.0
	for _, ev := range reps {
		t := tm.TickToSeconds(float64(ev.TickOn))
		if len(out) == 0 || t-lastKept >= minGap {
			out = append(out, ev)
			lastKept = t
		}
	}
	return out
}

func clampWindow(w float64) float64 {
	if w == 0 {
		return DefaultClusterWindow
	}
	if w < MinClusterWindow {
		return MinClusterWindow
	}
	if w > MaxClusterWindow {
		return MaxClusterWindow
	}
	return w
}
