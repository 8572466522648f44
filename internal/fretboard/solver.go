// Package fretboard enumerates playable string/fret/finger positions.
package fretboard

import (
	"math"

	"github.com/fretline/fretline/internal/model"
)

// StandardTuning is the open-string MIDI pitch of each string:
// E2(40)  A2(45)  D3(50)  G3(55)  B3(59)  E4(64)
var StandardTuning = []int{40, 45, 50, 55, 59, 64}

// BoxSpan is the fret width of the fingering box: one finger per fret
// within a span ending at the played fret.
const BoxSpan = 4

// Candidate is one playable realization of a pitch.
type Candidate struct {
	StringIndex   int
	Fret          int
	Finger        int
	Pitch         int // the pitch this position actually sounds
	PitchDistance float64
	BoxStart      int // first fret of the fingering box; 0 for open strings
}

// Solver resolves pitches against a tuning table.
type Solver struct {
	tuning []int
}

// New returns a Solver for the given tuning, defaulting to StandardTuning.
func New(tuning []int) *Solver {
	if len(tuning) == 0 {
		tuning = StandardTuning
	}
	return &Solver{tuning: tuning}
}

// Tuning returns the open-string pitch table.
func (s *Solver) Tuning() []int {
	return s.tuning
}

// Solve enumerates every allowed position that sounds within the profile's
// pitch tolerance of targetPitch. Fret 0 is always finger 0 (open). For
// fretted notes each valid placement of the 4-fret box yields one candidate
// per allowed finger. The returned list is unordered; empty is a valid,
// non-error result.
func (s *Solver) Solve(targetPitch int, profile model.ConstraintProfile) []Candidate {
	var out []Candidate
	for _, idx := range profile.Strings {
		if idx < 0 || idx >= len(s.tuning) {
			continue
		}
		base := s.tuning[idx]
		for _, fret := range s.allowedFrets(profile) {
			pitch := base + fret
			dist := math.Abs(float64(pitch - targetPitch))
			if dist > profile.PitchTolerance {
				continue
			}
			if fret == 0 {
				if profile.AllowsFinger(0) {
					out = append(out, Candidate{
						StringIndex:   idx,
						Fret:          0,
						Finger:        0,
						Pitch:         pitch,
						PitchDistance: dist,
					})
				}
				continue
			}
			lo := fret - (BoxSpan - 1)
			if lo < 1 {
				lo = 1
			}
			for boxStart := lo; boxStart <= fret; boxStart++ {
				finger := fret - boxStart + 1
				if !profile.AllowsFinger(finger) {
					continue
				}
				out = append(out, Candidate{
					StringIndex:   idx,
					Fret:          fret,
					Finger:        finger,
					Pitch:         pitch,
					PitchDistance: dist,
					BoxStart:      boxStart,
				})
			}
		}
	}
	return out
}

func (s *Solver) allowedFrets(profile model.ConstraintProfile) []int {
	if len(profile.FretSet) > 0 {
		return profile.FretSet
	}
	lo, hi := profile.FretMin, profile.FretMax
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		return nil
	}
	frets := make([]int, 0, hi-lo+1)
	for f := lo; f <= hi; f++ {
		frets = append(frets, f)
	}
	return frets
}
