package reduce

import (
	"math"

	"github.com/fretline/fretline/internal/fretboard"
)

// Weights parameterize the continuity cost. They encode tunable product
// behavior distinct from the algorithm's structure, so they are overridable.
type Weights struct {
	PitchDistance float64
	FretHeight    float64
	Jump          float64 // per fret of movement beyond JumpFree
	BoxShift      float64
	SameFinger    float64
	OpenBonus     float64 // negative: rewards open strings when preferred
	PinkyBonus    float64 // negative: rewards the fourth finger
}

// DefaultWeights are the shipped tuning.
var DefaultWeights = Weights{
	PitchDistance: 3,
	FretHeight:    0.7,
	Jump:          1.5,
	BoxShift:      0.9,
	SameFinger:    3.5,
	OpenBonus:     -0.6,
	PinkyBonus:    -0.25,
}

// JumpFree is how many frets the hand may move without penalty.
const JumpFree = 4

// previous carries the fretting state left by the last emitted target.
type previous struct {
	fret     int
	finger   int
	boxStart int
	valid    bool
}

var noPrevious = previous{}

// Cost scores one candidate against the previous hand position. Lower is
// better; ties are broken by candidate enumeration order.
func (w Weights) Cost(c fretboard.Candidate, prev previous, preferOpen bool) float64 {
	cost := w.PitchDistance*c.PitchDistance + w.FretHeight*float64(c.Fret)

	if prev.valid {
		if jump := math.Abs(float64(c.Fret-prev.fret)) - JumpFree; jump > 0 {
			cost += jump * w.Jump
		}
		if c.Fret != 0 {
			cost += w.BoxShift * math.Abs(float64(c.BoxStart-prev.boxStart))
		}
		if c.Finger == prev.finger && c.Fret != prev.fret && c.Finger != 0 {
			cost += w.SameFinger
		}
	}
	if preferOpen && c.Fret == 0 {
		cost += w.OpenBonus
	}
	if c.Finger == 4 {
		cost += w.PinkyBonus
	}
	return cost
}
