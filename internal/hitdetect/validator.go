// Package hitdetect evaluates live pitch samples against an expected note.
package hitdetect

import (
	"math"

	"github.com/fretline/fretline/internal/model"
)

// Defaults for hold validation.
const (
	DefaultHoldMs        = 80
	DefaultMinConfidence = 0.7
)

// Params configure hold validation. The zero value selects the defaults.
type Params struct {
	Tolerance     float64 // semitones
	HoldMs        float64
	MinConfidence float64
}

func (p Params) withDefaults() Params {
	if p.HoldMs == 0 {
		p.HoldMs = DefaultHoldMs
	}
	if p.MinConfidence == 0 {
		p.MinConfidence = DefaultMinConfidence
	}
	return p
}

// Held reports whether the samples contain an unbroken run of qualifying
// readings spanning at least HoldMs, ending at the newest sample. The
// returned span is the current run's length in milliseconds, for
// observability.
func Held(samples []model.PitchSample, expectedPitch int, params Params) (bool, float64) {
	p := params.withDefaults()
	runStart := math.NaN()
	spanMs := 0.0
	held := false
	for _, s := range samples {
		if !qualifies(s, expectedPitch, p) {
			runStart = math.NaN()
			spanMs = 0
			held = false
			continue
		}
		if math.IsNaN(runStart) {
			runStart = s.TimeSeconds
		}
		spanMs = (s.TimeSeconds - runStart) * 1000
		held = spanMs >= p.HoldMs
	}
	return held, spanMs
}

func qualifies(s model.PitchSample, expectedPitch int, p Params) bool {
	if !s.HasPitch {
		return false
	}
	if s.Confidence < p.MinConfidence {
		return false
	}
	return math.Abs(s.Pitch-float64(expectedPitch)) <= p.Tolerance
}
