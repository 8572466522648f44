package hitdetect

import (
	"testing"

	"github.com/fretline/fretline/internal/model"
)

func sample(at float64, pitch float64, conf float64) model.PitchSample {
	return model.PitchSample{TimeSeconds: at, Pitch: pitch, HasPitch: true, Confidence: conf}
}

func silence(at float64) model.PitchSample {
	return model.PitchSample{TimeSeconds: at}
}

func TestShortRunDoesNotValidate(t *testing.T) {
	samples := []model.PitchSample{
		sample(0.000, 64, 1),
		sample(0.020, 64, 1),
		sample(0.040, 64, 1),
	}
	held, span := Held(samples, 64, Params{Tolerance: 0.5})
	if held {
		t.Fatalf("40ms run validated against an 80ms hold")
	}
	if span != 40 {
		t.Fatalf("span = %v ms, want 40", span)
	}
}

func TestExactHoldValidates(t *testing.T) {
	samples := []model.PitchSample{
		sample(0.000, 64, 1),
		sample(0.040, 64, 1),
		sample(0.080, 64, 1),
	}
	held, span := Held(samples, 64, Params{Tolerance: 0.5})
	if !held {
		t.Fatalf("run spanning exactly 80ms must validate (span %v)", span)
	}
}

func TestNonQualifyingSampleResetsRun(t *testing.T) {
	samples := []model.PitchSample{
		sample(0.000, 64, 1),
		sample(0.050, 64, 1),
		silence(0.060), // break
		sample(0.070, 64, 1),
		sample(0.120, 64, 1),
	}
	held, span := Held(samples, 64, Params{Tolerance: 0.5})
	if held {
		t.Fatalf("broken run validated")
	}
	if span != 50 {
		t.Fatalf("post-break span = %v ms, want 50", span)
	}
}

func TestLowConfidenceDoesNotQualify(t *testing.T) {
	samples := []model.PitchSample{
		sample(0.000, 64, 0.6),
		sample(0.050, 64, 0.6),
		sample(0.100, 64, 0.6),
	}
	if held, _ := Held(samples, 64, Params{Tolerance: 0.5}); held {
		t.Fatalf("below-threshold confidence validated")
	}
}

func TestPitchToleranceBoundary(t *testing.T) {
	inTol := []model.PitchSample{
		sample(0.000, 64.5, 1),
		sample(0.100, 63.5, 1),
	}
	if held, _ := Held(inTol, 64, Params{Tolerance: 0.5}); !held {
		t.Fatalf("samples at tolerance edge must qualify")
	}
	outTol := []model.PitchSample{
		sample(0.000, 64.6, 1),
		sample(0.100, 64.6, 1),
	}
	if held, _ := Held(outTol, 64, Params{Tolerance: 0.5}); held {
		t.Fatalf("samples beyond tolerance qualified")
	}
}

func TestRunMustReachNewestSample(t *testing.T) {
	// An old valid run followed by silence must not validate.
	samples := []model.PitchSample{
		sample(0.000, 64, 1),
		sample(0.100, 64, 1),
		silence(0.150),
	}
	if held, _ := Held(samples, 64, Params{Tolerance: 0.5}); held {
		t.Fatalf("stale run validated after a break")
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(sample(float64(i), 60, 1))
	}
	got := r.Snapshot()
	if len(got) != 4 {
		t.Fatalf("snapshot size = %d, want 4", len(got))
	}
	for i, s := range got {
		if want := float64(i + 2); s.TimeSeconds != want {
			t.Fatalf("snapshot[%d].TimeSeconds = %v, want %v", i, s.TimeSeconds, want)
		}
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(0)
	r.Push(sample(0, 60, 1))
	r.Reset()
	if got := r.Snapshot(); len(got) != 0 {
		t.Fatalf("expected empty ring after reset, got %d samples", len(got))
	}
}
