package session

import (
	"math"
	"testing"

	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

func testMap() *tempo.Map {
	return tempo.New(nil, 480) // 120 BPM: tick 480 = 0.5s
}

func testTargets() []model.TargetEvent {
	return []model.TargetEvent{
		{ID: "0-480", Tick: 480, ExpectedPitch: 52},
		{ID: "1-960", Tick: 960, ExpectedPitch: 55},
	}
}

func stateAt(tick float64) model.SessionState {
	return model.SessionState{Phase: model.PhaseAdvancing, PlayheadTick: tick}
}

func TestInStrideValidationSkipsGate(t *testing.T) {
	tm := testMap()
	st := stateAt(460) // slightly before the target
	res := Next(st, testTargets(), tm, 0.48, true, Options{})
	if res.Transition != TransitionAdvancedInStride {
		t.Fatalf("transition = %v, want advanced_in_stride", res.Transition)
	}
	if res.State.Phase != model.PhaseAdvancing {
		t.Fatalf("phase = %v, want advancing", res.State.Phase)
	}
	if res.State.ActiveTargetIndex != 1 {
		t.Fatalf("index = %d, want 1", res.State.ActiveTargetIndex)
	}
	// Playhead at tick 460 is ~20.8ms early.
	if res.DeltaMs >= 0 || math.Abs(res.DeltaMs) > 25 {
		t.Fatalf("delta = %v ms, want small negative", res.DeltaMs)
	}
}

func TestNoHitBeforeWindowDoesNothing(t *testing.T) {
	res := Next(stateAt(0), testTargets(), testMap(), 0, true, Options{})
	if res.Transition != TransitionNone {
		t.Fatalf("hit far before the window advanced the session: %v", res.Transition)
	}
}

func TestPassingWindowEntersGate(t *testing.T) {
	tm := testMap()
	// Target at 0.5s, post window 0.5s: tick 1000 is ~1.042s, past the edge.
	res := Next(stateAt(1000), testTargets(), tm, 1.042, false, Options{})
	if res.Transition != TransitionEnteredGate {
		t.Fatalf("transition = %v, want entered_waiting", res.Transition)
	}
	if res.State.Phase != model.PhaseGated {
		t.Fatalf("phase = %v, want gated", res.State.Phase)
	}
	if res.State.GatedTargetID != "0-480" {
		t.Fatalf("gated target = %q", res.State.GatedTargetID)
	}
	if res.State.GateEnteredAt != 1.042 {
		t.Fatalf("gate entered at %v", res.State.GateEnteredAt)
	}
	if res.State.PlayheadTick != 1000 {
		t.Fatalf("play-head moved while gating: %v", res.State.PlayheadTick)
	}
}

func TestGatedHitResumesAdvancing(t *testing.T) {
	tm := testMap()
	st := model.SessionState{
		Phase:         model.PhaseGated,
		PlayheadTick:  1000,
		GatedTargetID: "0-480",
		GateEnteredAt: 1.0,
	}
	res := Next(st, testTargets(), tm, 1.3, true, Options{})
	if res.Transition != TransitionValidatedHit {
		t.Fatalf("transition = %v, want validated_hit", res.Transition)
	}
	if res.State.Phase != model.PhaseAdvancing || res.State.ActiveTargetIndex != 1 {
		t.Fatalf("unexpected state %+v", res.State)
	}
	if res.State.GatedTargetID != "" {
		t.Fatalf("gate id not cleared")
	}
	if math.Abs(res.DeltaMs-300) > 1e-9 {
		t.Fatalf("delta = %v ms, want 300 (reaction time)", res.DeltaMs)
	}
}

func TestGateTimeoutMiss(t *testing.T) {
	st := model.SessionState{
		Phase:         model.PhaseGated,
		PlayheadTick:  1000,
		GatedTargetID: "0-480",
		GateEnteredAt: 1.0,
	}
	opts := Options{GateTimeout: 2}
	if res := Next(st, testTargets(), testMap(), 2.9, false, opts); res.Transition != TransitionNone {
		t.Fatalf("timed out early: %v", res.Transition)
	}
	res := Next(st, testTargets(), testMap(), 3.0, false, opts)
	if res.Transition != TransitionTimeoutMiss {
		t.Fatalf("transition = %v, want timeout_miss", res.Transition)
	}
	if res.State.ActiveTargetIndex != 1 || res.State.Phase != model.PhaseAdvancing {
		t.Fatalf("unexpected state %+v", res.State)
	}
}

func TestGateWithoutTimeoutHolds(t *testing.T) {
	st := model.SessionState{
		Phase:         model.PhaseGated,
		GatedTargetID: "0-480",
		GateEnteredAt: 1.0,
	}
	res := Next(st, testTargets(), testMap(), 1e6, false, Options{})
	if res.Transition != TransitionNone || res.State.Phase != model.PhaseGated {
		t.Fatalf("unconfigured timeout released the gate: %+v", res)
	}
}

func TestLastTargetCompletes(t *testing.T) {
	st := model.SessionState{Phase: model.PhaseAdvancing, PlayheadTick: 960, ActiveTargetIndex: 1}
	res := Next(st, testTargets(), testMap(), 1.0, true, Options{})
	if res.Transition != TransitionAdvancedInStride {
		t.Fatalf("transition = %v", res.Transition)
	}
	if res.State.Phase != model.PhaseComplete {
		t.Fatalf("phase = %v, want complete", res.State.Phase)
	}
}

func TestTerminalAbsorption(t *testing.T) {
	st := model.SessionState{Phase: model.PhaseComplete, ActiveTargetIndex: 2}
	for _, hit := range []bool{true, false} {
		for _, now := range []float64{0, 10, 1e9} {
			res := Next(st, testTargets(), testMap(), now, hit, Options{GateTimeout: 1})
			if res.State != st || res.Transition != TransitionNone {
				t.Fatalf("terminal state changed: %+v", res)
			}
		}
	}
}

func TestEmptyTargetsComplete(t *testing.T) {
	res := Next(stateAt(0), nil, testMap(), 0, false, Options{})
	if res.State.Phase != model.PhaseComplete {
		t.Fatalf("phase = %v, want complete", res.State.Phase)
	}
}
