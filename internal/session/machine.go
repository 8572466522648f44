// Package session gates play-head progression on live pitch input.
package session

import (
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

// Default grace window around a target's time, in seconds.
const (
	DefaultPreWindow  = 0.5
	DefaultPostWindow = 0.5
)

// Transition identifies what a single step did.
type Transition int

// Transitions emitted by Next.
const (
	TransitionNone Transition = iota
	TransitionAdvancedInStride // hit validated inside the live grace window
	TransitionEnteredGate      // play-head passed the window without a hit
	TransitionValidatedHit     // hit validated while gated
	TransitionTimeoutMiss      // gate timeout elapsed; target counted as missed
)

// String implements fmt.Stringer.
func (t Transition) String() string {
	switch t {
	case TransitionNone:
		return "none"
	case TransitionAdvancedInStride:
		return "advanced_in_stride"
	case TransitionEnteredGate:
		return "entered_waiting"
	case TransitionValidatedHit:
		return "validated_hit"
	case TransitionTimeoutMiss:
		return "timeout_miss"
	}
	return "unknown"
}

// Options tune the state machine. The zero value selects the default grace
// window and an indefinite gate.
type Options struct {
	PreWindow   float64 // seconds before the target time a hit counts
	PostWindow  float64 // seconds after the target time before gating
	GateTimeout float64 // seconds a gate holds before a forced miss; 0 = forever
}

func (o Options) withDefaults() Options {
	if o.PreWindow == 0 {
		o.PreWindow = DefaultPreWindow
	}
	if o.PostWindow == 0 {
		o.PostWindow = DefaultPostWindow
	}
	return o
}

// Result is the outcome of one step.
type Result struct {
	State      model.SessionState
	Transition Transition
	Target     *model.TargetEvent // the target the transition affected, if any
	DeltaMs    float64            // timing delta for scoring; meaningful for hits
}

// Next is the pure per-frame transition function. It reads nothing outside
// its inputs and never mutates them; the caller owns the returned state.
// now is session-clock seconds on the playback clock domain.
func Next(st model.SessionState, targets []model.TargetEvent, tm *tempo.Map, now float64, validHit bool, opts Options) Result {
	if st.Phase == model.PhaseComplete {
		// Terminal: no input sequence changes the state.
		return Result{State: st}
	}
	if st.ActiveTargetIndex >= len(targets) {
		st.Phase = model.PhaseComplete
		return Result{State: st}
	}
	opts = opts.withDefaults()
	target := targets[st.ActiveTargetIndex]

	switch st.Phase {
	case model.PhaseAdvancing:
		targetTime := tm.TickToSeconds(float64(target.Tick))
		pos := tm.TickToSeconds(st.PlayheadTick)
		if validHit && pos >= targetTime-opts.PreWindow && pos <= targetTime+opts.PostWindow {
			delta := (pos - targetTime) * 1000
			st = advance(st, targets)
			return Result{State: st, Transition: TransitionAdvancedInStride, Target: &target, DeltaMs: delta}
		}
		if pos > targetTime+opts.PostWindow {
			st.Phase = model.PhaseGated
			st.GatedTargetID = target.ID
			st.GateEnteredAt = now
			return Result{State: st, Transition: TransitionEnteredGate, Target: &target}
		}
		return Result{State: st}

	case model.PhaseGated:
		if validHit {
			// A gated hit is scored by reaction time from gate entry; the
			// play-head offset is meaningless once frozen.
			delta := (now - st.GateEnteredAt) * 1000
			st = advance(clearGate(st), targets)
			return Result{State: st, Transition: TransitionValidatedHit, Target: &target, DeltaMs: delta}
		}
		if opts.GateTimeout > 0 && now-st.GateEnteredAt >= opts.GateTimeout {
			st = advance(clearGate(st), targets)
			return Result{State: st, Transition: TransitionTimeoutMiss, Target: &target}
		}
		return Result{State: st}
	}
	return Result{State: st}
}

func clearGate(st model.SessionState) model.SessionState {
	st.Phase = model.PhaseAdvancing
	st.GatedTargetID = ""
	st.GateEnteredAt = 0
	return st
}

func advance(st model.SessionState, targets []model.TargetEvent) model.SessionState {
	st.ActiveTargetIndex++
	if st.ActiveTargetIndex >= len(targets) {
		st.Phase = model.PhaseComplete
	}
	return st
}
