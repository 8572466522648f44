package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/fretline/fretline/internal/hitdetect"
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/scoring"
	"github.com/fretline/fretline/internal/tempo"
	"github.com/fretline/fretline/internal/voices"
)

// TickInterval is the driver's nominal frame period.
const TickInterval = 16 * time.Millisecond

// FallbackGateTimeout substitutes for a missing gate timeout when no pitch
// source is attached, so sessions stay completable.
const FallbackGateTimeout = 2.0

// Driver owns the session state. It is the only writer: pitch producers push
// samples into the ring from their own goroutines, and everything else
// happens inside Tick on the caller's loop.
type Driver struct {
	clock   Clock
	tm      *tempo.Map
	targets []model.TargetEvent
	sched   *voices.Scheduler
	ring    *hitdetect.Ring
	tally   *scoring.Tally
	log     *zap.Logger

	opts Options
	hit  hitdetect.Params

	st            model.SessionState
	anchorSeconds float64 // song position at anchorClock
	anchorClock   float64
	started       bool
	startedWall   time.Time
	startedClock  float64
	endedWall     time.Time
}

// DriverConfig assembles a Driver.
type DriverConfig struct {
	Clock      Clock
	TempoMap   *tempo.Map
	Targets    []model.TargetEvent
	Scheduler  *voices.Scheduler
	Ring       *hitdetect.Ring
	Options    Options
	Hit        hitdetect.Params
	HasPitches bool // whether a live pitch source is attached
	Logger     *zap.Logger
}

// NewDriver wires a session together. Without a pitch source and without a
// configured gate timeout, the fallback timeout is substituted so gates
// cannot hold forever.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Ring == nil {
		cfg.Ring = hitdetect.NewRing(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	opts := cfg.Options
	if !cfg.HasPitches && opts.GateTimeout == 0 {
		opts.GateTimeout = FallbackGateTimeout
		cfg.Logger.Info("no pitch source attached; gating by timeout only",
			zap.Float64("timeout_seconds", opts.GateTimeout))
	}
	return &Driver{
		clock:   cfg.Clock,
		tm:      cfg.TempoMap,
		targets: cfg.Targets,
		sched:   cfg.Scheduler,
		ring:    cfg.Ring,
		tally:   scoring.NewTally(),
		log:     cfg.Logger,
		opts:    opts,
		hit:     cfg.Hit,
	}
}

// Push feeds one live pitch sample. Safe to call from producer goroutines;
// it never blocks the driver.
func (d *Driver) Push(s model.PitchSample) {
	d.ring.Push(s)
}

// State returns a snapshot of the session state.
func (d *Driver) State() model.SessionState {
	return d.st
}

// Targets returns the immutable practice sequence.
func (d *Driver) Targets() []model.TargetEvent {
	return d.targets
}

// ActiveTarget returns the current target, or nil once complete.
func (d *Driver) ActiveTarget() *model.TargetEvent {
	if d.st.ActiveTargetIndex >= len(d.targets) {
		return nil
	}
	t := d.targets[d.st.ActiveTargetIndex]
	return &t
}

// Entries returns the score entries recorded so far.
func (d *Driver) Entries() []model.ScoreEntry {
	return d.tally.Entries()
}

// Summary aggregates the score so far.
func (d *Driver) Summary() model.ScoreSummary {
	return d.tally.Summary()
}

// Now returns the current session-clock reading in seconds.
func (d *Driver) Now() float64 {
	return d.clock.Now()
}

// StartedAt returns the wall-clock session start. Valid after Start.
func (d *Driver) StartedAt() time.Time {
	return d.startedWall
}

// EndedAt returns the wall-clock completion time, zero until complete.
func (d *Driver) EndedAt() time.Time {
	return d.endedWall
}

// WallAt bridges a session-clock reading to wall time. This is the only
// crossing between the two clock domains.
func (d *Driver) WallAt(sessionSeconds float64) time.Time {
	return d.startedWall.Add(time.Duration((sessionSeconds - d.startedClock) * float64(time.Second)))
}

// Start anchors the play-head and begins playback at tick 0.
func (d *Driver) Start() {
	now := d.clock.Now()
	d.startedWall = time.Now()
	d.startedClock = now
	d.anchorSeconds = 0
	d.anchorClock = now
	d.started = true
	if len(d.targets) == 0 {
		d.st.Phase = model.PhaseComplete
		d.endedWall = d.startedWall
		d.log.Info("session started with no targets; nothing to do")
		return
	}
	d.sched.Resume(0)
	d.log.Info("session started",
		zap.Int("targets", len(d.targets)),
		zap.Float64("gate_timeout", d.opts.GateTimeout))
}

// Tick advances the session one frame: recompute the play-head, evaluate the
// hit validator when a hit is checkable, run the pure transition, and react
// to it (pause/resume voices, record score entries).
func (d *Driver) Tick() Result {
	if !d.started || d.st.Phase == model.PhaseComplete {
		return Result{State: d.st}
	}
	now := d.clock.Now()

	if d.st.Phase == model.PhaseAdvancing {
		pos := d.anchorSeconds + (now - d.anchorClock)
		d.st.PlayheadTick = d.tm.SecondsToTick(pos)
		d.sched.Update(d.st.PlayheadTick)
	}

	validHit := false
	if d.checkable(now) {
		target := d.targets[d.st.ActiveTargetIndex]
		validHit, _ = hitdetect.Held(d.ring.Snapshot(), target.ExpectedPitch, d.hit)
	}

	res := Next(d.st, d.targets, d.tm, now, validHit, d.opts)
	wasComplete := d.st.Phase == model.PhaseComplete
	d.st = res.State

	switch res.Transition {
	case TransitionEnteredGate:
		d.sched.Pause(d.st.PlayheadTick)
		d.ring.Reset()
		d.log.Debug("entered gate",
			zap.String("target", res.Target.ID),
			zap.Int("pitch", res.Target.ExpectedPitch))
	case TransitionAdvancedInStride:
		d.tally.AddHit(res.Target.ID, res.DeltaMs)
		d.ring.Reset()
		d.log.Debug("validated in stride",
			zap.String("target", res.Target.ID),
			zap.Float64("delta_ms", res.DeltaMs))
	case TransitionValidatedHit:
		d.tally.AddHit(res.Target.ID, res.DeltaMs)
		d.ring.Reset()
		d.resumePlayback(now)
		d.log.Debug("validated gated hit",
			zap.String("target", res.Target.ID),
			zap.Float64("delta_ms", res.DeltaMs))
	case TransitionTimeoutMiss:
		d.tally.AddMiss(res.Target.ID)
		d.ring.Reset()
		d.resumePlayback(now)
		d.log.Debug("gate timed out", zap.String("target", res.Target.ID))
	}

	if d.st.Phase == model.PhaseComplete && !wasComplete {
		d.sched.Pause(d.st.PlayheadTick)
		d.endedWall = time.Now()
		d.log.Info("session complete", zap.Int("points", d.tally.Summary().TotalPoints))
	}
	return res
}

// resumePlayback re-anchors the playback mapping at the frozen play-head and
// restarts voices there.
func (d *Driver) resumePlayback(now float64) {
	if d.st.Phase != model.PhaseAdvancing {
		return
	}
	d.anchorSeconds = d.tm.TickToSeconds(d.st.PlayheadTick)
	d.anchorClock = now
	d.sched.Resume(d.st.PlayheadTick)
}

// checkable reports whether a hit should be evaluated this frame: inside the
// live grace window while advancing, or any time while gated.
func (d *Driver) checkable(now float64) bool {
	switch d.st.Phase {
	case model.PhaseGated:
		return true
	case model.PhaseAdvancing:
		target := d.targets[d.st.ActiveTargetIndex]
		opts := d.opts.withDefaults()
		targetTime := d.tm.TickToSeconds(float64(target.Tick))
		pos := d.tm.TickToSeconds(d.st.PlayheadTick)
		return pos >= targetTime-opts.PreWindow && pos <= targetTime+opts.PostWindow
	}
	return false
}
