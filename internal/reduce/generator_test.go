package reduce

import (
	"testing"

	"github.com/fretline/fretline/internal/fretboard"
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

func testMap() *tempo.Map {
	return tempo.New(nil, 480) // 120 BPM, quarter = 0.5s
}

func openProfile() model.ConstraintProfile {
	return model.ConstraintProfile{
		Strings: []int{0, 1, 2, 3, 4, 5},
		FretMin: 0,
		FretMax: 12,
		Fingers: []int{0, 1, 2, 3, 4},
	}
}

func note(tick int64, pitch int) model.SourceEvent {
	return model.SourceEvent{TickOn: tick, TickOff: tick + 240, Pitch: pitch, Velocity: 0.8}
}

func TestOrderingAndUniqueIDs(t *testing.T) {
	g := New(fretboard.New(nil))
	events := []model.SourceEvent{
		note(960, 45), note(0, 52), note(480, 64), note(1440, 50),
	}
	targets, _ := g.Generate(events, openProfile(), testMap(), Options{})
	if len(targets) == 0 {
		t.Fatalf("expected targets")
	}
	ids := map[string]bool{}
	for i, tg := range targets {
		if i > 0 && targets[i-1].Tick >= tg.Tick {
			t.Fatalf("targets not strictly sorted by tick: %+v", targets)
		}
		if ids[tg.ID] {
			t.Fatalf("duplicate id %q", tg.ID)
		}
		ids[tg.ID] = true
	}
}

func TestChordClusterCollapsesToHighestPitch(t *testing.T) {
	g := New(fretboard.New(nil))
	// Three near-simultaneous notes: 10 ticks at 120 BPM / 480 tpq is ~10.4ms,
	// well inside the 45ms window.
	events := []model.SourceEvent{
		note(0, 40), note(5, 52), note(10, 47),
	}
	targets, stats := g.Generate(events, openProfile(), testMap(), Options{})
	if stats.Clusters != 1 {
		t.Fatalf("expected one cluster, got %d", stats.Clusters)
	}
	if len(targets) != 1 || targets[0].SourcePitch != 52 {
		t.Fatalf("expected single target at pitch 52, got %+v", targets)
	}
}

func TestChordClusterLowestPolicy(t *testing.T) {
	g := New(fretboard.New(nil))
	events := []model.SourceEvent{
		note(0, 40), note(5, 52), note(10, 47),
	}
	targets, _ := g.Generate(events, openProfile(), testMap(), Options{PickLowest: true})
	if len(targets) != 1 || targets[0].SourcePitch != 40 {
		t.Fatalf("expected single target at pitch 40, got %+v", targets)
	}
}

func TestDensityFilterHonorsMinGap(t *testing.T) {
	g := New(fretboard.New(nil))
	// Quarter notes at 120 BPM are 0.5s apart.
	events := []model.SourceEvent{
		note(0, 45), note(480, 47), note(960, 45), note(1440, 47),
	}
	p := openProfile()
	p.MinNoteSpacing = 0.9
	tm := testMap()
	targets, _ := g.Generate(events, p, tm, Options{})
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets after density filter, got %+v", targets)
	}
	gap := tm.TickToSeconds(float64(targets[1].Tick)) - tm.TickToSeconds(float64(targets[0].Tick))
	if gap < 0.9-1e-9 {
		t.Fatalf("kept targets %v apart, want >= 0.9s", gap)
	}
}

func TestNotesPerMinuteRate(t *testing.T) {
	p := openProfile()
	p.TargetNotesPerMinute = 120
	if got := p.MinGapSeconds(); got != 0.5 {
		t.Fatalf("MinGapSeconds = %v, want 0.5", got)
	}
}

func TestOctaveFallbackScenario(t *testing.T) {
	// Tuning restricted to base pitches {40,45,50}, frets 0-3, finger 1 only,
	// tolerance +-2. Pitch 64: direct and +12 fail, -12 lands on base 50
	// fret 2 with finger 1.
	g := New(fretboard.New([]int{40, 45, 50}))
	p := model.ConstraintProfile{
		Strings:        []int{0, 1, 2},
		FretMin:        0,
		FretMax:        3,
		Fingers:        []int{1},
		PitchTolerance: 2,
	}
	targets, stats := g.Generate([]model.SourceEvent{note(0, 64)}, p, testMap(), Options{})
	if len(targets) != 1 {
		t.Fatalf("expected exactly one target, got %+v (stats %+v)", targets, stats)
	}
	tg := targets[0]
	if tg.Fret != 2 || tg.Finger != 1 || tg.ExpectedPitch != 52 {
		t.Fatalf("unexpected projection %+v", tg)
	}
	if tg.SourcePitch != 64 {
		t.Fatalf("source pitch = %d, want 64", tg.SourcePitch)
	}
}

func TestUnplayableNoteIsSkipped(t *testing.T) {
	g := New(fretboard.New([]int{40}))
	p := model.ConstraintProfile{
		Strings: []int{0},
		FretMin: 0,
		FretMax: 2,
		Fingers: []int{0, 1, 2},
	}
	targets, stats := g.Generate([]model.SourceEvent{note(0, 90)}, p, testMap(), Options{})
	if len(targets) != 0 {
		t.Fatalf("expected no targets, got %+v", targets)
	}
	if stats.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", stats.Skipped)
	}
}

func TestConstraintSatisfaction(t *testing.T) {
	g := New(fretboard.New(nil))
	p := model.ConstraintProfile{
		Strings:        []int{1, 2},
		FretSet:        []int{0, 2, 3},
		Fingers:        []int{0, 1, 2},
		PitchTolerance: 1,
	}
	events := []model.SourceEvent{
		note(0, 45), note(480, 52), note(960, 47), note(1440, 53),
	}
	targets, _ := g.Generate(events, p, testMap(), Options{})
	for _, tg := range targets {
		if !p.AllowsFret(tg.Fret) {
			t.Fatalf("fret %d outside allowed set", tg.Fret)
		}
		if !p.AllowsFinger(tg.Finger) {
			t.Fatalf("finger %d outside allowed set", tg.Finger)
		}
		if tg.StringIndex != 1 && tg.StringIndex != 2 {
			t.Fatalf("string %d outside allowed set", tg.StringIndex)
		}
	}
}

func TestCostMinimality(t *testing.T) {
	solver := fretboard.New(nil)
	g := New(solver)
	p := openProfile()
	events := []model.SourceEvent{note(0, 50), note(480, 55)}
	targets, _ := g.Generate(events, p, testMap(), Options{})
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}

	// Pitch 50 resolves to the open D string, so the continuity state going
	// into the second note is fully known.
	if targets[0].Fret != 0 || targets[0].Finger != 0 {
		t.Fatalf("expected open-string choice for pitch 50, got %+v", targets[0])
	}
	prev := previous{fret: 0, finger: 0, boxStart: 0, valid: true}
	chosenCost := -1.0
	candidates := solver.Solve(55, p)
	for _, c := range candidates {
		if c.StringIndex == targets[1].StringIndex && c.Fret == targets[1].Fret && c.Finger == targets[1].Finger {
			chosenCost = DefaultWeights.Cost(c, prev, false)
			break
		}
	}
	if chosenCost < 0 {
		t.Fatalf("chosen candidate not found in candidate set")
	}
	for _, c := range candidates {
		if cost := DefaultWeights.Cost(c, prev, false); cost < chosenCost-1e-9 {
			t.Fatalf("candidate %+v (cost %v) beats chosen (cost %v)", c, cost, chosenCost)
		}
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	g := New(fretboard.New(nil))
	events := []model.SourceEvent{
		{TickOn: 480, TickOff: 480, Pitch: 45}, // zero length
		{TickOn: 960, TickOff: 480, Pitch: 45}, // inverted
		note(0, 45),
	}
	targets, stats := g.Generate(events, openProfile(), testMap(), Options{})
	if stats.SourceNotes != 1 {
		t.Fatalf("source notes = %d, want 1", stats.SourceNotes)
	}
	if len(targets) != 1 || targets[0].Tick != 0 {
		t.Fatalf("unexpected targets %+v", targets)
	}
}
