// Package model defines shared data structures.
package model

import "time"

// SourceEvent is one note of the full performance, already decoded from the
// source file. TickOn must be strictly less than TickOff.
type SourceEvent struct {
	TickOn   int64
	TickOff  int64
	Pitch    int     // MIDI pitch 0-127
	Velocity float64 // 0-1
	Channel  int
	Track    int
}

// TempoChange is a raw tempo event from the source file.
type TempoChange struct {
	Tick             int64
	MicrosPerQuarter int
}

// ConstraintProfile restricts the practice sequence to what the player can
// actually reach. An explicit FretSet takes precedence over the
// FretMin/FretMax range. All three allowed sets must be non-empty for a
// non-trivial output; otherwise generation legitimately yields nothing.
type ConstraintProfile struct {
	Strings []int // allowed string indexes into the tuning table
	FretMin int
	FretMax int
	FretSet []int // explicit allowed frets; overrides the range when non-empty
	Fingers []int // allowed fretting fingers (0 = open)

	PitchTolerance   float64 // semitones
	PreferOpenString bool

	MinNoteSpacing       float64 // seconds between kept notes; 0 = use rate
	TargetNotesPerMinute float64 // alternative spacing as a rate; 0 = none

	GateTimeout float64 // seconds a gate holds before a forced miss; 0 = forever
}

// AllowsFret reports whether a fret is inside the profile's allowed set or range.
func (p ConstraintProfile) AllowsFret(fret int) bool {
	if len(p.FretSet) > 0 {
		for _, f := range p.FretSet {
			if f == fret {
				return true
			}
		}
		return false
	}
	return fret >= p.FretMin && fret <= p.FretMax
}

// AllowsFinger reports whether a finger is in the profile's allowed set.
func (p ConstraintProfile) AllowsFinger(finger int) bool {
	for _, f := range p.Fingers {
		if f == finger {
			return true
		}
	}
	return false
}

// MinGapSeconds resolves the density filter gap from spacing or rate.
func (p ConstraintProfile) MinGapSeconds() float64 {
	if p.MinNoteSpacing > 0 {
		return p.MinNoteSpacing
	}
	if p.TargetNotesPerMinute > 0 {
		return 60 / p.TargetNotesPerMinute
	}
	return 0
}

// TargetEvent is one note of the reduced practice sequence. The sequence is
// sorted ascending by Tick and IDs are unique within a session.
type TargetEvent struct {
	ID            string
	Tick          int64
	DurationTicks int64
	StringIndex   int
	Fret          int
	Finger        int
	ExpectedPitch int
	SourcePitch   int // pitch before any octave shift
}

// PitchSample is one reading from the live pitch source.
type PitchSample struct {
	TimeSeconds float64
	Pitch       float64
	HasPitch    bool
	Confidence  float64 // 0-1
}

// SessionPhase enumerates the session state machine phases.
type SessionPhase int

// Session phases.
const (
	PhaseAdvancing SessionPhase = iota
	PhaseGated
	PhaseComplete
)

// String implements fmt.Stringer.
func (p SessionPhase) String() string {
	switch p {
	case PhaseAdvancing:
		return "advancing"
	case PhaseGated:
		return "gated"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// SessionState is the single mutable session value. It is owned by the
// session driver and mutated only through the pure transition function.
type SessionState struct {
	Phase             SessionPhase
	PlayheadTick      float64
	ActiveTargetIndex int
	GatedTargetID     string
	GateEnteredAt     float64 // session-clock seconds; valid only while gated
}

// Rating classifies the timing accuracy of one hit.
type Rating int

// Ratings from best to worst.
const (
	RatingPerfect Rating = iota
	RatingGreat
	RatingOk
	RatingMiss
)

// String implements fmt.Stringer.
func (r Rating) String() string {
	switch r {
	case RatingPerfect:
		return "perfect"
	case RatingGreat:
		return "great"
	case RatingOk:
		return "ok"
	case RatingMiss:
		return "miss"
	}
	return "unknown"
}

// ScoreEntry records the outcome for one target.
type ScoreEntry struct {
	TargetID string
	Rating   Rating
	DeltaMs  float64
	Points   int
}

// ScoreSummary aggregates a finished session.
type ScoreSummary struct {
	TotalPoints    int
	Counts         map[Rating]int
	MeanReactionMs float64 // over non-miss entries
	LongestStreak  int     // consecutive non-miss entries
	Targets        int
}

// SessionRecord is a finished session as persisted by the store.
type SessionRecord struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	SourcePath string
	Targets    int
	Summary    ScoreSummary
}

// StatsFilter selects stored sessions for reporting.
type StatsFilter struct {
	Since *time.Time
	Last  int
}
