// Package scoring converts timing deltas into ratings and running totals.
package scoring

import (
	"math"

	"github.com/fretline/fretline/internal/model"
)

// Rating thresholds on |deltaMs| and the points each rating is worth.
const (
	PerfectMs = 50
	GreatMs   = 120
	OkMs      = 250

	PerfectPoints = 100
	GreatPoints   = 70
	OkPoints      = 40
)

// Rate classifies an absolute timing delta.
func Rate(deltaMs float64) (model.Rating, int) {
	abs := math.Abs(deltaMs)
	switch {
	case abs <= PerfectMs:
		return model.RatingPerfect, PerfectPoints
	case abs <= GreatMs:
		return model.RatingGreat, GreatPoints
	case abs <= OkMs:
		return model.RatingOk, OkPoints
	default:
		return model.RatingMiss, 0
	}
}

// Tally accumulates score entries for one session.
type Tally struct {
	entries []model.ScoreEntry
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{}
}

// AddHit rates a validated hit by its timing delta and records it.
func (t *Tally) AddHit(targetID string, deltaMs float64) model.ScoreEntry {
	rating, points := Rate(deltaMs)
	entry := model.ScoreEntry{TargetID: targetID, Rating: rating, DeltaMs: deltaMs, Points: points}
	t.entries = append(t.entries, entry)
	return entry
}

// AddMiss records a target that was never hit (gate timeout).
func (t *Tally) AddMiss(targetID string) model.ScoreEntry {
	entry := model.ScoreEntry{TargetID: targetID, Rating: model.RatingMiss}
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns the recorded entries in order.
func (t *Tally) Entries() []model.ScoreEntry {
	return t.entries
}

// Summary aggregates the tally: total points, per-rating counts, mean
// reaction time over non-miss entries, and the longest non-miss streak.
func (t *Tally) Summary() model.ScoreSummary {
	sum := model.ScoreSummary{
		Counts:  make(map[model.Rating]int),
		Targets: len(t.entries),
	}
	var reactionSum float64
	var reactionN int
	streak := 0
	for _, e := range t.entries {
		sum.TotalPoints += e.Points
		sum.Counts[e.Rating]++
		if e.Rating == model.RatingMiss {
			streak = 0
			continue
		}
		streak++
		if streak > sum.LongestStreak {
			sum.LongestStreak = streak
		}
		reactionSum += math.Abs(e.DeltaMs)
		reactionN++
	}
	if reactionN > 0 {
		sum.MeanReactionMs = reactionSum / float64(reactionN)
	}
	return sum
}
