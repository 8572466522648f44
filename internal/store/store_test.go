package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fretline/fretline/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "fretline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func record(ended time.Time, points int) model.SessionRecord {
	return model.SessionRecord{
		StartedAt:  ended.Add(-time.Minute),
		EndedAt:    ended,
		SourcePath: "song.mid",
		Targets:    3,
		Summary: model.ScoreSummary{
			TotalPoints: points,
			Counts: map[model.Rating]int{
				model.RatingPerfect: 2,
				model.RatingMiss:    1,
			},
			MeanReactionMs: 35,
			LongestStreak:  2,
		},
	}
}

func TestInsertAndListSessions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1000, 0).UTC()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := st.InsertSession(ctx, record(base.Add(time.Duration(i)*time.Minute), 100*i), nil)
		if err != nil {
			t.Fatalf("insert session: %v", err)
		}
		ids = append(ids, id)
	}

	sessions, err := st.ListSessions(ctx, model.StatsFilter{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != ids[0] || sessions[2].ID != ids[2] {
		t.Fatalf("unexpected ordering: %+v", sessions)
	}
	if sessions[1].Summary.Counts[model.RatingPerfect] != 2 {
		t.Fatalf("counts not round-tripped: %+v", sessions[1].Summary)
	}

	since := base.Add(90 * time.Second)
	sessions, err = st.ListSessions(ctx, model.StatsFilter{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != ids[2] {
		t.Fatalf("since filter returned %+v", sessions)
	}

	sessions, err = st.ListSessions(ctx, model.StatsFilter{Last: 2})
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != ids[1] {
		t.Fatalf("last filter returned %+v", sessions)
	}
}

func TestEntriesRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	entries := []model.ScoreEntry{
		{TargetID: "0-0", Rating: model.RatingPerfect, DeltaMs: 12, Points: 100},
		{TargetID: "1-480", Rating: model.RatingMiss},
	}
	id, err := st.InsertSession(ctx, record(time.Unix(2000, 0).UTC(), 100), entries)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	got, err := st.ListEntries(ctx, id)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0] != entries[0] || got[1] != entries[1] {
		t.Fatalf("entries not round-tripped: %+v", got)
	}
}
