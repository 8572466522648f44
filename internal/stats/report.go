package stats

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/fretline/fretline/internal/model"
)

const defaultReportWidth = 60

// ReportWidth returns the terminal width for report rendering, falling back
// to a fixed width when stdout is not a terminal.
func ReportWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultReportWidth
	}
	if w > 120 {
		w = 120
	}
	return w
}

// RenderSummary prints an aggregate report for the stored sessions.
func RenderSummary(w io.Writer, sessions []model.SessionRecord, width int) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if width <= 0 {
		width = defaultReportWidth
	}

	var totalPoints, bestPoints int
	var accSum, reactionSum float64
	var reactionN int
	counts := map[model.Rating]int{}
	reactions := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		totalPoints += s.Summary.TotalPoints
		if s.Summary.TotalPoints > bestPoints {
			bestPoints = s.Summary.TotalPoints
		}
		accSum += Accuracy(s.Summary)
		if s.Summary.MeanReactionMs > 0 {
			reactionSum += s.Summary.MeanReactionMs
			reactionN++
			reactions = append(reactions, s.Summary.MeanReactionMs)
		}
		for r, n := range s.Summary.Counts {
			counts[r] += n
		}
	}
	count := float64(len(sessions))

	rows := []row{
		{"Sessions", fmt.Sprintf("%d", len(sessions))},
		{"Avg points", fmt.Sprintf("%.1f", float64(totalPoints)/count)},
		{"Best points", fmt.Sprintf("%d", bestPoints)},
		{"Avg accuracy", fmt.Sprintf("%.1f%%", accSum/count*100)},
	}
	if reactionN > 0 {
		rows = append(rows, row{"Avg reaction", fmt.Sprintf("%.0f ms", reactionSum/float64(reactionN))})
	}
	if err := renderRows(w, "Summary", rows); err != nil {
		return err
	}

	histRows := make([]row, 0, 4)
	for _, r := range []model.Rating{model.RatingPerfect, model.RatingGreat, model.RatingOk, model.RatingMiss} {
		histRows = append(histRows, row{r.String(), fmt.Sprintf("%d", counts[r])})
	}
	if err := renderRows(w, "Ratings", histRows); err != nil {
		return err
	}

	if len(reactions) > 1 {
		if len(reactions) > width {
			reactions = reactions[len(reactions)-width:]
		}
		if _, err := fmt.Fprintf(w, "Reaction trend (ms, old to new)\n%s\n", Sparkline(MovingAverage(reactions, 3))); err != nil {
			return err
		}
	}
	return nil
}

type row struct {
	label string
	value string
}

// renderRows prints label/value pairs with runewidth-aware padding.
func renderRows(w io.Writer, title string, rows []row) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	labelWidth := 0
	for _, r := range rows {
		if lw := runewidth.StringWidth(r.label); lw > labelWidth {
			labelWidth = lw
		}
	}
	for _, r := range rows {
		pad := labelWidth - runewidth.StringWidth(r.label)
		if _, err := fmt.Fprintf(w, "  %s%s  %s\n", r.label, spaces(pad), r.value); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
