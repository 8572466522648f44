// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fretline/fretline/internal/hitdetect"
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/session"
	"github.com/fretline/fretline/internal/stats"
	"github.com/fretline/fretline/internal/store"
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	phaseStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	gatedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	targetStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	perfectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7CFC00"))
	missStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

type tickMsg time.Time

// Model implements the Bubble Tea practice UI around a session driver.
type Model struct {
	driver     *session.Driver
	store      *store.Store
	sourcePath string
	hit        hitdetect.Params

	width  int
	height int

	prog       progress.Model
	totalTicks float64

	lastEntry *model.ScoreEntry

	saved   bool
	saveErr error
}

// NewModel constructs the practice TUI. totalTicks is the end of the full
// rendition, used for the progress bar.
func NewModel(driver *session.Driver, st *store.Store, sourcePath string, totalTicks float64, hit hitdetect.Params) *Model {
	return &Model{
		driver:     driver,
		store:      st,
		sourcePath: sourcePath,
		hit:        hit,
		prog:       progress.New(progress.WithDefaultGradient()),
		totalTicks: totalTicks,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.driver.Start()
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(session.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := int(float64(m.width) * 0.6)
		if w < 10 {
			w = 10
		}
		m.prog.Width = w
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			m.simulateHit()
			return m, nil
		default:
			return m, nil
		}
	case tickMsg:
		m.driver.Tick()
		if entries := m.driver.Entries(); len(entries) > 0 {
			e := entries[len(entries)-1]
			m.lastEntry = &e
		}
		if m.driver.State().Phase == model.PhaseComplete {
			m.finishSession()
			return m, tickCmd() // keep rendering the summary until quit
		}
		return m, tickCmd()
	default:
		return m, nil
	}
}

// simulateHit feeds a qualifying hold for the active target, so the trainer
// is usable without an instrument attached.
func (m *Model) simulateHit() {
	target := m.driver.ActiveTarget()
	if target == nil {
		return
	}
	now := m.driver.Now()
	hold := m.hit.HoldMs
	if hold == 0 {
		hold = hitdetect.DefaultHoldMs
	}
	for _, frac := range []float64{1, 0.5, 0} {
		m.driver.Push(model.PitchSample{
			TimeSeconds: now - frac*hold/1000,
			Pitch:       float64(target.ExpectedPitch),
			HasPitch:    true,
			Confidence:  1,
		})
	}
}

func (m *Model) finishSession() {
	if m.saved || m.store == nil {
		return
	}
	m.saved = true
	rec := model.SessionRecord{
		StartedAt:  m.driver.StartedAt(),
		EndedAt:    m.driver.EndedAt(),
		SourcePath: m.sourcePath,
		Targets:    len(m.driver.Targets()),
		Summary:    m.driver.Summary(),
	}
	if _, err := m.store.InsertSession(context.Background(), rec, m.driver.Entries()); err != nil {
		m.saveErr = err
		logErrf("failed to save session: %v\n", err)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	st := m.driver.State()
	var b strings.Builder

	b.WriteString(m.renderHeader(st))
	b.WriteString("\n\n")
	b.WriteString(m.renderTarget(st))
	b.WriteString("\n\n")
	if m.totalTicks > 0 {
		b.WriteString(m.prog.ViewAs(st.PlayheadTick / m.totalTicks))
		b.WriteString("\n\n")
	}
	if st.Phase == model.PhaseComplete {
		b.WriteString(m.renderSummary())
	}
	b.WriteString(m.renderFooter(st))

	if m.width == 0 || m.height == 0 {
		return b.String()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}

func (m *Model) renderHeader(st model.SessionState) string {
	switch st.Phase {
	case model.PhaseGated:
		return gatedStyle.Render("WAITING · play the note")
	case model.PhaseComplete:
		return phaseStyle.Render("COMPLETE")
	}
	return phaseStyle.Render("PLAYING")
}

func (m *Model) renderTarget(st model.SessionState) string {
	target := m.driver.ActiveTarget()
	if target == nil {
		return dimStyle.Render("no more targets")
	}
	pos := fmt.Sprintf("string %d  fret %d  finger %d", target.StringIndex+1, target.Fret, target.Finger)
	note := noteName(target.ExpectedPitch)
	progress := fmt.Sprintf("%d/%d", st.ActiveTargetIndex+1, len(m.driver.Targets()))
	return targetStyle.Render(note) + "  " + dimStyle.Render(pos) + "  " + dimStyle.Render(progress)
}

func (m *Model) renderSummary() string {
	sum := m.driver.Summary()
	lines := []string{
		fmt.Sprintf("Points: %d", sum.TotalPoints),
		fmt.Sprintf("Perfect %d · Great %d · Ok %d · Miss %d",
			sum.Counts[model.RatingPerfect], sum.Counts[model.RatingGreat],
			sum.Counts[model.RatingOk], sum.Counts[model.RatingMiss]),
		fmt.Sprintf("Accuracy: %.1f%%  Streak: %d", stats.Accuracy(sum)*100, sum.LongestStreak),
	}
	if sum.MeanReactionMs > 0 {
		lines = append(lines, fmt.Sprintf("Mean reaction: %.0f ms", sum.MeanReactionMs))
	}
	if m.saveErr != nil {
		lines = append(lines, missStyle.Render("session not saved"))
	}
	return strings.Join(lines, "\n") + "\n\n"
}

func (m *Model) renderFooter(st model.SessionState) string {
	segments := []string{fmt.Sprintf("Points %d", m.driver.Summary().TotalPoints)}
	if m.lastEntry != nil {
		label := m.lastEntry.Rating.String()
		if m.lastEntry.Rating == model.RatingPerfect {
			label = perfectStyle.Render(label)
		} else if m.lastEntry.Rating == model.RatingMiss {
			label = missStyle.Render(label)
		}
		segments = append(segments, "Last "+label)
	}
	if st.Phase == model.PhaseComplete {
		segments = append(segments, "q to quit")
	} else {
		segments = append(segments, "space to simulate · q to quit")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

// noteName renders a MIDI pitch as note name plus octave.
func noteName(pitch int) string {
	if pitch < 0 || pitch > 127 {
		return fmt.Sprintf("#%d", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], pitch/12-1)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
