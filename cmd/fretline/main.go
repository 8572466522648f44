// Package main provides the CLI entrypoint for fretline.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fretline/fretline/internal/config"
	"github.com/fretline/fretline/internal/fretboard"
	"github.com/fretline/fretline/internal/hitdetect"
	"github.com/fretline/fretline/internal/logging"
	"github.com/fretline/fretline/internal/midiio"
	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/reduce"
	"github.com/fretline/fretline/internal/session"
	"github.com/fretline/fretline/internal/smfio"
	"github.com/fretline/fretline/internal/stats"
	"github.com/fretline/fretline/internal/store"
	"github.com/fretline/fretline/internal/tui"
	"github.com/fretline/fretline/internal/voices"
)

const (
	defaultFretMin   = 0
	defaultFretMax   = 12
	defaultTolerance = 0.0
	defaultHoldMs    = float64(hitdetect.DefaultHoldMs)
	defaultMinConf   = hitdetect.DefaultMinConfidence
	defaultPreWin    = session.DefaultPreWindow
	defaultPostWin   = session.DefaultPostWindow
	defaultClusterWn = reduce.DefaultClusterWindow
)

var (
	defaultStrings = []int{0, 1, 2, 3, 4, 5}
	defaultFingers = []int{0, 1, 2, 3, 4}
)

var (
	playStrings    []int
	playFretMin    int
	playFretMax    int
	playFrets      []int
	playFingers    []int
	playTolerance  float64
	playPreferOpen bool
	playMinSpacing float64
	playNotesPerMn float64
	playGateTmo    float64
	playClusterWn  float64
	playPickLowest bool
	playPreWindow  float64
	playPostWindow float64
	playHoldMs     float64
	playMinConf    float64
	playMidiIn     string
	playMidiOut    string
	playNoSound    bool
	playNoInput    bool
	playDebug      bool

	statsSince string
	statsLast  int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fretline <file.mid>",
		Short:         "TUI guitar practice trainer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	addProfileFlags(rootCmd)
	rootCmd.Flags().StringVar(&playMidiIn, "midi-in", "", "midi input port substring (default: first real port)")
	rootCmd.Flags().StringVar(&playMidiOut, "midi-out", "", "midi output port substring (default: first real port)")
	rootCmd.Flags().BoolVar(&playNoSound, "no-sound", false, "do not render backing voices to a midi output")
	rootCmd.Flags().BoolVar(&playNoInput, "no-input", false, "run without an instrument (keyboard simulation only)")
	rootCmd.Flags().BoolVar(&playDebug, "debug", false, "verbose logging to stderr")

	rootCmd.AddCommand(newTargetsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&playStrings, "strings", defaultStrings, "allowed string indexes, low E = 0")
	cmd.Flags().IntVar(&playFretMin, "fret-min", defaultFretMin, "lowest allowed fret")
	cmd.Flags().IntVar(&playFretMax, "fret-max", defaultFretMax, "highest allowed fret")
	cmd.Flags().IntSliceVar(&playFrets, "frets", nil, "explicit allowed frets (overrides fret-min/fret-max)")
	cmd.Flags().IntSliceVar(&playFingers, "fingers", defaultFingers, "allowed fretting fingers, 0 = open")
	cmd.Flags().Float64Var(&playTolerance, "tolerance", defaultTolerance, "pitch tolerance in semitones")
	cmd.Flags().BoolVar(&playPreferOpen, "prefer-open", false, "bias position choice toward open strings")
	cmd.Flags().Float64Var(&playMinSpacing, "min-spacing", 0, "minimum seconds between practice notes")
	cmd.Flags().Float64Var(&playNotesPerMn, "notes-per-minute", 0, "practice note rate (alternative to min-spacing)")
	cmd.Flags().Float64Var(&playGateTmo, "gate-timeout", 0, "seconds a gate holds before a forced miss (0 = forever)")
	cmd.Flags().Float64Var(&playClusterWn, "cluster-window", defaultClusterWn, "chord clustering window in seconds")
	cmd.Flags().BoolVar(&playPickLowest, "pick-lowest", false, "keep the lowest pitch of a chord instead of the highest")
	cmd.Flags().Float64Var(&playPreWindow, "pre-window", defaultPreWin, "grace window before a target in seconds")
	cmd.Flags().Float64Var(&playPostWindow, "post-window", defaultPostWin, "grace window after a target in seconds")
	cmd.Flags().Float64Var(&playHoldMs, "hold-ms", defaultHoldMs, "milliseconds a pitch must be held to validate")
	cmd.Flags().Float64Var(&playMinConf, "min-confidence", defaultMinConf, "minimum pitch sample confidence (0-1)")
}

func mergeProfileConfig(cmd *cobra.Command, fileCfg config.FileConfig) {
	applyIntsConfig(cmd, "strings", &playStrings, fileCfg.Profile.Strings)
	applyIntConfig(cmd, "fret-min", &playFretMin, fileCfg.Profile.FretMin)
	applyIntConfig(cmd, "fret-max", &playFretMax, fileCfg.Profile.FretMax)
	applyIntsConfig(cmd, "frets", &playFrets, fileCfg.Profile.Frets)
	applyIntsConfig(cmd, "fingers", &playFingers, fileCfg.Profile.Fingers)
	applyFloatConfig(cmd, "tolerance", &playTolerance, fileCfg.Profile.Tolerance)
	applyBoolConfig(cmd, "prefer-open", &playPreferOpen, fileCfg.Profile.PreferOpen)
	applyFloatConfig(cmd, "min-spacing", &playMinSpacing, fileCfg.Profile.MinSpacing)
	applyFloatConfig(cmd, "notes-per-minute", &playNotesPerMn, fileCfg.Profile.NotesPerMinute)
	applyFloatConfig(cmd, "gate-timeout", &playGateTmo, fileCfg.Profile.GateTimeout)
	applyFloatConfig(cmd, "cluster-window", &playClusterWn, fileCfg.Engine.ClusterWindow)
	applyBoolConfig(cmd, "pick-lowest", &playPickLowest, fileCfg.Engine.PickLowest)
	applyFloatConfig(cmd, "pre-window", &playPreWindow, fileCfg.Engine.PreWindow)
	applyFloatConfig(cmd, "post-window", &playPostWindow, fileCfg.Engine.PostWindow)
	applyFloatConfig(cmd, "hold-ms", &playHoldMs, fileCfg.Engine.HoldMs)
	applyFloatConfig(cmd, "min-confidence", &playMinConf, fileCfg.Engine.MinConfidence)
}

func buildProfile() model.ConstraintProfile {
	return model.ConstraintProfile{
		Strings:              playStrings,
		FretMin:              playFretMin,
		FretMax:              playFretMax,
		FretSet:              playFrets,
		Fingers:              playFingers,
		PitchTolerance:       playTolerance,
		PreferOpenString:     playPreferOpen,
		MinNoteSpacing:       playMinSpacing,
		TargetNotesPerMinute: playNotesPerMn,
		GateTimeout:          playGateTmo,
	}
}

func buildWeights(cfg config.WeightsConfig) reduce.Weights {
	w := reduce.DefaultWeights
	applyWeight(&w.PitchDistance, cfg.PitchDistance)
	applyWeight(&w.FretHeight, cfg.FretHeight)
	applyWeight(&w.Jump, cfg.Jump)
	applyWeight(&w.BoxShift, cfg.BoxShift)
	applyWeight(&w.SameFinger, cfg.SameFinger)
	applyWeight(&w.OpenBonus, cfg.OpenBonus)
	applyWeight(&w.PinkyBonus, cfg.PinkyBonus)
	return w
}

func validateProfile(p model.ConstraintProfile) error {
	if len(p.Strings) == 0 {
		return fmt.Errorf("--strings must not be empty")
	}
	if len(p.Fingers) == 0 {
		return fmt.Errorf("--fingers must not be empty")
	}
	if len(p.FretSet) == 0 && p.FretMin > p.FretMax {
		return fmt.Errorf("--fret-min must not exceed --fret-max")
	}
	if p.PitchTolerance < 0 {
		return fmt.Errorf("--tolerance must be >= 0")
	}
	if p.MinNoteSpacing < 0 {
		return fmt.Errorf("--min-spacing must be >= 0")
	}
	if p.TargetNotesPerMinute < 0 {
		return fmt.Errorf("--notes-per-minute must be >= 0")
	}
	if p.GateTimeout < 0 {
		return fmt.Errorf("--gate-timeout must be >= 0")
	}
	return nil
}

func runPlayCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mergeProfileConfig(cmd, fileCfg)

	profile := buildProfile()
	if err := validateProfile(profile); err != nil {
		return err
	}

	log, err := logging.New(playDebug, !playDebug)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer func() {
		// Best-effort flush on shutdown.
		_ = log.Sync()
	}()

	sourcePath := args[0]
	song, err := smfio.Load(sourcePath)
	if err != nil {
		return err
	}
	tm := song.TempoMap()

	gen := reduce.New(fretboard.New(nil))
	targets, genStats := gen.Generate(song.Events, profile, tm, reduce.Options{
		ClusterWindow: playClusterWn,
		PickLowest:    playPickLowest,
		Weights:       buildWeights(fileCfg.Weights),
	})
	if len(targets) == 0 {
		return fmt.Errorf("no playable notes in %s under the current constraints (%d skipped)", sourcePath, genStats.Skipped)
	}

	var out voices.Output = midiio.NullSynth{}
	if !playNoSound {
		synth, err := midiio.OpenSynth(playMidiOut, log)
		if err != nil {
			logErrf("backing voices disabled: %v\n", err)
		} else {
			defer synth.Close()
			out = synth
		}
	}
	sched := voices.NewScheduler(voices.FromSource(song.Events), tm, out)

	hit := hitdetect.Params{
		Tolerance:     playTolerance,
		HoldMs:        playHoldMs,
		MinConfidence: playMinConf,
	}

	// The input pushes into the ring from its own goroutine; the driver stays
	// the only session-state writer.
	clk := session.NewClock()
	ring := hitdetect.NewRing(0)
	hasPitches := false
	if !playNoInput {
		input, err := midiio.OpenInput(playMidiIn, clk.Now, ring.Push, log)
		if err != nil {
			logErrf("no instrument connected; use space to simulate hits (%v)\n", err)
		} else {
			defer input.Close()
			hasPitches = true
		}
	}

	driver := session.NewDriver(session.DriverConfig{
		Clock:     clk,
		TempoMap:  tm,
		Targets:   targets,
		Scheduler: sched,
		Ring:      ring,
		Options: session.Options{
			PreWindow:   playPreWindow,
			PostWindow:  playPostWindow,
			GateTimeout: profile.GateTimeout,
		},
		Hit:        hit,
		HasPitches: hasPitches,
		Logger:     log,
	})

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	uiModel := tui.NewModel(driver, st, sourcePath, totalTicks(song, targets), hit)
	program := tea.NewProgram(uiModel, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// totalTicks is the end of the full rendition, covering backing voices that
// outlast the final practice target.
func totalTicks(song *smfio.Song, targets []model.TargetEvent) float64 {
	var end int64
	for _, ev := range song.Events {
		if ev.TickOff > end {
			end = ev.TickOff
		}
	}
	for _, t := range targets {
		if off := t.Tick + t.DurationTicks; off > end {
			end = off
		}
	}
	return float64(end)
}

func newTargetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets <file.mid>",
		Short: "Print the reduced practice sequence",
		Args:  cobra.ExactArgs(1),
		RunE:  runTargetsCmd,
	}
	addProfileFlags(cmd)
	return cmd
}

func runTargetsCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mergeProfileConfig(cmd, fileCfg)

	profile := buildProfile()
	if err := validateProfile(profile); err != nil {
		return err
	}

	song, err := smfio.Load(args[0])
	if err != nil {
		return err
	}
	tm := song.TempoMap()
	gen := reduce.New(fretboard.New(nil))
	targets, genStats := gen.Generate(song.Events, profile, tm, reduce.Options{
		ClusterWindow: playClusterWn,
		PickLowest:    playPickLowest,
		Weights:       buildWeights(fileCfg.Weights),
	})

	w := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(w, "%-6s %-8s %-9s %-7s %-5s %-7s %s\n",
		"#", "tick", "time", "string", "fret", "finger", "pitch"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for i, t := range targets {
		pitch := fmt.Sprintf("%d", t.ExpectedPitch)
		if t.ExpectedPitch != t.SourcePitch {
			pitch = fmt.Sprintf("%d (from %d)", t.ExpectedPitch, t.SourcePitch)
		}
		if _, err := fmt.Fprintf(w, "%-6d %-8d %-9.3f %-7d %-5d %-7d %s\n",
			i, t.Tick, tm.TickToSeconds(float64(t.Tick)), t.StringIndex, t.Fret, t.Finger, pitch); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	logErrf("%d source notes, %d clusters, %d after density filter, %d kept, %d skipped\n",
		genStats.SourceNotes, genStats.Clusters, genStats.AfterDensity, len(targets), genStats.Skipped)
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats for stored sessions",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	sessions, err := st.ListSessions(cmd.Context(), model.StatsFilter{Since: sinceTime, Last: statsLast})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return stats.RenderSummary(cmd.OutOrStdout(), sessions, stats.ReportWidth())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntsConfig(cmd *cobra.Command, name string, target *[]int, value *[]int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyWeight(target *float64, value *float64) {
	if value == nil {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# fretline configuration
# Uncomment a value to enable it. CLI flags override config values.

[profile]
# strings = [0, 1, 2, 3, 4, 5]  # Allowed string indexes, low E = 0
# fret-min = %d                  # Lowest allowed fret
# fret-max = %d                 # Highest allowed fret
# frets = [0, 1, 2, 3]          # Explicit allowed frets (overrides the range)
# fingers = [0, 1, 2, 3, 4]     # Allowed fretting fingers, 0 = open
# tolerance = %.1f               # Pitch tolerance in semitones
# prefer-open = false           # Bias position choice toward open strings
# min-spacing = 0.0             # Minimum seconds between practice notes
# notes-per-minute = 0.0        # Practice note rate (alternative to min-spacing)
# gate-timeout = 0.0            # Seconds a gate holds before a forced miss

[engine]
# cluster-window = %.3f        # Chord clustering window in seconds
# pick-lowest = false           # Keep the lowest pitch of a chord
# pre-window = %.1f              # Grace window before a target in seconds
# post-window = %.1f             # Grace window after a target in seconds
# hold-ms = %.0f                 # Milliseconds a pitch must be held to validate
# min-confidence = %.1f          # Minimum pitch sample confidence (0-1)

[weights]
# pitch-distance = %.1f
# fret-height = %.1f
# jump = %.1f
# box-shift = %.1f
# same-finger = %.1f
# open-bonus = %.1f
# pinky-bonus = %.2f
`,
		defaultFretMin,
		defaultFretMax,
		defaultTolerance,
		defaultClusterWn,
		defaultPreWin,
		defaultPostWin,
		defaultHoldMs,
		defaultMinConf,
		reduce.DefaultWeights.PitchDistance,
		reduce.DefaultWeights.FretHeight,
		reduce.DefaultWeights.Jump,
		reduce.DefaultWeights.BoxShift,
		reduce.DefaultWeights.SameFinger,
		reduce.DefaultWeights.OpenBonus,
		reduce.DefaultWeights.PinkyBonus,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
