package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Profile ProfileConfig `toml:"profile"`
	Engine  EngineConfig  `toml:"engine"`
	Weights WeightsConfig `toml:"weights"`
}

// ProfileConfig maps the playability constraints.
type ProfileConfig struct {
	Strings        *[]int   `toml:"strings"`
	FretMin        *int     `toml:"fret-min"`
	FretMax        *int     `toml:"fret-max"`
	Frets          *[]int   `toml:"frets"`
	Fingers        *[]int   `toml:"fingers"`
	Tolerance      *float64 `toml:"tolerance"`
	PreferOpen     *bool    `toml:"prefer-open"`
	MinSpacing     *float64 `toml:"min-spacing"`
	NotesPerMinute *float64 `toml:"notes-per-minute"`
	GateTimeout    *float64 `toml:"gate-timeout"`
}

// EngineConfig maps session and reduction tunables.
type EngineConfig struct {
	ClusterWindow *float64 `toml:"cluster-window"`
	PickLowest    *bool    `toml:"pick-lowest"`
	PreWindow     *float64 `toml:"pre-window"`
	PostWindow    *float64 `toml:"post-window"`
	HoldMs        *float64 `toml:"hold-ms"`
	MinConfidence *float64 `toml:"min-confidence"`
}

// WeightsConfig maps the continuity cost weights.
type WeightsConfig struct {
	PitchDistance *float64 `toml:"pitch-distance"`
	FretHeight    *float64 `toml:"fret-height"`
	Jump          *float64 `toml:"jump"`
	BoxShift      *float64 `toml:"box-shift"`
	SameFinger    *float64 `toml:"same-finger"`
	OpenBonus     *float64 `toml:"open-bonus"`
	PinkyBonus    *float64 `toml:"pinky-bonus"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
