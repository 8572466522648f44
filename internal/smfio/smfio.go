// Package smfio decodes Standard MIDI Files into the engine's note stream.
package smfio

import (
	"bytes"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/fretline/fretline/internal/model"
	"github.com/fretline/fretline/internal/tempo"
)

// Song is a decoded source file.
type Song struct {
	Events          []model.SourceEvent
	TempoChanges    []model.TempoChange
	TicksPerQuarter int
}

// Load reads and decodes a .mid file.
func Load(path string) (s *Song, err error) {
	// The smf reader panics on some malformed files.
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			err = fmt.Errorf("failed to parse %s: %s", path, r)
		}
	}()

	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read midi file: %w", err)
	}
	parsed, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, fmt.Errorf("failed to parse midi file: %w", err)
	}
	return FromSMF(parsed), nil
}

// FromSMF converts a parsed file into the engine's representation. Note-on
// and note-off events are paired per channel and key; notes left open at
// end of track and zero-length notes are dropped.
func FromSMF(parsed *smf.SMF) *Song {
	song := &Song{TicksPerQuarter: tempo.DefaultTicksPerQuarter}
	if mt, ok := parsed.TimeFormat.(smf.MetricTicks); ok {
		song.TicksPerQuarter = int(mt.Resolution())
	}

	type openNote struct {
		tick     int64
		velocity float64
	}
	for trackNo, events := range parsed.Tracks {
		open := map[[2]uint8]openNote{}
		var absTicks int64
		for _, event := range events {
			absTicks += int64(event.Delta)
			var channel, key, velocity uint8
			var bpm float64
			switch {
			case event.Message.GetNoteStart(&channel, &key, &velocity):
				open[[2]uint8{channel, key}] = openNote{tick: absTicks, velocity: float64(velocity) / 127}
			case event.Message.GetNoteEnd(&channel, &key):
				on, ok := open[[2]uint8{channel, key}]
				if !ok {
					continue
				}
				delete(open, [2]uint8{channel, key})
				if absTicks <= on.tick {
					continue
				}
				song.Events = append(song.Events, model.SourceEvent{
					TickOn:   on.tick,
					TickOff:  absTicks,
					Pitch:    int(key),
					Velocity: on.velocity,
					Channel:  int(channel),
					Track:    trackNo,
				})
			case event.Message.GetMetaTempo(&bpm):
				if bpm <= 0 {
					continue
				}
				song.TempoChanges = append(song.TempoChanges, model.TempoChange{
					Tick:             absTicks,
					MicrosPerQuarter: int(60000000 / bpm),
				})
			}
		}
	}
	return song
}

// TempoMap builds the song's tempo map; absent tempo data falls back to the
// single default 120 BPM segment.
func (s *Song) TempoMap() *tempo.Map {
	return tempo.New(s.TempoChanges, s.TicksPerQuarter)
}
