package midiio

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/fretline/fretline/internal/voices"
)

// Synth renders scheduled voices by sending note events to a MIDI output
// port. It implements voices.Output; the when argument is informational
// since voice boundaries are already driven by the session clock.
type Synth struct {
	drv  *rtmididrv.Driver
	out  drivers.Out
	send func(midi.Message) error
	log  *zap.Logger

	mu     sync.Mutex
	active map[[2]uint8]struct{}
}

// OpenSynth connects to the named output port, or the first real port when
// name is empty.
func OpenSynth(name string, log *zap.Logger) (*Synth, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to list midi outputs: %w", err)
	}
	var found drivers.Out
	for _, out := range outs {
		if excludedPort(out.String()) {
			continue
		}
		if name == "" || strings.Contains(strings.ToLower(out.String()), strings.ToLower(name)) {
			found = out
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("no midi output matching %q", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to open %q: %w", found.String(), err)
	}
	send, err := midi.SendTo(found)
	if err != nil {
		_ = found.Close()
		drv.Close()
		return nil, fmt.Errorf("failed to prepare sender for %q: %w", found.String(), err)
	}
	log.Info("midi output connected", zap.String("port", found.String()))
	return &Synth{
		drv:    drv,
		out:    found,
		send:   send,
		log:    log,
		active: make(map[[2]uint8]struct{}),
	}, nil
}

// NoteOn implements voices.Output.
func (s *Synth) NoteOn(n voices.Note, _ float64) {
	ch, key := uint8(n.Channel), uint8(n.Pitch)
	vel := uint8(n.Velocity * 127)
	if vel == 0 {
		vel = 1
	}
	s.mu.Lock()
	s.active[[2]uint8{ch, key}] = struct{}{}
	s.mu.Unlock()
	if err := s.send(midi.NoteOn(ch, key, vel)); err != nil {
		s.log.Warn("note on failed", zap.Uint8("key", key), zap.Error(err))
	}
}

// NoteOff implements voices.Output.
func (s *Synth) NoteOff(n voices.Note, _ float64) {
	ch, key := uint8(n.Channel), uint8(n.Pitch)
	s.mu.Lock()
	delete(s.active, [2]uint8{ch, key})
	s.mu.Unlock()
	if err := s.send(midi.NoteOff(ch, key)); err != nil {
		s.log.Warn("note off failed", zap.Uint8("key", key), zap.Error(err))
	}
}

// StopAll implements voices.Output.
func (s *Synth) StopAll() {
	s.mu.Lock()
	active := make([][2]uint8, 0, len(s.active))
	for k := range s.active {
		active = append(active, k)
	}
	s.active = make(map[[2]uint8]struct{})
	s.mu.Unlock()
	for _, k := range active {
		if err := s.send(midi.NoteOff(k[0], k[1])); err != nil {
			s.log.Warn("note off failed", zap.Uint8("key", k[1]), zap.Error(err))
		}
	}
}

// Close silences everything and releases the port.
func (s *Synth) Close() {
	s.StopAll()
	if err := s.out.Close(); err != nil {
		s.log.Warn("midi output close", zap.Error(err))
	}
	s.drv.Close()
}

// NullSynth is a silent voices.Output for sessions without audio hardware.
type NullSynth struct{}

// NoteOn implements voices.Output.
func (NullSynth) NoteOn(voices.Note, float64) {}

// NoteOff implements voices.Output.
func (NullSynth) NoteOff(voices.Note, float64) {}

// StopAll implements voices.Output.
func (NullSynth) StopAll() {}
