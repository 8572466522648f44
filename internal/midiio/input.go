// Package midiio bridges live MIDI hardware to the practice engine.
package midiio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/fretline/fretline/internal/model"
)

// Virtual/system ports that are never auto-selected.
var excludedPortPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// sampleInterval is how often the input emits a PitchSample for the
// currently held note. A held MIDI key produces a continuous qualifying run
// for the hold validator, the way a pitch tracker would.
const sampleInterval = 10 * time.Millisecond

// Input turns note events from a MIDI instrument into a continuous
// PitchSample stream. Samples are produced on an internal goroutine and
// handed to the push callback; the session driver remains the only state
// writer.
type Input struct {
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	done chan struct{}
	log  *zap.Logger

	mu       sync.Mutex
	curPitch int
	held     bool
}

// OpenInput connects to the named input port, or to the first real port when
// name is empty. now supplies session-clock seconds for sample timestamps;
// push receives every sample.
func OpenInput(name string, now func() float64, push func(model.PitchSample), log *zap.Logger) (*Input, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to list midi inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if excludedPort(in.String()) {
			continue
		}
		if name == "" || strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("no midi input matching %q", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to open %q: %w", found.String(), err)
	}

	input := &Input{drv: drv, in: found, done: make(chan struct{}), log: log}
	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if msg.GetNoteStart(&ch, &key, &vel) {
			input.setHeld(int(key), true)
		} else if msg.GetNoteEnd(&ch, &key) {
			input.noteEnd(int(key))
		}
	})
	if err != nil {
		_ = found.Close()
		drv.Close()
		return nil, fmt.Errorf("failed to listen on %q: %w", found.String(), err)
	}
	input.stop = stop
	log.Info("midi input connected", zap.String("port", found.String()))

	go input.sampleLoop(now, push)
	return input, nil
}

// Port returns the connected port name.
func (i *Input) Port() string {
	return i.in.String()
}

// Close stops sampling and releases the port.
func (i *Input) Close() {
	close(i.done)
	if i.stop != nil {
		i.stop()
	}
	if err := i.in.Close(); err != nil {
		i.log.Warn("midi input close", zap.Error(err))
	}
	i.drv.Close()
}

func (i *Input) setHeld(pitch int, held bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.curPitch = pitch
	i.held = held
}

func (i *Input) noteEnd(pitch int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	// A note-off for a stale key must not silence a newer note.
	if i.held && i.curPitch == pitch {
		i.held = false
	}
}

func (i *Input) sampleLoop(now func() float64, push func(model.PitchSample)) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.done:
			return
		case <-ticker.C:
			i.mu.Lock()
			pitch, held := i.curPitch, i.held
			i.mu.Unlock()
			push(model.PitchSample{
				TimeSeconds: now(),
				Pitch:       float64(pitch),
				HasPitch:    held,
				Confidence:  1,
			})
		}
	}
}

func excludedPort(name string) bool {
	for _, pat := range excludedPortPatterns {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
