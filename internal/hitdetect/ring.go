package hitdetect

import (
	"sync"

	"github.com/fretline/fretline/internal/model"
)

// DefaultRingCap bounds the sample buffer. At typical analysis rates this
// covers well over the default hold window.
const DefaultRingCap = 64

// Ring is a bounded buffer of pitch samples. Producers append from their own
// goroutines; the session driver is the only reader. Appends never block.
type Ring struct {
	mu      sync.Mutex
	samples []model.PitchSample
	head    int
	size    int
}

// NewRing returns a Ring with the given capacity (DefaultRingCap if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCap
	}
	return &Ring{samples: make([]model.PitchSample, capacity)}
}

// Push appends a sample, overwriting the oldest when full.
func (r *Ring) Push(s model.PitchSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.head + r.size) % len(r.samples)
	r.samples[idx] = s
	if r.size < len(r.samples) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.samples)
	}
}

// Snapshot returns the buffered samples oldest-first.
func (r *Ring) Snapshot() []model.PitchSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PitchSample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.samples[(r.head+i)%len(r.samples)]
	}
	return out
}

// Reset discards all buffered samples. Called when entering a gate so stale
// pre-gate samples can never satisfy a post-gate hold.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}
