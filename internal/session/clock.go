package session

import "time"

// Clock provides monotonic session time in seconds. Playback and gating are
// measured exclusively on this clock; the wall clock is used only for stored
// timestamps and display, bridged once at session start.
type Clock interface {
	Now() float64
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock anchored at the moment of the call.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
