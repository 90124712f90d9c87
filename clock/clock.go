// Package clock holds the shared tempo state for a jam session and the
// bar/beat math derived from it. One Clock is shared by the metronome, the
// playback scheduler, and the control surface, so every accessor takes the
// lock and returns a consistent snapshot.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// BeatsPerBar is fixed: the jam is always in 4/4.
const BeatsPerBar = 4

// Clock converts between wall-clock time and musical position. The epoch is
// the shared downbeat reference recorded when the jam starts; all tick and
// bar deadlines are computed from it, never by accumulating sleeps.
type Clock struct {
	mu    sync.RWMutex
	bpm   float64
	epoch time.Time // zero until MarkStart
}

// New creates a Clock at the given tempo.
func New(bpm float64) (*Clock, error) {
	c := &Clock{}
	if err := c.SetBPM(bpm); err != nil {
		return nil, err
	}
	return c, nil
}

// SetBPM changes the tempo. Takes effect atomically: no reader ever sees a
// half-updated set of derived durations. On a running clock the epoch is
// re-anchored to now, so the change starts a fresh downbeat: deadlines and
// bar boundaries computed against the old eighth length would otherwise all
// be stale at the new tempo.
func (c *Clock) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be > 0, got %v", bpm)
	}
	c.mu.Lock()
	if !c.epoch.IsZero() && bpm != c.bpm {
		c.epoch = time.Now()
	}
	c.bpm = bpm
	c.mu.Unlock()
	return nil
}

// BPM returns the current tempo.
func (c *Clock) BPM() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bpm
}

// BeatDuration returns the length of one quarter-note beat.
func (c *Clock) BeatDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beatLocked()
}

// EighthDuration returns the length of one eighth note.
func (c *Clock) EighthDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beatLocked() / 2
}

// BarDuration returns the length of one 4/4 bar.
func (c *Clock) BarDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beatLocked() * BeatsPerBar
}

func (c *Clock) beatLocked() time.Duration {
	return time.Duration(float64(time.Minute) / c.bpm)
}

// MarkStart records now as the jam epoch. The epoch is the downbeat that the
// metronome and all quantized playback align to.
func (c *Clock) MarkStart() {
	c.mu.Lock()
	c.epoch = time.Now()
	c.mu.Unlock()
}

// Started reports whether MarkStart has been called.
func (c *Clock) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.epoch.IsZero()
}

// Epoch returns the jam start time (zero if not started).
func (c *Clock) Epoch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// BarIndexAt returns how many whole bars have elapsed at t since the epoch.
func (c *Clock) BarIndexAt(t time.Time) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bar := c.beatLocked() * BeatsPerBar
	if c.epoch.IsZero() || bar <= 0 {
		return 0
	}
	elapsed := t.Sub(c.epoch)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / bar)
}

// NextBarBoundary returns the start of the bar strictly after t. A t exactly
// on a boundary quantizes to the following bar.
func (c *Clock) NextBarBoundary(t time.Time) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bar := c.beatLocked() * BeatsPerBar
	if c.epoch.IsZero() {
		return t
	}
	elapsed := t.Sub(c.epoch)
	if elapsed < 0 {
		return c.epoch
	}
	n := elapsed/bar + 1
	return c.epoch.Add(n * bar)
}

// TickDeadline returns the absolute deadline of eighth-note tick n, computed
// from the epoch so that per-tick jitter never accumulates.
func (c *Clock) TickDeadline(n int) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch.Add(time.Duration(n) * (c.beatLocked() / 2))
}

// TickIndexAt returns the index of the eighth-note tick in progress at t:
// the tick whose deadline most recently passed, 0 for anything at or before
// the epoch. The metronome uses it to pick the grid back up after the epoch
// moves instead of replaying every tick since the old one.
func (c *Clock) TickIndexAt(t time.Time) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	elapsed := t.Sub(c.epoch)
	if c.epoch.IsZero() || elapsed <= 0 {
		return 0
	}
	return int(elapsed / (c.beatLocked() / 2))
}
