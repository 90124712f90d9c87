package jam

import (
	"sync"
	"time"

	"github.com/logicmoo/llmjam/clock"
	"github.com/logicmoo/llmjam/debug"
)

// Metronome velocities: the hat ticks along, beat accents hit harder.
const (
	hatVelocity    uint8 = 70
	accentVelocity uint8 = 110
)

// Metronome fires a percussion trigger on every eighth note and accents the
// quarter-note beats, alternating kick and snare through the bar. It runs as
// its own goroutine between Start and Stop; every tick deadline is computed
// from the clock epoch and the tick index so jitter never accumulates.
type Metronome struct {
	clk  *clock.Clock
	sink Sink

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewMetronome creates a stopped metronome.
func NewMetronome(clk *clock.Clock, sink Sink) *Metronome {
	return &Metronome{clk: clk, sink: sink}
}

// Start records the jam epoch (if not already marked) and spawns the tick
// loop. Starting a running metronome is a no-op.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	if !m.clk.Started() {
		m.clk.MarkStart()
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.loop(m.stop, m.done)
	debug.Log("metro", "started at %.1f bpm", m.clk.BPM())
}

// Stop signals the loop, waits for it to exit, and silences the drum
// channel. The loop observes the signal within one tick.
func (m *Metronome) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stop)
	done := m.done
	m.running = false
	m.mu.Unlock()

	<-done
	m.sink.AllNotesOff(DrumChannel)
	debug.Log("metro", "stopped")
}

// Running reports whether the tick loop is live. The playback scheduler uses
// this to decide whether to quantize.
func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Metronome) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	anchor := m.clk.Epoch()
	for n := m.clk.TickIndexAt(time.Now()); ; n++ {
		// A tempo change re-anchors the epoch, invalidating every
		// deadline computed from the old eighth length. Resume at the
		// current tick of the new grid: no replay burst when the tempo
		// goes up, no stall when it goes down.
		if e := m.clk.Epoch(); !e.Equal(anchor) {
			anchor = e
			n = m.clk.TickIndexAt(time.Now())
		}
		deadline := m.clk.TickDeadline(n)
		wait := time.Until(deadline)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		m.sink.Trigger(DrumChannel, drumClosedHat, hatVelocity)

		// Even eighth notes are the quarter-note beats.
		if n%2 == 0 {
			switch (n / 2) % clock.BeatsPerBar {
			case 0, 2:
				m.sink.Trigger(DrumChannel, drumKick, accentVelocity)
			case 1, 3:
				m.sink.Trigger(DrumChannel, drumSnare, accentVelocity)
			}
		}
	}
}
