package jam

import (
	"context"
	"time"

	"github.com/logicmoo/llmjam/clock"
	"github.com/logicmoo/llmjam/debug"
	"github.com/logicmoo/llmjam/music"
)

// Scheduler plays note events through the sink at the right wall-clock
// instants, quantized onto the metronome's bar grid when it is running.
// Cancellation always leaves the channel silent: pending note-ons are
// released and an all-notes-off goes out.
type Scheduler struct {
	clk     *clock.Clock
	metro   *Metronome
	sink    Sink
	channel uint8
}

// NewScheduler creates a scheduler playing on the melodic channel.
func NewScheduler(clk *clock.Clock, metro *Metronome, sink Sink) *Scheduler {
	return &Scheduler{clk: clk, metro: metro, sink: sink, channel: PlaybackChannel}
}

// batchStart is where a complete batch begins: two full bars after the bar
// boundary that follows now, giving the other performer a predictable entry
// point. Without a running metronome there is nothing to sync to and the
// batch starts immediately.
func (s *Scheduler) batchStart(now time.Time) time.Time {
	if !s.metro.Running() {
		return now
	}
	return s.clk.NextBarBoundary(now).Add(2 * s.clk.BarDuration())
}

// streamStart is where a live stream begins. The total length isn't known
// when the first event arrives, so only the next bar boundary is used.
func (s *Scheduler) streamStart(now time.Time) time.Time {
	if !s.metro.Running() {
		return now
	}
	return s.clk.NextBarBoundary(now)
}

// PlayBatch plays a complete batch: events are sorted, rebased so the
// earliest starts at zero, and played from the quantized start, each note-on
// at its absolute deadline from that epoch.
func (s *Scheduler) PlayBatch(ctx context.Context, events []music.NoteEvent) error {
	if len(events) == 0 {
		return nil
	}
	music.SortByStart(events)
	music.Rebase(events)

	zero := s.batchStart(time.Now())
	if wait := time.Until(zero); wait > 0 {
		debug.Log("sched", "waiting %.2fs for bar sync", wait.Seconds())
		if err := sleepUntil(ctx, zero); err != nil {
			return err
		}
	}

	for _, ev := range events {
		if err := s.playAt(ctx, zero, ev); err != nil {
			s.sink.AllNotesOff(s.channel)
			return err
		}
	}
	return nil
}

// PlayStream plays events as they arrive. The zero point comes from the
// first event; an event whose deadline has already passed when it arrives is
// played immediately rather than dropped.
func (s *Scheduler) PlayStream(ctx context.Context, events <-chan music.NoteEvent) error {
	var zero time.Time
	first := true

	for {
		var ev music.NoteEvent
		var ok bool
		select {
		case ev, ok = <-events:
		case <-ctx.Done():
			s.sink.AllNotesOff(s.channel)
			return ctx.Err()
		}
		if !ok {
			return nil
		}

		if first {
			start := s.streamStart(time.Now())
			if err := sleepUntil(ctx, start); err != nil {
				s.sink.AllNotesOff(s.channel)
				return err
			}
			// The first event plays right at the quantization point
			// whatever its encoded start; later events follow relative
			// to it.
			zero = time.Now().Add(-secs(ev.Start))
			first = false
		}

		if err := s.playAt(ctx, zero, ev); err != nil {
			s.sink.AllNotesOff(s.channel)
			return err
		}
	}
}

// playAt waits for the event's deadline relative to zero, then holds all its
// pitches as a unit: every note-on, the full duration, every note-off.
func (s *Scheduler) playAt(ctx context.Context, zero time.Time, ev music.NoteEvent) error {
	if err := sleepUntil(ctx, zero.Add(secs(ev.Start))); err != nil {
		return err
	}

	vel := clampMIDI(ev.Velocity)
	for _, p := range ev.Pitches {
		s.sink.NoteOn(s.channel, clampMIDI(p), vel)
	}

	holdErr := sleepFor(ctx, secs(ev.Duration))

	// Note-offs go out even when the hold was cancelled.
	for _, p := range ev.Pitches {
		s.sink.NoteOff(s.channel, clampMIDI(p))
	}
	return holdErr
}

func clampMIDI(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	return sleepFor(ctx, time.Until(deadline))
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
