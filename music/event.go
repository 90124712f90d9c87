// Package music defines the note-event data model and the line-oriented CSV
// wire format used both to describe a captured phrase to the model and to
// decode its streamed reply.
package music

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultVelocity is assigned at event creation by sources that don't
// derive a velocity of their own (the pitch segmenter).
const DefaultVelocity = 100

// NoteEvent is one discrete playable unit: one or more simultaneous MIDI
// notes, a velocity, a start time and a duration (both seconds, start
// relative to the phrase). Multiple pitches mean a chord whose notes go on
// and off together.
type NoteEvent struct {
	Pitches  []int
	Velocity int
	Start    float64
	Duration float64
}

// SortByStart orders events by start time, in place. Stable so simultaneous
// events keep their arrival order.
func SortByStart(events []NoteEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start < events[j].Start
	})
}

// Rebase shifts all starts so the earliest event begins at 0. Events must
// already be sorted by start time. This is the one mutation a batch sees
// after creation.
func Rebase(events []NoteEvent) {
	if len(events) == 0 {
		return
	}
	base := events[0].Start
	for i := range events {
		events[i].Start -= base
	}
}

// EncodeCSV renders events in the wire format, one per line:
// notes,velocity,start_time,duration with chords as |-joined note numbers.
func EncodeCSV(events []NoteEvent) string {
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		pitches := make([]string, len(e.Pitches))
		for j, p := range e.Pitches {
			pitches[j] = strconv.Itoa(p)
		}
		fmt.Fprintf(&b, "%s,%d,%g,%g", strings.Join(pitches, "|"), e.Velocity, e.Start, e.Duration)
	}
	return b.String()
}

// ParseLine parses one wire-format line into a NoteEvent. The field count is
// strict, and so are the ranges: notes and velocity 0..127, start_time >= 0,
// duration > 0. An out-of-range line is as malformed as a non-numeric one;
// nothing outside MIDI range enters the pipeline.
func ParseLine(line string) (NoteEvent, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 4 {
		return NoteEvent{}, fmt.Errorf("want 4 fields, got %d", len(parts))
	}

	var pitches []int
	for _, s := range strings.Split(parts[0], "|") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return NoteEvent{}, fmt.Errorf("bad note %q: %w", s, err)
		}
		if n < 0 || n > 127 {
			return NoteEvent{}, fmt.Errorf("note %d out of range", n)
		}
		pitches = append(pitches, n)
	}

	vel, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return NoteEvent{}, fmt.Errorf("bad velocity %q: %w", parts[1], err)
	}
	if vel < 0 || vel > 127 {
		return NoteEvent{}, fmt.Errorf("velocity %d out of range", vel)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return NoteEvent{}, fmt.Errorf("bad start_time %q: %w", parts[2], err)
	}
	if math.IsNaN(start) || start < 0 {
		return NoteEvent{}, fmt.Errorf("start_time %v out of range", start)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return NoteEvent{}, fmt.Errorf("bad duration %q: %w", parts[3], err)
	}
	if math.IsNaN(dur) || dur <= 0 {
		return NoteEvent{}, fmt.Errorf("duration %v out of range", dur)
	}

	return NoteEvent{Pitches: pitches, Velocity: vel, Start: start, Duration: dur}, nil
}
