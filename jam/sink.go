// Package jam is the performance runtime: the metronome that keeps time, the
// scheduler that plays note events against it, and the session loop that
// drives capture, the model round-trip, and playback.
package jam

// Sink is where note on/off messages go. Satisfied by midi.Out; tests use a
// recording fake.
type Sink interface {
	NoteOn(ch, note, vel uint8) error
	NoteOff(ch, note uint8) error
	Trigger(ch, note, vel uint8) error
	AllNotesOff(ch uint8) error
}

// MIDI channels (0-based): melodic playback on 1, percussion on the GM drum
// channel.
const (
	PlaybackChannel uint8 = 0
	DrumChannel     uint8 = 9
)

// GM percussion notes for the metronome.
const (
	drumKick      uint8 = 36
	drumSnare     uint8 = 38
	drumClosedHat uint8 = 42
)
