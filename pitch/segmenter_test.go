package pitch

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/logicmoo/llmjam/music"
)

// framesAt builds a frame sequence on a 10ms grid from (pitch, confidence)
// pairs. pitch < 0 means an unvoiced frame.
func framesAt(step float64, pcs ...[2]float64) []Frame {
	frames := make([]Frame, len(pcs))
	for i, pc := range pcs {
		frames[i] = Frame{Time: float64(i) * step, Pitch: pc[0], Confidence: pc[1]}
	}
	return frames
}

func sustained(pitch float64, n int) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{pitch, 0.9}
	}
	return out
}

func silence(n int) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{0, 0.05}
	}
	return out
}

func concat(seqs ...[][2]float64) [][2]float64 {
	var out [][2]float64
	for _, s := range seqs {
		out = append(out, s...)
	}
	return out
}

func TestSegmenterSingleNote(t *testing.T) {
	frames := framesAt(0.01, concat(sustained(60.2, 30), silence(5))...)

	s := NewSegmenter()
	s.ProcessBlock(frames)
	notes := s.Flush()

	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	n := notes[0]
	if n.Pitches[0] != 60 {
		t.Errorf("pitch = %d, want 60 (rounded at commit)", n.Pitches[0])
	}
	if n.Start != 0 {
		t.Errorf("start = %v, want 0", n.Start)
	}
	if math.Abs(n.Duration-0.30) > 1e-9 {
		t.Errorf("duration = %v, want 0.30", n.Duration)
	}
	if n.Velocity != music.DefaultVelocity {
		t.Errorf("velocity = %d, want default %d", n.Velocity, music.DefaultVelocity)
	}
}

func TestSegmenterPitchChange(t *testing.T) {
	// 60 for 200ms, jump to 64 for 200ms, then silence: two notes.
	frames := framesAt(0.01, concat(sustained(60, 20), sustained(64, 20), silence(5))...)

	s := NewSegmenter()
	s.ProcessBlock(frames)
	notes := s.Flush()

	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2: %+v", len(notes), notes)
	}
	if notes[0].Pitches[0] != 60 || notes[1].Pitches[0] != 64 {
		t.Errorf("pitches = %d, %d", notes[0].Pitches[0], notes[1].Pitches[0])
	}
	if notes[1].Start != 0.20 {
		t.Errorf("second onset = %v, want 0.20", notes[1].Start)
	}
}

func TestSegmenterWobbleTolerance(t *testing.T) {
	// Drift within half a semitone is one note; the commit keeps the pitch
	// that opened it.
	pcs := concat(sustained(60.0, 10), sustained(60.4, 10), sustained(59.8, 10), silence(5))
	s := NewSegmenter()
	s.ProcessBlock(framesAt(0.01, pcs...))
	notes := s.Flush()

	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1: %+v", len(notes), notes)
	}
	if notes[0].Pitches[0] != 60 {
		t.Errorf("pitch = %d, want 60", notes[0].Pitches[0])
	}
}

func TestSegmenterThresholdBoundary(t *testing.T) {
	s := NewSegmenter(WithConfidenceThreshold(0.3), WithMinNoteDuration(0.05))

	// Confidence exactly at the threshold is voiced; epsilon below is not.
	frames := []Frame{
		{Time: 0.00, Pitch: 60, Confidence: 0.3},
		{Time: 0.05, Pitch: 60, Confidence: 0.3},
		{Time: 0.10, Pitch: 60, Confidence: 0.29999},
	}
	s.ProcessBlock(frames)
	notes := s.Flush()

	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if notes[0].Duration != 0.10 {
		t.Errorf("duration = %v, want 0.10", notes[0].Duration)
	}
}

func TestSegmenterPitchRangeGate(t *testing.T) {
	// Confident frames outside 0..127 are unvoiced.
	frames := []Frame{
		{Time: 0.0, Pitch: 140, Confidence: 0.9},
		{Time: 0.1, Pitch: -3, Confidence: 0.9},
	}
	s := NewSegmenter()
	s.ProcessBlock(frames)
	if notes := s.Flush(); len(notes) != 0 {
		t.Errorf("got %+v, want none", notes)
	}
}

func TestSegmenterMinDurationFilter(t *testing.T) {
	s := NewSegmenter(WithMinNoteDuration(0.125))

	// First note is shorter than the minimum: dropped. Second lasts exactly
	// the minimum: kept. Times are binary fractions so the comparisons are
	// exact.
	frames := []Frame{
		{Time: 0.0, Pitch: 60, Confidence: 0.9},
		{Time: 0.0625, Pitch: 60, Confidence: 0.9},
		{Time: 0.109375, Pitch: 0, Confidence: 0.0}, // closes at 0.109375 < 0.125

		{Time: 0.5, Pitch: 72, Confidence: 0.9},
		{Time: 0.5625, Pitch: 72, Confidence: 0.9},
		{Time: 0.625, Pitch: 0, Confidence: 0.0}, // closes at exactly 0.125
	}
	s.ProcessBlock(frames)
	notes := s.Flush()

	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1: %+v", len(notes), notes)
	}
	if notes[0].Pitches[0] != 72 {
		t.Errorf("kept pitch = %d, want 72", notes[0].Pitches[0])
	}
	if notes[0].Duration != 0.125 {
		t.Errorf("duration = %v, want exactly 0.125", notes[0].Duration)
	}
}

func TestSegmenterFlushClosesActiveNote(t *testing.T) {
	// Signal ends while a note is still sounding: Flush closes it at the
	// last frame time.
	s := NewSegmenter()
	s.ProcessBlock(framesAt(0.01, sustained(65, 25)...))
	notes := s.Flush()

	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if math.Abs(notes[0].Duration-0.24) > 1e-9 {
		t.Errorf("duration = %v, want 0.24 (to last frame)", notes[0].Duration)
	}

	// Idempotent.
	again := s.Flush()
	if !reflect.DeepEqual(notes, again) {
		t.Errorf("second Flush differs: %+v vs %+v", notes, again)
	}
}

func TestSegmenterEmptyInput(t *testing.T) {
	s := NewSegmenter()
	s.ProcessBlock(nil)
	if notes := s.Flush(); len(notes) != 0 {
		t.Errorf("got %+v, want none", notes)
	}
}

func TestSegmenterChunkingInvariance(t *testing.T) {
	// A realistic phrase: notes, silences, a short blip under the minimum
	// duration, pitch wobble, and an unterminated final note.
	pcs := concat(
		silence(8),
		sustained(60.1, 22),
		sustained(60.4, 6),
		silence(12),
		sustained(67.2, 4), // too short, dropped
		silence(4),
		sustained(64.0, 35),
		sustained(71.9, 18),
		silence(9),
		sustained(55.6, 14), // still open at end of signal
	)
	frames := framesAt(0.01, pcs...)

	whole := NewSegmenter()
	whole.ProcessBlock(frames)
	want := whole.Flush()
	if len(want) == 0 {
		t.Fatal("reference run produced no notes")
	}

	t.Run("fixed chunk sizes", func(t *testing.T) {
		for _, size := range []int{1, 3, 7, 16, 50, len(frames)} {
			s := NewSegmenter()
			for i := 0; i < len(frames); i += size {
				end := i + size
				if end > len(frames) {
					end = len(frames)
				}
				s.ProcessBlock(frames[i:end])
			}
			if got := s.Flush(); !reflect.DeepEqual(got, want) {
				t.Errorf("chunk size %d: got %+v, want %+v", size, got, want)
			}
		}
	})

	t.Run("random splits", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for trial := 0; trial < 50; trial++ {
			s := NewSegmenter()
			i := 0
			for i < len(frames) {
				end := i + 1 + rng.Intn(20)
				if end > len(frames) {
					end = len(frames)
				}
				s.ProcessBlock(frames[i:end])
				i = end
			}
			if got := s.Flush(); !reflect.DeepEqual(got, want) {
				t.Fatalf("trial %d: got %+v, want %+v", trial, got, want)
			}
		}
	})
}

func TestHzToMIDI(t *testing.T) {
	cases := []struct {
		hz   float64
		want float64
	}{
		{440, 69},
		{220, 57},
		{880, 81},
		{261.6255653, 60},
	}
	for _, tc := range cases {
		if got := HzToMIDI(tc.hz); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("HzToMIDI(%v) = %v, want %v", tc.hz, got, tc.want)
		}
	}
}

func TestValidateRate(t *testing.T) {
	if err := ValidateRate(44100); err != nil {
		t.Errorf("44100 should be supported: %v", err)
	}
	if err := ValidateRate(16000); err != nil {
		t.Errorf("16000 should be supported: %v", err)
	}
	if err := ValidateRate(48000); err == nil {
		t.Error("48000 should be rejected")
	}
}
