package pitch

import (
	"math"

	"github.com/logicmoo/llmjam/music"
)

// Segmentation defaults, tuned for the pitch model's 10ms frame step.
const (
	DefaultConfidenceThreshold = 0.3
	DefaultMinNoteDuration     = 0.1 // seconds
)

// wobbleTolerance is how far (in semitones) the pitch may drift before we
// treat it as a new note rather than vibrato on the current one.
const wobbleTolerance = 0.5

// Segmenter converts a continuous stream of pitch frames into discrete note
// events. Frames may arrive in any number of consecutive blocks; the open
// note is carried across block boundaries so chunked processing produces
// exactly the same events as a single whole-signal pass.
type Segmenter struct {
	threshold float64
	minDur    float64

	notes []music.NoteEvent

	// open-note state, carried across ProcessBlock calls
	activePitch float64
	activeOnset float64
	active      bool
	lastSeen    float64

	flushed bool
}

// SegmenterOption adjusts segmentation parameters.
type SegmenterOption func(*Segmenter)

// WithConfidenceThreshold sets the voiced/unvoiced confidence cutoff.
// A frame exactly at the threshold counts as voiced.
func WithConfidenceThreshold(t float64) SegmenterOption {
	return func(s *Segmenter) { s.threshold = t }
}

// WithMinNoteDuration sets the shortest note that will be committed.
func WithMinNoteDuration(d float64) SegmenterOption {
	return func(s *Segmenter) { s.minDur = d }
}

// NewSegmenter creates a segmenter with the default thresholds.
func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		threshold: DefaultConfidenceThreshold,
		minDur:    DefaultMinNoteDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessBlock walks one block of frames in time order and commits any notes
// that end inside it. Frames must carry absolute capture times and blocks
// must arrive in order.
func (s *Segmenter) ProcessBlock(frames []Frame) {
	for _, f := range frames {
		voiced := f.Confidence >= s.threshold && f.Pitch >= 0 && f.Pitch <= 127

		switch {
		case voiced && !s.active:
			s.activePitch = f.Pitch
			s.activeOnset = f.Time
			s.active = true

		case voiced && s.active:
			if math.Abs(f.Pitch-s.activePitch) > wobbleTolerance {
				// new note
				s.commit(f.Time)
				s.activePitch = f.Pitch
				s.activeOnset = f.Time
				s.active = true
			}
			// within tolerance: continuation, pitch wobble is kept on the
			// note that opened it

		case !voiced && s.active:
			s.commit(f.Time)
		}

		s.lastSeen = f.Time
	}
}

// commit closes the active note at endTime, keeping it only if it lasted at
// least the minimum duration. Pitch is rounded to a whole note number here
// and nowhere earlier.
func (s *Segmenter) commit(endTime float64) {
	if !s.active {
		return
	}
	dur := endTime - s.activeOnset
	if dur >= s.minDur {
		s.notes = append(s.notes, music.NoteEvent{
			Pitches:  []int{int(math.Round(s.activePitch))},
			Velocity: music.DefaultVelocity,
			Start:    s.activeOnset,
			Duration: dur,
		})
	}
	s.active = false
}

// Flush closes any still-open note at the last frame time seen and returns
// the accumulated, time-ordered events. Idempotent: repeated calls return
// the same sequence.
func (s *Segmenter) Flush() []music.NoteEvent {
	if !s.flushed {
		s.commit(s.lastSeen)
		s.flushed = true
	}
	out := make([]music.NoteEvent, len(s.notes))
	copy(out, s.notes)
	return out
}
