package jam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/logicmoo/llmjam/audio"
	"github.com/logicmoo/llmjam/clock"
	"github.com/logicmoo/llmjam/debug"
	"github.com/logicmoo/llmjam/music"
	"github.com/logicmoo/llmjam/pitch"
)

// Phase is where the session currently is in its call-and-response round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseThinking
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseListening:
		return "listening"
	case PhaseThinking:
		return "thinking"
	case PhasePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Responder streams a musical answer to a phrase. Implemented by llm.Client.
type Responder interface {
	StreamResponse(ctx context.Context, input []music.NoteEvent, style string, bpm float64) (<-chan music.NoteEvent, <-chan error)
}

// Status is a snapshot for the control surface.
type Status struct {
	Phase      Phase
	BPM        float64
	Style      string
	Round      int
	InputNotes int // notes detected in the last captured phrase
}

// Session runs the jam: metronome keeping time, and round after round of
// capture, segment, model response, and synchronized playback. Tempo and
// style may change at any time from the control surface; tempo takes effect
// at the start of the next round.
type Session struct {
	Clock *clock.Clock

	metro     *Metronome
	sched     *Scheduler
	estimator pitch.Estimator
	responder Responder
	source    audio.Source
	gate      audio.Gate
	sink      Sink

	mu         sync.Mutex
	style      string
	pendingBPM float64
	phase      Phase
	round      int
	inputNotes int

	// UpdateChan gets a (coalesced) signal whenever status changes.
	UpdateChan chan struct{}
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Clock     *clock.Clock
	Sink      Sink
	Estimator pitch.Estimator
	Responder Responder
	Source    audio.Source
	Gate      audio.Gate
	Style     string
}

// NewSession builds a session with its metronome and scheduler.
func NewSession(cfg SessionConfig) *Session {
	metro := NewMetronome(cfg.Clock, cfg.Sink)
	return &Session{
		Clock:      cfg.Clock,
		metro:      metro,
		sched:      NewScheduler(cfg.Clock, metro, cfg.Sink),
		estimator:  cfg.Estimator,
		responder:  cfg.Responder,
		source:     cfg.Source,
		gate:       cfg.Gate,
		sink:       cfg.Sink,
		style:      cfg.Style,
		UpdateChan: make(chan struct{}, 1),
	}
}

// Style returns the current playing style.
func (s *Session) Style() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SetStyle changes the playing style; it is picked up by the next round's
// prompt.
func (s *Session) SetStyle(style string) {
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
	debug.Log("session", "style set to %q", style)
	s.notify()
}

// SetBPM queues a tempo change; it is applied at the start of the next
// round so a scheduling decision mid-round never sees it.
func (s *Session) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be > 0, got %v", bpm)
	}
	s.mu.Lock()
	s.pendingBPM = bpm
	s.mu.Unlock()
	s.notify()
	return nil
}

// Status returns a consistent snapshot for the control surface.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	bpm := s.Clock.BPM()
	if s.pendingBPM > 0 {
		bpm = s.pendingBPM
	}
	return Status{
		Phase:      s.phase,
		BPM:        bpm,
		Style:      s.style,
		Round:      s.round,
		InputNotes: s.inputNotes,
	}
}

// Run drives the session until the context is cancelled. On exit the
// metronome is stopped and the playback channel silenced, so an interrupt
// never leaves dangling note-ons.
func (s *Session) Run(ctx context.Context) error {
	s.metro.Start()
	defer func() {
		s.metro.Stop()
		s.sink.AllNotesOff(PlaybackChannel)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.applyPendingBPM()
		s.startRound()

		notes, err := s.capturePhrase(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			debug.Log("session", "capture failed, retrying: %v", err)
			continue
		}
		if len(notes) == 0 {
			// Nothing above the thresholds: not an error, just try again.
			debug.Log("session", "no notes detected, try again")
			continue
		}
		s.setInputNotes(len(notes))
		debug.Log("session", "captured %d notes", len(notes))

		s.setPhase(PhaseThinking)
		events, errc := s.responder.StreamResponse(ctx, notes, s.Style(), s.Clock.BPM())

		s.setPhase(PhasePlaying)
		if err := s.sched.PlayStream(ctx, events); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if err := <-errc; err != nil {
			// Terminal for this round only; the loop starts a fresh one.
			debug.Log("session", "round failed: %v", err)
		}

		if err := sleepFor(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

// capturePhrase records one gated phrase and segments it into notes.
func (s *Session) capturePhrase(ctx context.Context) ([]music.NoteEvent, error) {
	s.setPhase(PhaseListening)
	seg := pitch.NewSegmenter()

	blocks := s.gate.CaptureBlocks(ctx, s.source)
	for block := range blocks {
		frames, err := s.estimator.Estimate(ctx, block.Samples)
		if err != nil {
			for range blocks {
				// unblock the capture goroutine
			}
			return nil, err
		}
		// Frame times come back block-relative; shift onto the phrase
		// timeline before segmenting.
		for i := range frames {
			frames[i].Time += block.Start
		}
		seg.ProcessBlock(frames)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return seg.Flush(), nil
}

func (s *Session) applyPendingBPM() {
	s.mu.Lock()
	bpm := s.pendingBPM
	s.pendingBPM = 0
	s.mu.Unlock()
	if bpm > 0 {
		s.Clock.SetBPM(bpm)
		debug.Log("session", "tempo now %.1f bpm", bpm)
	}
}

func (s *Session) startRound() {
	s.mu.Lock()
	s.round++
	s.inputNotes = 0
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setInputNotes(n int) {
	s.mu.Lock()
	s.inputNotes = n
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}
