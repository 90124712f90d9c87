package audio

import (
	"context"
	"math"
	"testing"
)

// scriptSource replays a fixed sequence of block levels: each entry is the
// amplitude of a constant-valued block.
type scriptSource struct {
	levels []float32
	pos    int
}

func (s *scriptSource) ReadBlock(buf []float32) error {
	var level float32
	if s.pos < len(s.levels) {
		level = s.levels[s.pos]
		s.pos++
	}
	for i := range buf {
		buf[i] = level
	}
	return nil
}

func collect(t *testing.T, g Gate, src Source) []Block {
	t.Helper()
	var blocks []Block
	for b := range g.CaptureBlocks(context.Background(), src) {
		blocks = append(blocks, b)
	}
	return blocks
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v", got)
	}
	if got := RMS([]float32{0.5, 0.5, 0.5, 0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
	if got := RMS([]float32{-0.3, 0.3}); math.Abs(got-0.3) > 1e-7 {
		t.Errorf("RMS = %v, want 0.3", got)
	}
}

func TestGateWaitsForSound(t *testing.T) {
	g := Gate{SampleRate: 1000, BlockSize: 100, Threshold: 0.01, SilenceDuration: 0.2, MaxRecord: 2.0}

	// 4 silent blocks, 3 loud, then silence: leading silence is not
	// captured, capture runs from the first loud block through the silence
	// run that closes the gate (0.2s = 2 blocks).
	src := &scriptSource{levels: []float32{0, 0, 0, 0, 0.5, 0.5, 0.5, 0, 0, 0, 0}}
	blocks := collect(t, g, src)

	if len(blocks) != 5 { // 3 loud + 2 closing silence
		t.Fatalf("got %d blocks, want 5", len(blocks))
	}
	if blocks[0].Samples[0] != 0.5 {
		t.Errorf("first captured block should be the loud one")
	}
	if blocks[0].Start != 0 {
		t.Errorf("first block start = %v, want 0", blocks[0].Start)
	}
	if got, want := blocks[1].Start, 0.1; math.Abs(got-want) > 1e-9 {
		t.Errorf("second block start = %v, want %v", got, want)
	}
}

func TestGateSilenceRunResets(t *testing.T) {
	g := Gate{SampleRate: 1000, BlockSize: 100, Threshold: 0.01, SilenceDuration: 0.3, MaxRecord: 5.0}

	// A single quiet block inside the phrase must not close the gate
	// (needs 3 consecutive).
	src := &scriptSource{levels: []float32{0.5, 0, 0.5, 0, 0, 0, 0}}
	blocks := collect(t, g, src)

	if len(blocks) != 6 {
		t.Fatalf("got %d blocks, want 6", len(blocks))
	}
}

func TestGateMaxRecordCap(t *testing.T) {
	g := Gate{SampleRate: 1000, BlockSize: 100, Threshold: 0.01, SilenceDuration: 1.0, MaxRecord: 0.5}

	// Constant loud signal: the cap (5 blocks of monitoring) ends capture.
	src := &scriptSource{levels: []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}}
	blocks := collect(t, g, src)

	if len(blocks) != 5 {
		t.Fatalf("got %d blocks, want 5 (max record cap)", len(blocks))
	}
}

func TestGateNoSound(t *testing.T) {
	g := Gate{SampleRate: 1000, BlockSize: 100, Threshold: 0.01, SilenceDuration: 0.2, MaxRecord: 0.5}
	src := &scriptSource{levels: []float32{0, 0, 0, 0, 0}}
	if blocks := collect(t, g, src); len(blocks) != 0 {
		t.Errorf("silence should capture nothing, got %d blocks", len(blocks))
	}
}

func TestGateCancel(t *testing.T) {
	g := Gate{SampleRate: 1000, BlockSize: 100, Threshold: 0.01, SilenceDuration: 1.0, MaxRecord: 10.0}
	src := &scriptSource{levels: make([]float32, 0)} // endless zero blocks

	ctx, cancel := context.WithCancel(context.Background())
	ch := g.CaptureBlocks(ctx, src)
	cancel()

	// Channel must close promptly after cancellation.
	for range ch {
	}
}
