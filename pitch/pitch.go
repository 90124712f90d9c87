// Package pitch turns the external pitch model's per-frame output into
// discrete note events. The model itself is a black box reached through the
// Estimator interface; this package owns the frame data model, the Hz to
// MIDI conversion, and the streaming segmenter.
package pitch

import (
	"context"
	"fmt"
	"math"
)

// Frame is one timestamped sample from the pitch estimator. Pitch is a
// fractional MIDI note number, Confidence is 0..1. Time is absolute within
// the capture (the caller offsets block-relative times).
type Frame struct {
	Time       float64
	Pitch      float64
	Confidence float64
}

// SupportedRates are the sample rates the pitch model accepts.
var SupportedRates = []int{16000, 44100}

// ValidateRate rejects sample rates the pitch model can't process. Called
// before any capture begins so a bad configuration fails fast.
func ValidateRate(rate int) error {
	for _, r := range SupportedRates {
		if rate == r {
			return nil
		}
	}
	return fmt.Errorf("unsupported sample rate %d Hz (supported: %v)", rate, SupportedRates)
}

// HzToMIDI converts a frequency in Hz to a fractional MIDI note number.
func HzToMIDI(f float64) float64 {
	return 69 + 12*math.Log2(f/440.0)
}

// Estimator produces pitch frames for a block of mono samples. Frame times
// are relative to the start of the block.
type Estimator interface {
	Estimate(ctx context.Context, samples []float32) ([]Frame, error)
}
