// Package audio captures the player's phrase: it waits for the input signal
// to rise above an RMS threshold, then streams fixed-size blocks until a run
// of silence ends the phrase. The actual device is behind the Source
// interface so the gate logic is independent of portaudio.
package audio

import (
	"context"
	"math"

	"github.com/logicmoo/llmjam/debug"
)

// Source delivers blocks of mono float32 samples. ReadBlock blocks until
// len(buf) samples are available.
type Source interface {
	ReadBlock(buf []float32) error
}

// Block is one captured audio block. Start is the block's offset in seconds
// from the beginning of the recorded phrase.
type Block struct {
	Samples []float32
	Start   float64
}

// Gate holds the capture thresholds.
type Gate struct {
	SampleRate      int
	BlockSize       int
	Threshold       float64 // RMS level that opens the gate
	SilenceDuration float64 // seconds of continuous silence that closes it
	MaxRecord       float64 // hard cap on total monitoring time
}

// DefaultGate returns the standard capture configuration for a sample rate
// and block size.
func DefaultGate(sampleRate, blockSize int) Gate {
	return Gate{
		SampleRate:      sampleRate,
		BlockSize:       blockSize,
		Threshold:       0.01,
		SilenceDuration: 0.5,
		MaxRecord:       30.0,
	}
}

// RMS returns the root-mean-square level of a block.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// CaptureBlocks waits for sound, then sends each block as it is recorded
// until the silence run or the recording cap ends the phrase. The channel is
// closed when capture finishes; cancellation via ctx also ends it. Block
// start times count from the first sounding block.
func (g Gate) CaptureBlocks(ctx context.Context, src Source) <-chan Block {
	out := make(chan Block)

	blockDur := float64(g.BlockSize) / float64(g.SampleRate)
	silenceNeeded := int(g.SilenceDuration * float64(g.SampleRate) / float64(g.BlockSize))
	maxBlocks := int(g.MaxRecord * float64(g.SampleRate) / float64(g.BlockSize))

	go func() {
		defer close(out)

		recording := false
		silenceRun := 0
		yielded := 0

		for i := 0; i < maxBlocks; i++ {
			if ctx.Err() != nil {
				return
			}

			buf := make([]float32, g.BlockSize)
			if err := src.ReadBlock(buf); err != nil {
				debug.Log("audio", "read: %v", err)
				return
			}
			level := RMS(buf)

			if !recording {
				if level > g.Threshold {
					debug.Log("audio", "sound detected (rms=%.4f), recording", level)
					recording = true
					silenceRun = 0
					if !send(ctx, out, Block{Samples: buf, Start: float64(yielded) * blockDur}) {
						return
					}
					yielded++
				}
				continue
			}

			if !send(ctx, out, Block{Samples: buf, Start: float64(yielded) * blockDur}) {
				return
			}
			yielded++

			if level < g.Threshold {
				silenceRun++
				if silenceRun >= silenceNeeded {
					debug.Log("audio", "%.1fs of silence, phrase ended after %d blocks",
						g.SilenceDuration, yielded)
					return
				}
			} else {
				silenceRun = 0
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- Block, b Block) bool {
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}
