package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource reads mono samples from the default input device.
type PortAudioSource struct {
	stream *portaudio.Stream
	buf    []float32
}

// OpenDefaultInput initializes portaudio and opens the default input device
// at the given rate and block size.
func OpenDefaultInput(sampleRate, blockSize int) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &PortAudioSource{buf: make([]float32, blockSize)}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), blockSize, s.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// ReadBlock fills buf with the next block of samples, blocking until the
// device has delivered them.
func (s *PortAudioSource) ReadBlock(buf []float32) error {
	if len(buf) != len(s.buf) {
		return fmt.Errorf("block size mismatch: want %d, got %d", len(s.buf), len(buf))
	}
	if err := s.stream.Read(); err != nil {
		return fmt.Errorf("read input stream: %w", err)
	}
	copy(buf, s.buf)
	return nil
}

// Close stops the stream and shuts portaudio down.
func (s *PortAudioSource) Close() error {
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
