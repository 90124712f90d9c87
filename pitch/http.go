package pitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEstimator talks to a pitch-model sidecar (e.g. a crepe server) over
// HTTP. One POST per audio block: samples in, parallel time/frequency/
// confidence arrays out. Frequencies are converted to MIDI note numbers
// before frames are handed back.
type HTTPEstimator struct {
	url        string
	sampleRate int
	client     *http.Client
}

// NewHTTPEstimator builds a client for the sidecar at url. The sample rate
// is validated here, before any audio is captured.
func NewHTTPEstimator(url string, sampleRate int) (*HTTPEstimator, error) {
	if err := ValidateRate(sampleRate); err != nil {
		return nil, err
	}
	return &HTTPEstimator{
		url:        url,
		sampleRate: sampleRate,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type estimateRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type estimateResponse struct {
	Time       []float64 `json:"time"`
	Frequency  []float64 `json:"frequency"`
	Confidence []float64 `json:"confidence"`
}

// Estimate posts one block of mono samples and returns its pitch frames.
func (e *HTTPEstimator) Estimate(ctx context.Context, samples []float32) ([]Frame, error) {
	body, err := json.Marshal(estimateRequest{Samples: samples, SampleRate: e.sampleRate})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pitch estimate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pitch estimate: %s: %s", resp.Status, msg)
	}

	var er estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("pitch estimate: decode: %w", err)
	}
	if len(er.Time) != len(er.Frequency) || len(er.Time) != len(er.Confidence) {
		return nil, fmt.Errorf("pitch estimate: ragged response (%d/%d/%d)",
			len(er.Time), len(er.Frequency), len(er.Confidence))
	}

	frames := make([]Frame, len(er.Time))
	for i := range er.Time {
		frames[i] = Frame{
			Time:       er.Time[i],
			Pitch:      HzToMIDI(er.Frequency[i]),
			Confidence: er.Confidence[i],
		}
	}
	return frames, nil
}
