// Package llm streams a musical answer from an OpenAI-compatible chat
// endpoint. The input phrase goes out CSV-encoded in the user message; the
// reply comes back token by token and is decoded into note events as each
// line completes, so playback can begin before the model has finished.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/logicmoo/llmjam/debug"
	"github.com/logicmoo/llmjam/music"
)

const (
	defaultModel      = "gpt-4o-mini"
	streamMaxTokens   = 512
	streamTemperature = 0.75
)

const systemPromptTemplate = `<playing_style_or_character>%s</playing_style_or_character>
<activity>Call and response between two musicians</activity>
<velocity>humanize</velocity>

<answer_format>
A compact CSV list of note events.
Each event is a line: notes,velocity,start_time,duration.
notes can be a single MIDI note (0-127) or a chord of '|'-separated notes (e.g., 60|64|67).
velocity (0-127), start_time (seconds), duration (seconds).
Only output the CSV, no extra text.
Example (C major chord, then E):
60|64|67,100,0.0,0.5
64,90,0.5,0.5

There is a 4/4 drum beat in %g bpm playing.
</answer_format>

Given a melody as a list of MIDI note events, respond with a new melody.`

// Client talks to one chat-completion endpoint.
type Client struct {
	oai   openai.Client
	model string
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey  string
	baseURL string
	model   string
}

// WithAPIKey overrides the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) { c.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible provider such as
// OpenRouter or a local server.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithModel selects the model.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// New builds a Client. The API key falls back to OPENAI_API_KEY.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		apiKey: os.Getenv("OPENAI_API_KEY"),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.apiKey == "" {
		return nil, fmt.Errorf("no API key: set OPENAI_API_KEY or pass WithAPIKey")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Client{oai: openai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// StreamResponse sends the phrase and decodes the streamed reply. Events
// appear on the returned channel as soon as their line completes; the error
// channel reports a mid-stream failure after the event channel closes. Both
// channels close when the round is over.
func (c *Client) StreamResponse(ctx context.Context, input []music.NoteEvent, style string, bpm float64) (<-chan music.NoteEvent, <-chan error) {
	events := make(chan music.NoteEvent, 16)
	errc := make(chan error, 1)

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptTemplate, style, bpm)),
			openai.UserMessage("Input melody (as CSV):\n" + music.EncodeCSV(input)),
		},
		MaxTokens:   param.NewOpt(int64(streamMaxTokens)),
		Temperature: param.NewOpt(streamTemperature),
	}

	go func() {
		defer close(errc)
		defer close(events)

		stream := c.oai.Chat.Completions.NewStreaming(ctx, params)
		if err := relay(ctx, &oaiFragments{stream: stream}, events); err != nil {
			errc <- err
		}
	}()

	return events, errc
}

// fragmentStream is the subset of a streaming completion the relay needs:
// successive text deltas and the terminal error, if any.
type fragmentStream interface {
	Next() bool
	Current() string
	Err() error
}

// relay feeds deltas through a streaming decoder and pushes each completed
// event out. A malformed line is the decoder's problem (dropped, logged); a
// transport failure is terminal for this round only.
func relay(ctx context.Context, fs fragmentStream, events chan<- music.NoteEvent) error {
	dec := music.NewDecoder()
	defer dec.Close()

	for fs.Next() {
		frag := fs.Current()
		if frag == "" {
			continue
		}
		for _, ev := range dec.Feed(frag) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := fs.Err(); err != nil {
		debug.Log("llm", "stream failed: %v", err)
		return fmt.Errorf("response stream: %w", err)
	}
	return nil
}

// oaiFragments adapts the openai-go SSE stream to fragmentStream, skipping
// chunks without a text delta.
type oaiFragments struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	cur    string
}

func (f *oaiFragments) Next() bool {
	for f.stream.Next() {
		chunk := f.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		f.cur = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (f *oaiFragments) Current() string { return f.cur }

func (f *oaiFragments) Err() error { return f.stream.Err() }
