package music

import (
	"strings"

	"github.com/logicmoo/llmjam/debug"
)

// Decoder incrementally parses a streamed text reply into NoteEvents. Text
// arrives in arbitrary fragments (token granularity is up to the model); the
// decoder buffers until a newline completes a line, parses it, and holds any
// trailing partial for the next Feed. A line is never parsed before its
// newline arrives, so a field split across fragments can't cause a spurious
// drop.
type Decoder struct {
	pending strings.Builder
	closed  bool
}

// NewDecoder creates a streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a fragment and returns the events for every line it
// completed. Malformed lines are dropped; a corrupt line never aborts the
// stream.
func (d *Decoder) Feed(fragment string) []NoteEvent {
	if d.closed || fragment == "" {
		return nil
	}
	d.pending.WriteString(fragment)

	buf := d.pending.String()
	if !strings.Contains(buf, "\n") {
		return nil
	}

	var events []NoteEvent
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(buf[:i])
		buf = buf[i+1:]
		if line == "" {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			debug.Log("decode", "dropping line %q: %v", line, err)
			continue
		}
		events = append(events, ev)
	}

	d.pending.Reset()
	d.pending.WriteString(buf)
	return events
}

// Close marks end of stream. An unterminated trailing partial line is
// discarded, not parsed.
func (d *Decoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if p := strings.TrimSpace(d.pending.String()); p != "" {
		debug.Log("decode", "discarding unterminated partial %q", p)
	}
	d.pending.Reset()
}
