package jam

import (
	"sync"
	"time"
)

// recordSink captures every message with its arrival time.
type sinkMsg struct {
	kind string // "on", "off", "trig", "panic"
	ch   uint8
	note uint8
	vel  uint8
	at   time.Time
}

type recordSink struct {
	mu   sync.Mutex
	msgs []sinkMsg
}

func (r *recordSink) record(kind string, ch, note, vel uint8) {
	r.mu.Lock()
	r.msgs = append(r.msgs, sinkMsg{kind: kind, ch: ch, note: note, vel: vel, at: time.Now()})
	r.mu.Unlock()
}

func (r *recordSink) NoteOn(ch, note, vel uint8) error  { r.record("on", ch, note, vel); return nil }
func (r *recordSink) NoteOff(ch, note uint8) error      { r.record("off", ch, note, 0); return nil }
func (r *recordSink) Trigger(ch, note, vel uint8) error { r.record("trig", ch, note, vel); return nil }
func (r *recordSink) AllNotesOff(ch uint8) error        { r.record("panic", ch, 0, 0); return nil }

func (r *recordSink) snapshot() []sinkMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sinkMsg, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recordSink) byKind(kind string) []sinkMsg {
	var out []sinkMsg
	for _, m := range r.snapshot() {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}
