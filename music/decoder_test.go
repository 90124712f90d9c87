package music

import (
	"reflect"
	"testing"
)

func wantTwoEvents(t *testing.T, got []NoteEvent) {
	t.Helper()
	want := []NoteEvent{
		{Pitches: []int{60, 64, 67}, Velocity: 100, Start: 0, Duration: 0.5},
		{Pitches: []int{64}, Velocity: 90, Start: 0.5, Duration: 0.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecoderFragmentSplits(t *testing.T) {
	const text = "60|64|67,100,0.0,0.5\n64,90,0.5,0.5\n"

	// Any split of the same text must decode to the same events, including
	// splits in the middle of a field or right at a separator.
	for i := 0; i <= len(text); i++ {
		d := NewDecoder()
		var got []NoteEvent
		got = append(got, d.Feed(text[:i])...)
		got = append(got, d.Feed(text[i:])...)
		d.Close()
		wantTwoEvents(t, got)
	}
}

func TestDecoderTokenSizedFragments(t *testing.T) {
	const text = "60|64|67,100,0.0,0.5\n64,90,0.5,0.5\n"
	d := NewDecoder()
	var got []NoteEvent
	for _, r := range text {
		got = append(got, d.Feed(string(r))...)
	}
	d.Close()
	wantTwoEvents(t, got)
}

func TestDecoderDropsMalformedLine(t *testing.T) {
	d := NewDecoder()
	if got := d.Feed("60,100,0.0\n"); len(got) != 0 {
		t.Errorf("wrong field count should yield no events, got %+v", got)
	}

	// Decoding continues on the next line.
	got := d.Feed("not,a,note,event\n72,100,0.0,0.25\n")
	if len(got) != 1 || got[0].Pitches[0] != 72 {
		t.Errorf("got %+v, want one event for note 72", got)
	}
}

func TestDecoderDropsOutOfRangeLines(t *testing.T) {
	d := NewDecoder()
	got := d.Feed("200,500,0.0,-1\n64,90,0.5,0.5\n")
	if len(got) != 1 || got[0].Pitches[0] != 64 {
		t.Errorf("got %+v, want only the in-range event", got)
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	d := NewDecoder()
	got := d.Feed("\n\n60,100,0.0,0.5\n\n")
	if len(got) != 1 {
		t.Errorf("got %d events, want 1", len(got))
	}
}

func TestDecoderDiscardsTrailingPartial(t *testing.T) {
	d := NewDecoder()
	if got := d.Feed("60,100,0.0,0.5"); len(got) != 0 {
		t.Errorf("unterminated line must not emit, got %+v", got)
	}
	d.Close()
	if got := d.Feed("anything\n"); len(got) != 0 {
		t.Errorf("Feed after Close should emit nothing, got %+v", got)
	}
}
