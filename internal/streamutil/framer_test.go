package streamutil

import (
	"io"
	"strings"
	"testing"

	"github.com/bridgekit/llm-bridge/internal/translator"
)

func collectFrames(t *testing.T, f *Framer) []string {
	t.Helper()
	var out []string
	for {
		payload, err := f.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(payload))
	}
}

func TestFramerStandardEvents(t *testing.T) {
	stream := "data: {\"a\":1}\n\n" +
		"event: message_delta\ndata: {\"b\":2}\n\n" +
		": keep-alive comment\n\n" +
		"data: [DONE]\n\n"
	f := NewFramer(strings.NewReader(stream), translator.StreamSSEStandard)
	frames := collectFrames(t, f)
	if len(frames) != 3 {
		t.Fatalf("frames = %d: %q", len(frames), frames)
	}
	if frames[0] != `{"a":1}` {
		t.Fatalf("frame 0 = %q", frames[0])
	}
	if frames[1] != `{"b":2}` {
		t.Fatalf("event line must be dropped, frame 1 = %q", frames[1])
	}
	if !IsDone([]byte(frames[2])) {
		t.Fatalf("frame 2 = %q", frames[2])
	}
}

func TestFramerJoinsMultiLineData(t *testing.T) {
	stream := "data: line one\ndata: line two\n\n"
	f := NewFramer(strings.NewReader(stream), translator.StreamSSEStandard)
	frames := collectFrames(t, f)
	if len(frames) != 1 || frames[0] != "line one\nline two" {
		t.Fatalf("frames = %q", frames)
	}
}

func TestFramerCRLFAndTrailingEvent(t *testing.T) {
	// CRLF line endings and a final event without a trailing blank line.
	stream := "data: {\"a\":1}\r\n\r\ndata: {\"b\":2}"
	f := NewFramer(strings.NewReader(stream), translator.StreamSSEStandard)
	frames := collectFrames(t, f)
	if len(frames) != 2 {
		t.Fatalf("frames = %d: %q", len(frames), frames)
	}
	if frames[1] != `{"b":2}` {
		t.Fatalf("unterminated final event lost: %q", frames[1])
	}
}

func TestFramerLineDelimited(t *testing.T) {
	stream := "{\"a\":1}\n\ndata: {\"b\":2}\n{\"c\":3}\n"
	f := NewFramer(strings.NewReader(stream), translator.StreamSSELineDelimited)
	frames := collectFrames(t, f)
	if len(frames) != 3 {
		t.Fatalf("frames = %d: %q", len(frames), frames)
	}
	if frames[1] != `{"b":2}` {
		t.Fatalf("data prefix must strip in line mode too: %q", frames[1])
	}
	if frames[2] != `{"c":3}` {
		t.Fatalf("frame 2 = %q", frames[2])
	}
}

func TestIsDone(t *testing.T) {
	if !IsDone([]byte("[DONE]")) || !IsDone([]byte(" [DONE] ")) {
		t.Fatal("terminator not recognized")
	}
	if IsDone([]byte(`{"done":true}`)) {
		t.Fatal("JSON payload mistaken for terminator")
	}
}
