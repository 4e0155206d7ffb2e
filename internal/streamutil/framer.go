// Package streamutil implements the streaming engine: SSE framing for the
// two framings the dialects use, and the per-stream parse/emit pipeline
// that moves frames through the IR.
package streamutil

import (
	"bufio"
	"bytes"
	"io"

	"github.com/bridgekit/llm-bridge/internal/translator"
)

// maxFrameSize bounds a single SSE event; oversized frames abort the
// stream rather than the process.
const maxFrameSize = 10 * 1024 * 1024

// Framer yields one event payload per call from a byte stream.
//
// For sse-standard framing, events are separated by blank lines, data lines
// are joined, and the "data:" prefix is stripped (any run of spaces after
// the colon tolerated). For sse-line-delimited framing every newline
// terminated line is its own payload.
type Framer struct {
	scanner *bufio.Scanner
	kind    translator.StreamParserKind
}

// NewFramer wraps r with the framing the dialect declares.
func NewFramer(r io.Reader, kind translator.StreamParserKind) *Framer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &Framer{scanner: scanner, kind: kind}
}

// Next returns the next event payload, or io.EOF when the stream ends.
// Empty events are skipped. The returned slice is valid until the next
// call.
func (f *Framer) Next() ([]byte, error) {
	if f.kind == translator.StreamSSELineDelimited {
		return f.nextLine()
	}
	return f.nextEvent()
}

func (f *Framer) nextLine() ([]byte, error) {
	for f.scanner.Scan() {
		line := bytes.TrimSpace(f.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return stripDataPrefix(line), nil
	}
	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// nextEvent collects lines until a blank line, joining multi-line data
// fields per the SSE spec.
func (f *Framer) nextEvent() ([]byte, error) {
	var data [][]byte
	sawLine := false
	for f.scanner.Scan() {
		line := f.scanner.Bytes()
		trimmed := bytes.TrimRight(line, "\r")
		if len(trimmed) == 0 {
			if sawLine && len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			sawLine = false
			data = data[:0]
			continue
		}
		sawLine = true
		if trimmed[0] == ':' || bytes.HasPrefix(trimmed, []byte("event:")) {
			continue
		}
		payload := stripDataPrefix(trimmed)
		// Copy: the scanner reuses its buffer across lines.
		data = append(data, append([]byte(nil), payload...))
	}
	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

func stripDataPrefix(line []byte) []byte {
	if bytes.HasPrefix(line, []byte("data:")) {
		return bytes.TrimLeft(line[len("data:"):], " ")
	}
	return line
}

// IsDone reports whether payload is the OpenAI-style stream terminator.
func IsDone(payload []byte) bool {
	return bytes.Equal(bytes.TrimSpace(payload), []byte("[DONE]"))
}
