// SSE framing helpers for the hot paths. Frames are handed to the HTTP
// writer and escape the call, so they are allocated per call rather than
// pooled.

package ir

// BuildSSEChunk frames jsonData as a data-only SSE event.
func BuildSSEChunk(jsonData []byte) []byte {
	size := 6 + len(jsonData) + 2 // "data: " + json + "\n\n"
	buf := make([]byte, 0, size)
	buf = append(buf, "data: "...)
	buf = append(buf, jsonData...)
	buf = append(buf, "\n\n"...)
	return buf
}

// BuildSSEEvent frames jsonData as a named SSE event.
func BuildSSEEvent(eventType string, jsonData []byte) []byte {
	size := 7 + len(eventType) + 7 + len(jsonData) + 2
	buf := make([]byte, 0, size)
	buf = append(buf, "event: "...)
	buf = append(buf, eventType...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, jsonData...)
	buf = append(buf, "\n\n"...)
	return buf
}

// DoneSentinel is the OpenAI-style stream terminator.
var DoneSentinel = []byte("data: [DONE]\n\n")

// Common immutable empty values, safe to share.
var (
	EmptyMap   = map[string]any{}
	EmptySlice = []any{}
)
