package ir

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/bridgekit/llm-bridge/internal/json"
)

// ToolCallAccumulator buffers streamed tool-call argument fragments per
// tool-call index. Fragments are appended verbatim: re-serializing each
// fragment would lose the exact escape sequences the client expects, so
// parsing happens only at finalization. The accumulator is task-local and
// never shared across streams.
type ToolCallAccumulator struct {
	order []int
	calls map[int]*pendingCall
}

type pendingCall struct {
	id        string
	name      string
	signature string
	buf       strings.Builder
	finalized bool
}

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[int]*pendingCall, 2)}
}

// Feed records one tool-call delta. ID and Name stick on first sight;
// Args and PartialJSON bytes append in arrival order.
func (a *ToolCallAccumulator) Feed(delta *ToolCallDelta) {
	if delta == nil {
		return
	}
	call := a.calls[delta.Index]
	if call == nil {
		call = &pendingCall{}
		a.calls[delta.Index] = call
		a.order = append(a.order, delta.Index)
	}
	if call.id == "" && delta.ID != "" {
		call.id = delta.ID
	}
	if call.name == "" && delta.Name != "" {
		call.name = delta.Name
	}
	if call.signature == "" && delta.Signature != "" {
		call.signature = delta.Signature
	}
	if delta.Args != "" {
		call.buf.WriteString(delta.Args)
	}
	if delta.PartialJSON != "" {
		call.buf.WriteString(delta.PartialJSON)
	}
}

// FinalizedCall is one completed tool call. Args holds the verbatim buffer;
// ArgsObject is non-nil when the buffer parsed (or repaired) to an object.
type FinalizedCall struct {
	Index      int
	ID         string
	Name       string
	Signature  string
	Args       string
	ArgsObject map[string]any
}

// Finalize parses every pending buffer and returns completed calls in
// first-seen order. A buffer that fails strict parsing is run through
// jsonrepair; if that also fails the raw string is surfaced and ArgsObject
// stays nil, leaving the caller to wrap it for object-only dialects.
func (a *ToolCallAccumulator) Finalize() []FinalizedCall {
	out := make([]FinalizedCall, 0, len(a.order))
	for _, idx := range a.order {
		call := a.calls[idx]
		if call == nil || call.finalized {
			continue
		}
		call.finalized = true
		raw := call.buf.String()
		fc := FinalizedCall{
			Index:     idx,
			ID:        call.id,
			Name:      call.name,
			Signature: call.signature,
			Args:      raw,
		}
		fc.ArgsObject = parseOrRepair(raw)
		out = append(out, fc)
	}
	return out
}

// Pending reports whether any call has buffered, unfinalized arguments.
// A cancelled stream discards these; they are never emitted as complete.
func (a *ToolCallAccumulator) Pending() bool {
	for _, call := range a.calls {
		if !call.finalized {
			return true
		}
	}
	return false
}

func parseOrRepair(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return obj
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil || obj == nil {
		return nil
	}
	return obj
}
