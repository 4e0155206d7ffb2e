package ir

import "testing"

func TestAccumulatorPreservesFragmentBytes(t *testing.T) {
	a := NewToolCallAccumulator()
	a.Feed(&ToolCallDelta{Index: 0, ID: "call_1", Name: "echo", PartialJSON: `{"text":"line1\n`})
	a.Feed(&ToolCallDelta{Index: 0, PartialJSON: `line2"}`})

	calls := a.Finalize()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	// The raw buffer keeps the exact escape sequences the client sent.
	if calls[0].Args != `{"text":"line1\nline2"}` {
		t.Fatalf("args = %q", calls[0].Args)
	}
	if got := calls[0].ArgsObject["text"]; got != "line1\nline2" {
		t.Fatalf("parsed text = %q", got)
	}
	if calls[0].ID != "call_1" || calls[0].Name != "echo" {
		t.Fatalf("identity = %q/%q", calls[0].ID, calls[0].Name)
	}
}

func TestAccumulatorInterleavedCalls(t *testing.T) {
	a := NewToolCallAccumulator()
	a.Feed(&ToolCallDelta{Index: 0, Name: "first", PartialJSON: `{"a":`})
	a.Feed(&ToolCallDelta{Index: 1, Name: "second", PartialJSON: `{"b":2}`})
	a.Feed(&ToolCallDelta{Index: 0, PartialJSON: `1}`})

	calls := a.Finalize()
	if len(calls) != 2 {
		t.Fatalf("calls = %d", len(calls))
	}
	if calls[0].Name != "first" || calls[1].Name != "second" {
		t.Fatalf("order = %q, %q, first-seen order must hold", calls[0].Name, calls[1].Name)
	}
	if calls[0].ArgsObject["a"] == nil || calls[1].ArgsObject["b"] == nil {
		t.Fatalf("args lost: %v / %v", calls[0].ArgsObject, calls[1].ArgsObject)
	}
}

func TestAccumulatorRepairsTruncatedJSON(t *testing.T) {
	a := NewToolCallAccumulator()
	a.Feed(&ToolCallDelta{Index: 0, Name: "search", PartialJSON: `{"query":"weather`})

	calls := a.Finalize()
	if calls[0].ArgsObject == nil {
		t.Fatal("truncated object must be repaired")
	}
	if got := calls[0].ArgsObject["query"]; got != "weather" {
		t.Fatalf("query = %v", got)
	}
	if calls[0].Args != `{"query":"weather` {
		t.Fatalf("raw buffer must stay verbatim: %q", calls[0].Args)
	}
}

func TestAccumulatorUnrepairableSurfacesRaw(t *testing.T) {
	a := NewToolCallAccumulator()
	a.Feed(&ToolCallDelta{Index: 0, Name: "odd", PartialJSON: `[1,2`})

	calls := a.Finalize()
	if calls[0].ArgsObject != nil {
		t.Fatalf("non-object arguments must leave ArgsObject nil, got %v", calls[0].ArgsObject)
	}
	if calls[0].Args != `[1,2` {
		t.Fatalf("args = %q", calls[0].Args)
	}
}

func TestAccumulatorEmptyArgs(t *testing.T) {
	a := NewToolCallAccumulator()
	a.Feed(&ToolCallDelta{Index: 0, Name: "noop"})

	calls := a.Finalize()
	if calls[0].ArgsObject == nil || len(calls[0].ArgsObject) != 0 {
		t.Fatalf("empty buffer must finalize to an empty object, got %v", calls[0].ArgsObject)
	}
}

func TestAccumulatorPending(t *testing.T) {
	a := NewToolCallAccumulator()
	if a.Pending() {
		t.Fatal("empty accumulator reported pending")
	}
	a.Feed(&ToolCallDelta{Index: 0, Name: "x", PartialJSON: `{`})
	if !a.Pending() {
		t.Fatal("buffered call not reported pending")
	}
	a.Finalize()
	if a.Pending() {
		t.Fatal("finalized call still pending")
	}
}
