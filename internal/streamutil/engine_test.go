package streamutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/translator/from_ir"
	"github.com/bridgekit/llm-bridge/internal/translator/to_ir"
)

// frameJSON extracts the data payload of one emitted SSE frame.
func frameJSON(t *testing.T, frame []byte) gjson.Result {
	t.Helper()
	for _, line := range strings.Split(string(frame), "\n") {
		if strings.HasPrefix(line, "data: ") {
			return gjson.Parse(strings.TrimPrefix(line, "data: "))
		}
	}
	t.Fatalf("frame carries no data line: %q", frame)
	return gjson.Result{}
}

func openaiToClaudeEngine() *Engine {
	return NewEngine(&to_ir.OpenAIParser{}, &from_ir.ClaudeConverter{}, "msg_test", "claude-sonnet-4-5")
}

func feed(t *testing.T, e *Engine, payloads ...string) [][]byte {
	t.Helper()
	var frames [][]byte
	for _, p := range payloads {
		out, err := e.TransformFrame([]byte(p))
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, out...)
	}
	return frames
}

func TestToolArgumentFragmentsStreamToClaude(t *testing.T) {
	e := openaiToClaudeEngine()
	frames := feed(t, e,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"add","arguments":"{\"x\":1"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":",\"y\":2"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	)
	final, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	frames = append(frames, final...)

	var partial strings.Builder
	deltas := 0
	sawStart := false
	for _, frame := range frames {
		body := frameJSON(t, frame)
		switch body.Get("type").String() {
		case "content_block_start":
			if body.Get("content_block.type").String() == "tool_use" {
				sawStart = true
				if got := body.Get("content_block.name").String(); got != "add" {
					t.Fatalf("tool name = %q", got)
				}
			}
		case "content_block_delta":
			if body.Get("delta.type").String() == "input_json_delta" {
				deltas++
				partial.WriteString(body.Get("delta.partial_json").String())
			}
		}
	}
	if !sawStart {
		t.Fatal("tool_use block never opened")
	}
	if deltas < 3 {
		t.Fatalf("input_json_delta events = %d, fragments must not coalesce", deltas)
	}
	if got := partial.String(); got != `{"x":1,"y":2}` {
		t.Fatalf("concatenated partial_json = %q", got)
	}

	last := frameJSON(t, frames[len(frames)-1])
	if got := last.Get("type").String(); got != "message_stop" {
		t.Fatalf("last frame = %q", got)
	}
	prev := frameJSON(t, frames[len(frames)-2])
	if got := prev.Get("delta.stop_reason").String(); got != "tool_use" {
		t.Fatalf("stop_reason = %q", got)
	}
}

func TestDoneHeldUntilTrailingUsage(t *testing.T) {
	e := openaiToClaudeEngine()
	frames := feed(t, e,
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)
	for _, frame := range frames {
		if frameJSON(t, frame).Get("type").String() == "message_stop" {
			t.Fatal("terminal frame emitted before the stream ended")
		}
	}

	frames = feed(t, e,
		`data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":5,"total_tokens":12}}`,
	)
	if len(frames) != 0 {
		t.Fatalf("usage after finish must fold into the held done, got %d frames", len(frames))
	}

	final, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(final) < 2 {
		t.Fatalf("finish frames = %d", len(final))
	}
	delta := frameJSON(t, final[len(final)-2])
	if got := delta.Get("type").String(); got != "message_delta" {
		t.Fatalf("penultimate frame = %q", got)
	}
	if got := delta.Get("usage.output_tokens").Int(); got != 5 {
		t.Fatalf("output_tokens = %d, trailing usage lost", got)
	}
	if got := e.FinalUsage(); got == nil || got.InputTokens != 7 {
		t.Fatalf("FinalUsage = %+v", got)
	}
}

func TestFinishSynthesizesDone(t *testing.T) {
	e := openaiToClaudeEngine()
	feed(t, e, `data: {"choices":[{"delta":{"content":"partial"}}]}`)
	final, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	last := frameJSON(t, final[len(final)-1])
	if got := last.Get("type").String(); got != "message_stop" {
		t.Fatalf("stream must terminate cleanly, last = %q", got)
	}
	// Finish is idempotent.
	again, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("second Finish emitted %d frames", len(again))
	}
}

func TestFinishFlushesBufferedThinking(t *testing.T) {
	e := NewEngine(&to_ir.GeminiParser{}, &from_ir.ClaudeConverter{}, "msg_test", "claude-sonnet-4-5")

	// A signature-less thought is buffered waiting for a later signature
	// fragment, so nothing streams out yet.
	frames := feed(t, e,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"half a thought","thought":true}]}}]}`,
	)
	for _, frame := range frames {
		if frameJSON(t, frame).Get("delta.type").String() == "thinking_delta" {
			t.Fatal("signature-less thought must stay buffered mid-stream")
		}
	}

	// The upstream drops without a finish frame; the buffered thought must
	// still reach the client ahead of the terminal frames.
	final, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	thinkingAt := -1
	stopAt := -1
	for i, frame := range final {
		body := frameJSON(t, frame)
		if body.Get("delta.type").String() == "thinking_delta" {
			thinkingAt = i
			if got := body.Get("delta.thinking").String(); got != "half a thought" {
				t.Fatalf("thinking = %q", got)
			}
		}
		if body.Get("type").String() == "message_stop" {
			stopAt = i
		}
	}
	if thinkingAt == -1 {
		t.Fatal("buffered thought dropped at stream end")
	}
	if stopAt == -1 || stopAt < thinkingAt {
		t.Fatalf("message_stop at %d, thinking at %d", stopAt, thinkingAt)
	}
}

func TestMalformedFramesDroppedNotFatal(t *testing.T) {
	e := openaiToClaudeEngine()
	frames := feed(t, e,
		`data: {"choices":[{"delta"`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
	)
	if e.ParseErrors() != 1 {
		t.Fatalf("ParseErrors = %d", e.ParseErrors())
	}
	found := false
	for _, frame := range frames {
		body := frameJSON(t, frame)
		if body.Get("delta.text").String() == "ok" {
			found = true
		}
	}
	if !found {
		t.Fatal("stream must continue past a malformed frame")
	}
}

func TestAbortEmitsDialectError(t *testing.T) {
	e := openaiToClaudeEngine()
	feed(t, e, `data: {"choices":[{"delta":{"content":"Hi"}}]}`)
	frames, err := e.Abort(errors.New("upstream reset"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d", len(frames))
	}
	body := frameJSON(t, frames[0])
	if got := body.Get("type").String(); got != "error" {
		t.Fatalf("type = %q", got)
	}
	if !strings.Contains(body.Get("error.message").String(), "upstream reset") {
		t.Fatalf("message = %q", body.Get("error.message").String())
	}
	after, err := e.TransformFrame([]byte(`data: {"choices":[{"delta":{"content":"late"}}]}`))
	if err != nil || len(after) != 0 {
		t.Fatalf("frames after abort: %d (err %v)", len(after), err)
	}
}

func TestPendingToolCallVisibleMidStream(t *testing.T) {
	e := NewEngine(&to_ir.OpenAIParser{}, &from_ir.GeminiConverter{}, "msg_test", "gemini-2.5-pro")
	feed(t, e,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"add","arguments":"{\"x\":"}}]}}]}`,
	)
	if !e.PendingToolCall() {
		t.Fatal("partially buffered call must be reported pending")
	}
	frames := feed(t, e, `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`)
	if len(frames) != 0 {
		t.Fatalf("gemini target must buffer tool calls until done, got %d frames", len(frames))
	}
	final, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(final) != 2 {
		t.Fatalf("finish frames = %d, want consolidated call + terminal", len(final))
	}
	callFrame := frameJSON(t, final[0])
	fc := callFrame.Get("candidates.0.content.parts.0.functionCall")
	if got := fc.Get("name").String(); got != "add" {
		t.Fatalf("name = %q", got)
	}
	if got := fc.Get("args.x").Int(); got != 1 {
		t.Fatalf("args = %s", fc.Get("args").Raw)
	}
	terminal := frameJSON(t, final[1])
	if got := terminal.Get("candidates.0.finishReason").String(); got != "STOP" && got != "TOOL_USE" {
		// The dialect reports tool-call turns as STOP.
		t.Fatalf("finishReason = %q", got)
	}
}
