package responses

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToChat(t *testing.T) {
	in := `{
		"model":"gpt-4o",
		"instructions":"You are terse.",
		"input":[
			{"role":"developer","content":"prefer metric units"},
			{"role":"user","content":[{"type":"input_text","text":"how far is the moon"}]}
		],
		"max_output_tokens":256,
		"temperature":0.2
	}`
	out, err := RequestToChat([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("model").String(); got != "gpt-4o" {
		t.Fatalf("model = %q", got)
	}
	msgs := body.Get("messages").Array()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].Get("role").String() != "system" || msgs[0].Get("content").String() != "You are terse." {
		t.Fatalf("instructions not mapped: %s", msgs[0].Raw)
	}
	if got := msgs[1].Get("role").String(); got != "system" {
		t.Fatalf("developer role = %q, must rewrite to system", got)
	}
	if got := msgs[2].Get("content").String(); got != "how far is the moon" {
		t.Fatalf("typed content not flattened: %q", got)
	}
	if got := body.Get("max_tokens").Int(); got != 256 {
		t.Fatalf("max_tokens = %d", got)
	}
}

func TestRequestToChatStringInput(t *testing.T) {
	out, err := RequestToChat([]byte(`{"model":"gpt-4o","input":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("messages.0.role").String(); got != "user" {
		t.Fatalf("role = %q", got)
	}
	if got := body.Get("messages.0.content").String(); got != "hello" {
		t.Fatalf("content = %q", got)
	}
}

func TestChatResponseToResponses(t *testing.T) {
	in := `{
		"id":"chatcmpl-1","model":"gpt-4o","created":1700000000,
		"choices":[{"index":0,"message":{"role":"assistant","content":"The moon is far."},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":9,"completion_tokens":5,"total_tokens":14}
	}`
	out, err := ChatResponseToResponses([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("object").String(); got != "response" {
		t.Fatalf("object = %q", got)
	}
	if got := body.Get("status").String(); got != "completed" {
		t.Fatalf("status = %q", got)
	}
	item := body.Get("output.0")
	if got := item.Get("type").String(); got != "message" {
		t.Fatalf("item type = %q", got)
	}
	if got := item.Get("content.0.text").String(); got != "The moon is far." {
		t.Fatalf("text = %q", got)
	}
	if got := body.Get("usage.total_tokens").Int(); got != 14 {
		t.Fatalf("total_tokens = %d", got)
	}
}

func TestChatResponseToResponsesLengthIncomplete(t *testing.T) {
	in := `{
		"id":"chatcmpl-2","model":"gpt-4o",
		"choices":[{"index":0,"message":{"role":"assistant","content":"truncat"},"finish_reason":"length"}]
	}`
	out, err := ChatResponseToResponses([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("status").String(); got != "incomplete" {
		t.Fatalf("status = %q", got)
	}
	if got := body.Get("incomplete_details.reason").String(); got != "max_output_tokens" {
		t.Fatalf("reason = %q", got)
	}
}

func TestChatResponseToResponsesToolCalls(t *testing.T) {
	in := `{
		"id":"chatcmpl-3","model":"gpt-4o",
		"choices":[{"index":0,"message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_9","type":"function","function":{"name":"add","arguments":"{\"x\":1}"}}]},
			"finish_reason":"tool_calls"}]
	}`
	out, err := ChatResponseToResponses([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	item := gjson.GetBytes(out, "output.0")
	if got := item.Get("type").String(); got != "function_call" {
		t.Fatalf("item type = %q", got)
	}
	if got := item.Get("call_id").String(); got != "call_9" {
		t.Fatalf("call_id = %q", got)
	}
	if got := item.Get("arguments").String(); got != `{"x":1}` {
		t.Fatalf("arguments = %q", got)
	}
}

// eventPayload splits one framed SSE event into its event name and data.
func eventPayload(t *testing.T, frame []byte) (string, gjson.Result) {
	t.Helper()
	var name string
	for _, line := range strings.Split(string(frame), "\n") {
		if strings.HasPrefix(line, "event: ") {
			name = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			return name, gjson.Parse(strings.TrimPrefix(line, "data: "))
		}
	}
	t.Fatalf("malformed frame: %q", frame)
	return "", gjson.Result{}
}

func TestStreamTransformerLifecycle(t *testing.T) {
	tr := NewStreamTransformer("gpt-4o")

	var frames [][]byte
	for _, chunk := range []string{
		`{"id":"chatcmpl-4","choices":[{"delta":{"role":"assistant"}}]}`,
		`{"id":"chatcmpl-4","choices":[{"delta":{"content":"Hi"}}]}`,
		`{"id":"chatcmpl-4","choices":[{"delta":{},"finish_reason":"stop"}]}`,
	} {
		out, err := tr.Transform([]byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, out...)
	}

	want := []string{
		"response.created",
		"response.output_item.added",
		"response.content_part.added",
		"response.output_text.delta",
		"response.output_text.done",
		"response.output_item.done",
		"response.completed",
	}
	if len(frames) != len(want) {
		t.Fatalf("events = %d, want %d", len(frames), len(want))
	}
	var respID, itemID string
	for i, frame := range frames {
		name, body := eventPayload(t, frame)
		if name != want[i] {
			t.Fatalf("event %d = %q, want %q", i, name, want[i])
		}
		if got := body.Get("sequence_number").Int(); got != int64(i+1) {
			t.Fatalf("sequence_number = %d at event %d", got, i)
		}
		if id := body.Get("response.id").String(); id != "" {
			if respID == "" {
				respID = id
			} else if id != respID {
				t.Fatalf("response id changed: %q vs %q", id, respID)
			}
		}
		for _, path := range []string{"item_id", "item.id"} {
			if id := body.Get(path).String(); id != "" {
				if itemID == "" {
					itemID = id
				} else if id != itemID {
					t.Fatalf("item id changed: %q vs %q", id, itemID)
				}
			}
		}
	}
	if !strings.HasPrefix(respID, "resp_") {
		t.Fatalf("response id = %q", respID)
	}
	if !strings.HasPrefix(itemID, "msg_") {
		t.Fatalf("item id = %q", itemID)
	}

	_, deltaBody := eventPayload(t, frames[3])
	if got := deltaBody.Get("delta").String(); got != "Hi" {
		t.Fatalf("delta = %q", got)
	}
	_, doneBody := eventPayload(t, frames[4])
	if got := doneBody.Get("text").String(); got != "Hi" {
		t.Fatalf("done text = %q", got)
	}
	_, completedBody := eventPayload(t, frames[6])
	if got := completedBody.Get("response.status").String(); got != "completed" {
		t.Fatalf("status = %q", got)
	}
	if got := completedBody.Get("response.output.0.content.0.text").String(); got != "Hi" {
		t.Fatalf("final output = %q", got)
	}
}

func TestStreamTransformerFinishWithoutContent(t *testing.T) {
	tr := NewStreamTransformer("gpt-4o")
	frames, err := tr.Transform([]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, empty stream must emit completed only", len(frames))
	}
	name, body := eventPayload(t, frames[0])
	if name != "response.completed" {
		t.Fatalf("event = %q", name)
	}
	if got := body.Get("response.status").String(); got != "completed" {
		t.Fatalf("status = %q", got)
	}
	// A late chunk after completion is ignored.
	late, err := tr.Transform([]byte(`{"choices":[{"delta":{"content":"late"}}]}`))
	if err != nil || len(late) != 0 {
		t.Fatalf("late frames = %d (err %v)", len(late), err)
	}
}
