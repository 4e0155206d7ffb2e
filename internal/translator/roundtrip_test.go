package translator_test

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
)

// Round-trip coverage: a payload lifted into the IR and re-emitted in its
// own dialect keeps every semantic field, and a payload routed through a
// foreign dialect and back keeps content, tool pairing, and usage even
// when wire ids are re-minted along the way.

func TestOpenAIRequestRoundTrip(t *testing.T) {
	in := `{
		"model":"gpt-4o",
		"messages":[
			{"role":"system","content":"be precise"},
			{"role":"user","content":"weather in Oslo"}
		],
		"tools":[{"type":"function","function":{
			"name":"get_weather",
			"description":"Look up current weather",
			"parameters":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}
		}}],
		"tool_choice":"auto",
		"temperature":0.7,
		"max_tokens":512
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatOpenAI,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("model").String(); got != "gpt-4o" {
		t.Fatalf("model = %q", got)
	}
	if got := body.Get(`messages.#(role=="system").content`).String(); got != "be precise" {
		t.Fatalf("system = %q", got)
	}
	if got := body.Get(`messages.#(role=="user").content`).String(); got != "weather in Oslo" {
		t.Fatalf("user text = %q", got)
	}
	tool := body.Get("tools.0.function")
	if got := tool.Get("name").String(); got != "get_weather" {
		t.Fatalf("tool name = %q", got)
	}
	if got := tool.Get("description").String(); got != "Look up current weather" {
		t.Fatalf("tool description = %q", got)
	}
	if !tool.Get("parameters.properties.city").Exists() {
		t.Fatal("tool parameters lost")
	}
	if got := body.Get("tool_choice").String(); got != "auto" {
		t.Fatalf("tool_choice = %q", got)
	}
	if got := body.Get("temperature").Float(); got != 0.7 {
		t.Fatalf("temperature = %v", got)
	}
	if got := body.Get("max_tokens").Int(); got != 512 {
		t.Fatalf("max_tokens = %d", got)
	}
}

func TestClaudeRequestRoundTrip(t *testing.T) {
	in := `{
		"model":"claude-sonnet-4-5","max_tokens":1024,
		"system":[{"type":"text","text":"be brief"}],
		"messages":[
			{"role":"user","content":"what is 2+2"},
			{"role":"assistant","content":[
				{"type":"tool_use","id":"toolu_abc","name":"calc","input":{"expr":"2+2"}}
			]},
			{"role":"user","content":[
				{"type":"tool_result","tool_use_id":"toolu_abc","content":"4"}
			]}
		],
		"stop_sequences":["END"]
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatClaude,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("model").String(); got != "claude-sonnet-4-5" {
		t.Fatalf("model = %q", got)
	}
	if got := body.Get("max_tokens").Int(); got != 1024 {
		t.Fatalf("max_tokens = %d", got)
	}
	if got := body.Get("system.0.text").String(); got != "be brief" {
		t.Fatalf("system = %q", got)
	}
	use := body.Get(`messages.#(role=="assistant").content.0`)
	if got := use.Get("type").String(); got != "tool_use" {
		t.Fatalf("assistant block = %q", got)
	}
	if got := use.Get("id").String(); got != "toolu_abc" {
		t.Fatalf("tool_use id = %q, must survive unchanged", got)
	}
	if got := use.Get("input.expr").String(); got != "2+2" {
		t.Fatalf("tool input = %q", got)
	}
	result := body.Get("messages.2.content.0")
	if got := result.Get("tool_use_id").String(); got != "toolu_abc" {
		t.Fatalf("tool_use_id = %q", got)
	}
	if got := result.Get("content").String(); got != "4" {
		t.Fatalf("tool result = %q", got)
	}
	if got := body.Get("stop_sequences.0").String(); got != "END" {
		t.Fatalf("stop_sequences = %q", got)
	}
}

func TestGeminiRequestRoundTrip(t *testing.T) {
	in := `{
		"systemInstruction":{"parts":[{"text":"answer in metric"}]},
		"contents":[
			{"role":"user","parts":[{"text":"how heavy is the moon"}]},
			{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"topic":"moon"}}}]},
			{"role":"user","parts":[{"functionResponse":{"name":"lookup","response":{"result":"7.3e22 kg"}}}]}
		],
		"generationConfig":{"temperature":0.2,"maxOutputTokens":256}
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatGemini,
		To:   provider.FormatGemini,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("systemInstruction.parts.0.text").String(); got != "answer in metric" {
		t.Fatalf("systemInstruction = %q", got)
	}
	if got := body.Get("contents.0.parts.0.text").String(); got != "how heavy is the moon" {
		t.Fatalf("user text = %q", got)
	}
	call := body.Get("contents.1.parts.0.functionCall")
	if got := call.Get("name").String(); got != "lookup" {
		t.Fatalf("functionCall name = %q", got)
	}
	if got := call.Get("args.topic").String(); got != "moon" {
		t.Fatalf("functionCall args = %s", call.Get("args").Raw)
	}
	resp := body.Get("contents.2.parts.0.functionResponse")
	if got := resp.Get("name").String(); got != "lookup" {
		t.Fatalf("functionResponse name = %q", got)
	}
	if got := body.Get("generationConfig.temperature").Float(); got != 0.2 {
		t.Fatalf("temperature = %v", got)
	}
	if got := body.Get("generationConfig.maxOutputTokens").Int(); got != 256 {
		t.Fatalf("maxOutputTokens = %d", got)
	}
}

func TestCrossDialectRequestPreservation(t *testing.T) {
	in := `{
		"model":"claude-sonnet-4-5","max_tokens":512,
		"system":"use the calculator",
		"messages":[
			{"role":"user","content":"what is 2+2"},
			{"role":"assistant","content":[
				{"type":"text","text":"let me check"},
				{"type":"tool_use","id":"toolu_abc","name":"calc","input":{"expr":"2+2"}}
			]},
			{"role":"user","content":[
				{"type":"tool_result","tool_use_id":"toolu_abc","content":"4"}
			]}
		]
	}`
	mid, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatGemini,
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := translator.TransformRequest(mid, translator.Options{
		From: provider.FormatGemini,
		To:   provider.FormatClaude,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get(`messages.#(role=="user").content.0.text`).String(); got != "what is 2+2" {
		t.Fatalf("user text = %q", got)
	}
	if got := body.Get("system.0.text").String(); got != "use the calculator" {
		t.Fatalf("system = %q", got)
	}
	assistant := body.Get(`messages.#(role=="assistant")`)
	if got := assistant.Get("content.0.text").String(); got != "let me check" {
		t.Fatalf("assistant text = %q", got)
	}
	use := assistant.Get(`content.#(type=="tool_use")`)
	if got := use.Get("name").String(); got != "calc" {
		t.Fatalf("tool name = %q", got)
	}
	if got := use.Get("input.expr").String(); got != "2+2" {
		t.Fatalf("tool input = %q", got)
	}
	// Gemini carries no tool-call ids, so the id is re-minted on the way
	// back; what must hold is that the result still points at the call.
	result := body.Get("messages.2.content.0")
	if got := result.Get("type").String(); got != "tool_result" {
		t.Fatalf("third turn block = %q", got)
	}
	if use.Get("id").String() == "" || result.Get("tool_use_id").String() != use.Get("id").String() {
		t.Fatalf("pairing broken: call id %q, result for %q",
			use.Get("id").String(), result.Get("tool_use_id").String())
	}
	if got := result.Get("content").String(); got != "4" {
		t.Fatalf("tool result = %q", got)
	}
}

func TestCrossDialectResponsePreservation(t *testing.T) {
	in := `{
		"id":"chatcmpl-7","model":"gpt-4o","created":1700000000,
		"choices":[{"index":0,"message":{"role":"assistant",
			"content":"checking the weather",
			"tool_calls":[{"id":"call_9","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}}]},
			"finish_reason":"tool_calls"}],
		"usage":{"prompt_tokens":21,"completion_tokens":9,"total_tokens":30}
	}`
	mid, err := translator.TransformResponse([]byte(in), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatClaude,
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := translator.TransformResponse(mid, translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatOpenAI,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	msg := body.Get("choices.0.message")
	if got := msg.Get("content").String(); got != "checking the weather" {
		t.Fatalf("content = %q", got)
	}
	call := msg.Get("tool_calls.0")
	if got := call.Get("function.name").String(); got != "get_weather" {
		t.Fatalf("tool name = %q", got)
	}
	if got := call.Get("function.arguments").String(); got != `{"city":"Oslo"}` {
		t.Fatalf("arguments = %q", got)
	}
	if got := call.Get("id").String(); got != "call_9" {
		t.Fatalf("tool call id = %q, must survive the claude leg", got)
	}
	if got := body.Get("choices.0.finish_reason").String(); got != "tool_calls" {
		t.Fatalf("finish_reason = %q", got)
	}
	usage := body.Get("usage")
	if usage.Get("prompt_tokens").Int() != 21 ||
		usage.Get("completion_tokens").Int() != 9 ||
		usage.Get("total_tokens").Int() != 30 {
		t.Fatalf("usage = %s", usage.Raw)
	}
}
