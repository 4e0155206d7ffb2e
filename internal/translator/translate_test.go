package translator_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"

	_ "github.com/bridgekit/llm-bridge/internal/translator/from_ir"
	_ "github.com/bridgekit/llm-bridge/internal/translator/to_ir"
)

func TestGeminiRequestToClaude(t *testing.T) {
	in := `{
		"contents":[{"role":"user","parts":[{"text":"hi"}]}],
		"systemInstruction":{"parts":[{"text":"be brief"}]}
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatGemini,
		To:   provider.FormatClaude,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("messages.0.role").String(); got != "user" {
		t.Fatalf("role = %q", got)
	}
	if got := body.Get("messages.0.content.0.type").String(); got != "text" {
		t.Fatalf("content type = %q", got)
	}
	if got := body.Get("messages.0.content.0.text").String(); got != "hi" {
		t.Fatalf("text = %q", got)
	}
	if got := body.Get("system.0.text").String(); got != "be brief" {
		t.Fatalf("system = %q", got)
	}
	if got := body.Get("max_tokens").Int(); got != 4096 {
		t.Fatalf("max_tokens = %d, dialect default must apply", got)
	}
}

func TestClaudeResponseToGemini(t *testing.T) {
	in := `{
		"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
		"content":[
			{"type":"thinking","thinking":"reasoning...","signature":"s1"},
			{"type":"text","text":"42"}
		],
		"stop_reason":"end_turn",
		"usage":{"input_tokens":10,"output_tokens":3}
	}`
	out, err := translator.TransformResponse([]byte(in), translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatGemini,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	parts := body.Get("candidates.0.content.parts")
	if n := len(parts.Array()); n != 2 {
		t.Fatalf("parts = %d", n)
	}
	if !parts.Get("0.thought").Bool() {
		t.Fatal("first part must be a thought")
	}
	if got := parts.Get("0.text").String(); got != "reasoning..." {
		t.Fatalf("thought text = %q", got)
	}
	if got := parts.Get("0.thoughtSignature").String(); got != "s1" {
		t.Fatalf("thoughtSignature = %q", got)
	}
	if parts.Get("1.thought").Exists() {
		t.Fatal("plain text part must not carry thought")
	}
	if got := parts.Get("1.text").String(); got != "42" {
		t.Fatalf("text = %q", got)
	}
	if got := body.Get("candidates.0.finishReason").String(); got != "STOP" {
		t.Fatalf("finishReason = %q", got)
	}
	if got := body.Get("usageMetadata.promptTokenCount").Int(); got != 10 {
		t.Fatalf("promptTokenCount = %d", got)
	}
}

func TestOpenAIToolsToClaude(t *testing.T) {
	in := `{
		"model":"gpt-4o",
		"messages":[{"role":"user","content":"weather in Oslo"}],
		"tools":[{"type":"function","function":{
			"name":"get_weather",
			"description":"Look up current weather",
			"parameters":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}
		}}],
		"tool_choice":"required"
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatClaude,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	if got := body.Get("tools.0.name").String(); got != "get_weather" {
		t.Fatalf("tool name = %q", got)
	}
	if !body.Get("tools.0.input_schema.properties.city").Exists() {
		t.Fatal("input_schema must carry the parameters object")
	}
	if got := body.Get("tool_choice.type").String(); got != "any" {
		t.Fatalf("tool_choice = %q, required must map to any", got)
	}
}

func TestClaudeToolResultToGeminiPairsByName(t *testing.T) {
	in := `{
		"model":"claude-sonnet-4-5","max_tokens":512,
		"messages":[
			{"role":"user","content":"what is 2+2"},
			{"role":"assistant","content":[
				{"type":"tool_use","id":"toolu_abc","name":"calc","input":{"expr":"2+2"}}
			]},
			{"role":"user","content":[
				{"type":"tool_result","tool_use_id":"toolu_abc","content":"4"}
			]}
		]
	}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatGemini,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := gjson.ParseBytes(out)
	call := body.Get(`contents.#(role=="model").parts.0.functionCall`)
	if got := call.Get("name").String(); got != "calc" {
		t.Fatalf("functionCall name = %q", got)
	}
	resp := body.Get("contents.2.parts.0.functionResponse")
	if got := resp.Get("name").String(); got != "calc" {
		t.Fatalf("functionResponse name = %q, must recover the call name", got)
	}
}

func TestModelOverride(t *testing.T) {
	in := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From:  provider.FormatOpenAI,
		To:    provider.FormatClaude,
		Model: "claude-haiku-4",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(out, "model").String(); got != "claude-haiku-4" {
		t.Fatalf("model = %q", got)
	}
}

func TestThinkingOverride(t *testing.T) {
	in := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	out, err := translator.TransformRequest([]byte(in), translator.Options{
		From:     provider.FormatOpenAI,
		To:       provider.FormatGemini,
		Thinking: &ir.ThinkingConfig{Enabled: true, Budget: 2048},
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := gjson.GetBytes(out, "generationConfig.thinkingConfig")
	if !cfg.Get("includeThoughts").Bool() {
		t.Fatal("includeThoughts must be set")
	}
	if got := cfg.Get("thinkingBudget").Int(); got != 2048 {
		t.Fatalf("thinkingBudget = %d", got)
	}
}

func TestRedactedThinkingSurvivesGemini(t *testing.T) {
	in := `{
		"id":"msg_2","model":"claude-sonnet-4-5",
		"content":[
			{"type":"redacted_thinking","data":"opaque"},
			{"type":"text","text":"ok"}
		],
		"stop_reason":"end_turn"
	}`
	out, err := translator.TransformResponse([]byte(in), translator.Options{
		From: provider.FormatClaude,
		To:   provider.FormatGemini,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Gemini has no redacted-thinking concept; the opaque payload still
	// surfaces as a thought part rather than disappearing silently.
	parts := gjson.GetBytes(out, "candidates.0.content.parts")
	if n := len(parts.Array()); n != 2 {
		t.Fatalf("parts = %d", n)
	}
	if got := parts.Get("1.text").String(); got != "ok" {
		t.Fatalf("text = %q", got)
	}
}

func TestAliasesResolveToSharedAdapters(t *testing.T) {
	reg := translator.GetRegistry()

	c, err := reg.FromIR(provider.FormatOpencodeZen)
	if err != nil {
		t.Fatal(err)
	}
	if c.Provider() != provider.FormatOpenAI {
		t.Fatalf("opencode-zen resolved to %q", c.Provider())
	}

	c, err = reg.FromIR(provider.FormatOpenAIWeb)
	if err != nil {
		t.Fatal(err)
	}
	if c.Provider() != provider.FormatOpenAIResponses {
		t.Fatalf("openai-web resolved to %q", c.Provider())
	}
}

func TestUnknownDialectErrors(t *testing.T) {
	_, err := translator.TransformRequest([]byte(`{"messages":[]}`), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.Format("mystery"),
	})
	if !errors.Is(err, translator.ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
	if !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("error must name the dialect: %v", err)
	}
}

func TestSniffFormat(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want provider.Format
	}{
		{"chat", `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`, provider.FormatOpenAI},
		{"claude", `{"model":"x","system":"be brief","messages":[{"role":"user","content":"hi"}]}`, provider.FormatClaude},
		{"gemini", `{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, provider.FormatGemini},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := translator.GetRegistry().SniffFormat([]byte(tc.raw))
			if !ok || got != tc.want {
				t.Fatalf("sniffed %q (ok=%v), want %q", got, ok, tc.want)
			}
		})
	}
}

func TestMalformedRequestErrors(t *testing.T) {
	_, err := translator.TransformRequest([]byte(`{"messages":`), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatClaude,
	})
	if !errors.Is(err, translator.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}

	_, err = translator.TransformRequest([]byte(`{"model":"gpt-4o"}`), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatClaude,
	})
	if !errors.Is(err, translator.ErrInvalidRequest) {
		t.Fatalf("missing messages err = %v, want ErrInvalidRequest", err)
	}
}

func TestMalformedResponseErrors(t *testing.T) {
	_, err := translator.TransformResponse([]byte(`{"id":"chatcmpl-1"}`), translator.Options{
		From: provider.FormatOpenAI,
		To:   provider.FormatClaude,
	})
	if !errors.Is(err, translator.ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
}
