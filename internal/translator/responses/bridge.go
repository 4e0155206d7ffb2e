// Package responses bridges the OpenAI Responses dialect and the OpenAI
// Chat Completions dialect directly at the wire level. The bridge is a
// byte-to-byte sub-pipeline: it never builds an IR value, so a Responses
// client in front of a Chat upstream pays no IR cost.
package responses

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// RequestToChat converts a Responses request into a Chat Completions
// request: instructions prepend as a system message, a string input inlines
// as one user message, developer roles rewrite to system, and
// max_output_tokens maps to max_tokens.
func RequestToChat(raw []byte) ([]byte, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(raw)
	root := map[string]any{}
	if model := parsed.Get("model").String(); model != "" {
		root["model"] = model
	}

	var messages []map[string]any
	if instructions := parsed.Get("instructions").String(); instructions != "" {
		messages = append(messages, map[string]any{"role": "system", "content": instructions})
	}

	input := parsed.Get("input")
	if input.IsArray() {
		for _, item := range input.Array() {
			role := item.Get("role").String()
			if role == "developer" {
				role = "system"
			}
			messages = append(messages, map[string]any{
				"role":    role,
				"content": flattenResponsesContent(item.Get("content")),
			})
		}
	} else if input.Exists() && input.String() != "" {
		messages = append(messages, map[string]any{"role": "user", "content": input.String()})
	}
	root["messages"] = messages

	if tools := parsed.Get("tools"); tools.IsArray() {
		var chatTools []map[string]any
		for _, tool := range tools.Array() {
			if tool.Get("type").String() != "function" {
				continue
			}
			fn := map[string]any{"name": tool.Get("name").String()}
			if desc := tool.Get("description").String(); desc != "" {
				fn["description"] = desc
			}
			if params := ir.SchemaFromGJSON(tool.Get("parameters")); params != nil {
				fn["parameters"] = params
			}
			chatTools = append(chatTools, map[string]any{"type": "function", "function": fn})
		}
		if len(chatTools) > 0 {
			root["tools"] = chatTools
		}
	}

	if v := parsed.Get("max_output_tokens"); v.Exists() {
		root["max_tokens"] = v.Int()
	}
	if v := parsed.Get("temperature"); v.Exists() {
		root["temperature"] = v.Float()
	}
	if v := parsed.Get("top_p"); v.Exists() {
		root["top_p"] = v.Float()
	}
	if v := parsed.Get("stream"); v.Exists() {
		root["stream"] = v.Bool()
	}
	if effort := parsed.Get("reasoning.effort").String(); effort != "" {
		root["reasoning_effort"] = effort
	}
	return json.Marshal(root)
}

// flattenResponsesContent turns a Responses content value (string or list
// of typed parts) into a Chat content string.
func flattenResponsesContent(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var b strings.Builder
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "input_text", "output_text", "text":
			b.WriteString(part.Get("text").String())
		}
	}
	return b.String()
}

// finishToStatus maps a Chat finish_reason to a Responses terminal status
// plus the incomplete reason when applicable.
func finishToStatus(finish string) (status, incompleteReason string) {
	switch finish {
	case "length":
		return "incomplete", "max_output_tokens"
	case "content_filter":
		return "incomplete", "content_filter"
	default:
		return "completed", ""
	}
}

// ChatResponseToResponses wraps a non-streaming Chat Completions response
// into a Responses response object.
func ChatResponseToResponses(raw []byte) ([]byte, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(raw)
	choice := parsed.Get("choices.0")
	msg := choice.Get("message")

	respID := ir.GenMessageID("resp")
	itemID := ir.GenMessageID("msg")

	var output []map[string]any
	if text := msg.Get("content").String(); text != "" || !msg.Get("tool_calls").Exists() {
		output = append(output, map[string]any{
			"id":     itemID,
			"type":   "message",
			"status": "completed",
			"role":   "assistant",
			"content": []map[string]any{{
				"type":        "output_text",
				"text":        text,
				"annotations": ir.EmptySlice,
			}},
		})
	}
	for _, tc := range msg.Get("tool_calls").Array() {
		output = append(output, map[string]any{
			"id":        ir.GenMessageID("fc"),
			"type":      "function_call",
			"status":    "completed",
			"call_id":   tc.Get("id").String(),
			"name":      tc.Get("function.name").String(),
			"arguments": tc.Get("function.arguments").String(),
		})
	}

	status, incompleteReason := finishToStatus(choice.Get("finish_reason").String())
	root := map[string]any{
		"id":         respID,
		"object":     "response",
		"created_at": parsed.Get("created").Int(),
		"status":     status,
		"model":      parsed.Get("model").String(),
		"output":     output,
	}
	if incompleteReason != "" {
		root["incomplete_details"] = map[string]any{"reason": incompleteReason}
	}
	if usage := parsed.Get("usage"); usage.Exists() {
		root["usage"] = map[string]any{
			"input_tokens":  usage.Get("prompt_tokens").Int(),
			"output_tokens": usage.Get("completion_tokens").Int(),
			"total_tokens":  usage.Get("total_tokens").Int(),
		}
	}
	return json.Marshal(root)
}
