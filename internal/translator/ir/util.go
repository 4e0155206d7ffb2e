package ir

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/json"
)

// Dialect default limits. Claude requires max_tokens; the others treat the
// default as an upper bound.
const (
	ClaudeDefaultMaxTokens = 4096
	GeminiDefaultMaxTokens = 8192
)

// ErrInvalidJSON is returned by ValidateJSON for malformed payloads.
var ErrInvalidJSON = fmt.Errorf("invalid JSON payload")

// ValidateJSON rejects payloads that are not well-formed JSON.
func ValidateJSON(data []byte) error {
	if !json.Valid(data) {
		return ErrInvalidJSON
	}
	return nil
}

// GenToolCallID mints an OpenAI-shaped tool call id.
func GenToolCallID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return "call_" + hex.EncodeToString(b[:])
}

// GenMessageID mints an id with the given prefix ("msg", "resp", "chatcmpl").
func GenMessageID(prefix string) string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}

// ToClaudeToolID maps a tool call id into Claude's toolu_ namespace without
// losing the original id (Claude rejects ids with the call_ prefix shape of
// some clients only when they exceed its charset; keep it stable either way).
func ToClaudeToolID(id string) string {
	if id == "" {
		return GenMessageID("toolu")
	}
	if strings.HasPrefix(id, "toolu_") {
		return id
	}
	return "toolu_" + strings.TrimPrefix(id, "call_")
}

// FromClaudeToolID is the inverse of ToClaudeToolID for round trips.
func FromClaudeToolID(id string) string {
	if strings.HasPrefix(id, "toolu_") {
		return "call_" + strings.TrimPrefix(id, "toolu_")
	}
	return id
}

// ParseToolCallArgs decodes a raw argument string into an object. Invalid
// or empty input yields an empty object rather than an error: argument
// bytes at rest have already passed through the accumulator, and dialects
// that require an object cannot represent a parse failure inline.
func ParseToolCallArgs(args string) map[string]any {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return map[string]any{"value": args}
	}
	return obj
}

// CombineTextParts concatenates the text parts of a message.
func CombineTextParts(msg Message) string {
	count := 0
	var single string
	for _, part := range msg.Parts {
		if part.Type == ContentTypeText && part.Text != "" {
			count++
			single = part.Text
			if count > 1 {
				break
			}
		}
	}
	if count == 0 {
		return ""
	}
	if count == 1 {
		return single
	}
	var b strings.Builder
	b.Grow(count * 256)
	for _, part := range msg.Parts {
		if part.Type == ContentTypeText && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// FirstToolCallIndex returns the index of the first tool_call part, or -1.
func FirstToolCallIndex(parts []ContentPart) int {
	for i := range parts {
		if parts[i].Type == ContentTypeToolCall {
			return i
		}
	}
	return -1
}

// HasToolCalls reports whether any part is a tool call.
func HasToolCalls(parts []ContentPart) bool {
	return FirstToolCallIndex(parts) >= 0
}

// ExtractSSEData strips an SSE "data:" prefix, tolerating any run of spaces
// after the colon, and drops event/comment lines. Returns nil for frames
// that carry no JSON payload.
func ExtractSSEData(frame []byte) []byte {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil
	}
	if bytes.HasPrefix(trimmed, []byte("event:")) || trimmed[0] == ':' {
		return nil
	}
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		trimmed = bytes.TrimLeft(trimmed[len("data:"):], " ")
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

// ---------------------------------------------------------------------------
// Finish / stop reason tables. Each adapter owns a direct table; the IR
// enum is the canonical set.
// ---------------------------------------------------------------------------

// StopFromOpenAI maps an OpenAI finish_reason.
func StopFromOpenAI(reason string) StopReason {
	switch reason {
	case "stop":
		return StopEndTurn
	case "length":
		return StopMaxTokens
	case "tool_calls", "function_call":
		return StopToolUse
	case "content_filter":
		return StopContentFilter
	case "":
		return StopNone
	}
	return StopNone
}

// StopToOpenAI maps an IR stop reason to an OpenAI finish_reason.
func StopToOpenAI(reason StopReason) string {
	switch reason {
	case StopEndTurn, StopSequence:
		return "stop"
	case StopMaxTokens:
		return "length"
	case StopToolUse:
		return "tool_calls"
	case StopContentFilter:
		return "content_filter"
	case StopError:
		return "stop"
	}
	return ""
}

// StopFromClaude maps an Anthropic stop_reason.
func StopFromClaude(reason string) StopReason {
	switch reason {
	case "end_turn":
		return StopEndTurn
	case "max_tokens":
		return StopMaxTokens
	case "tool_use":
		return StopToolUse
	case "stop_sequence":
		return StopSequence
	case "refusal":
		return StopContentFilter
	case "":
		return StopNone
	}
	return StopNone
}

// StopToClaude maps an IR stop reason to an Anthropic stop_reason.
func StopToClaude(reason StopReason) string {
	switch reason {
	case StopEndTurn:
		return "end_turn"
	case StopMaxTokens:
		return "max_tokens"
	case StopToolUse:
		return "tool_use"
	case StopSequence:
		return "stop_sequence"
	case StopContentFilter:
		return "refusal"
	case StopError:
		return "end_turn"
	}
	return "end_turn"
}

// StopFromGemini maps a Gemini finishReason. SAFETY, BLOCKLIST,
// PROHIBITED_CONTENT and SPII all normalize to content_filter.
func StopFromGemini(reason string) StopReason {
	switch reason {
	case "STOP":
		return StopEndTurn
	case "MAX_TOKENS":
		return StopMaxTokens
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return StopContentFilter
	case "RECITATION":
		return StopContentFilter
	case "":
		return StopNone
	}
	return StopNone
}

// StopToGemini maps an IR stop reason to a Gemini finishReason.
func StopToGemini(reason StopReason) string {
	switch reason {
	case StopEndTurn, StopToolUse, StopSequence:
		return "STOP"
	case StopMaxTokens:
		return "MAX_TOKENS"
	case StopContentFilter:
		return "SAFETY"
	case StopError:
		return "OTHER"
	}
	return ""
}

// ---------------------------------------------------------------------------
// JSON Schema <-> Gemini schema. Gemini uses upper-case type enums and a
// restricted keyword set.
// ---------------------------------------------------------------------------

var geminiSchemaTypes = map[string]string{
	"string": "STRING", "number": "NUMBER", "integer": "INTEGER",
	"boolean": "BOOLEAN", "array": "ARRAY", "object": "OBJECT", "null": "NULL",
}

var geminiSchemaKeep = map[string]bool{
	"type": true, "format": true, "description": true, "nullable": true,
	"enum": true, "items": true, "properties": true, "required": true,
	"minimum": true, "maximum": true, "minItems": true, "maxItems": true,
	"minLength": true, "maxLength": true, "pattern": true, "anyOf": true,
	"default": true, "title": true,
}

// SchemaToGemini rewrites a JSON Schema into Gemini's schema dialect:
// lowercase type names become upper-case enums and unsupported keywords
// are stripped.
func SchemaToGemini(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if !geminiSchemaKeep[k] {
			continue
		}
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				if up, ok := geminiSchemaTypes[strings.ToLower(s)]; ok {
					out[k] = up
					continue
				}
			}
			out[k] = v
		case "items":
			if m, ok := v.(map[string]any); ok {
				out[k] = SchemaToGemini(m)
			} else {
				out[k] = v
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				converted := make(map[string]any, len(props))
				for name, sub := range props {
					if m, ok := sub.(map[string]any); ok {
						converted[name] = SchemaToGemini(m)
					} else {
						converted[name] = sub
					}
				}
				out[k] = converted
			} else {
				out[k] = v
			}
		case "anyOf":
			if arr, ok := v.([]any); ok {
				converted := make([]any, 0, len(arr))
				for _, sub := range arr {
					if m, ok := sub.(map[string]any); ok {
						converted = append(converted, SchemaToGemini(m))
					} else {
						converted = append(converted, sub)
					}
				}
				out[k] = converted
			} else {
				out[k] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}

// SchemaFromGemini rewrites a Gemini schema back into JSON Schema casing.
func SchemaFromGemini(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				out[k] = strings.ToLower(s)
				continue
			}
			out[k] = v
		case "items":
			if m, ok := v.(map[string]any); ok {
				out[k] = SchemaFromGemini(m)
			} else {
				out[k] = v
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				converted := make(map[string]any, len(props))
				for name, sub := range props {
					if m, ok := sub.(map[string]any); ok {
						converted[name] = SchemaFromGemini(m)
					} else {
						converted[name] = sub
					}
				}
				out[k] = converted
			} else {
				out[k] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}

// SchemaFromGJSON decodes a gjson schema object into a map.
func SchemaFromGJSON(res gjson.Result) map[string]any {
	if !res.Exists() || !res.IsObject() {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(res.Raw), &m); err != nil {
		return nil
	}
	return m
}

// MetaFromGJSON decodes arbitrary passthrough metadata.
func MetaFromGJSON(res gjson.Result) map[string]any {
	return SchemaFromGJSON(res)
}
