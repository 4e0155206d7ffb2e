// Package to_ir contains the per-dialect parsers that lift wire payloads
// into the IR.
package to_ir

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// OpenAIParser handles the OpenAI Chat Completions dialect.
type OpenAIParser struct{}

func (p *OpenAIParser) Format() provider.Format { return provider.FormatOpenAI }

func (p *OpenAIParser) IsSupportedRequest(raw []byte) bool {
	parsed := gjson.ParseBytes(raw)
	return parsed.Get("messages").IsArray() && !parsed.Get("system").Exists() &&
		!parsed.Get("contents").Exists() && !parsed.Get("input").Exists()
}

func (p *OpenAIParser) IsSupportedModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-") ||
		strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") ||
		strings.Contains(m, "codex")
}

// ParseRequest lifts a Chat Completions request into the IR.
func (p *OpenAIParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", translator.ErrInvalidRequest, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("messages").IsArray() {
		return nil, fmt.Errorf("%w: openai request missing messages array", translator.ErrInvalidRequest)
	}

	req := &ir.UnifiedRequest{Model: parsed.Get("model").String()}

	for _, msg := range parsed.Get("messages").Array() {
		role := msg.Get("role").String()
		switch role {
		case "system", "developer":
			text := openaiContentText(msg.Get("content"))
			if text == "" {
				continue
			}
			if req.System != "" {
				req.System += "\n"
			}
			req.System += text
			req.SystemBlocks = append(req.SystemBlocks, ir.SystemBlock{Text: text})
		case "user":
			parts := openaiContentParts(msg.Get("content"))
			if len(parts) > 0 {
				req.Messages = append(req.Messages, ir.Message{Role: ir.RoleUser, Parts: parts})
			}
		case "assistant":
			parts := openaiContentParts(msg.Get("content"))
			for _, tc := range msg.Get("tool_calls").Array() {
				if tc.Get("type").String() != "function" && tc.Get("type").Exists() {
					continue
				}
				parts = append(parts, ir.ContentPart{
					Type:       ir.ContentTypeToolCall,
					ToolCallID: tc.Get("id").String(),
					Name:       tc.Get("function.name").String(),
					Args:       tc.Get("function.arguments").String(),
				})
			}
			if len(parts) > 0 {
				req.Messages = append(req.Messages, ir.Message{Role: ir.RoleAssistant, Parts: parts})
			}
		case "tool":
			req.Messages = append(req.Messages, ir.Message{Role: ir.RoleTool, Parts: []ir.ContentPart{{
				Type:      ir.ContentTypeToolResult,
				ResultFor: msg.Get("tool_call_id").String(),
				Result:    openaiContentText(msg.Get("content")),
			}}})
		}
	}

	for _, tool := range parsed.Get("tools").Array() {
		fn := tool.Get("function")
		if !fn.Exists() {
			continue
		}
		req.Tools = append(req.Tools, ir.ToolDefinition{
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
			Parameters:  ir.SchemaFromGJSON(fn.Get("parameters")),
		})
	}

	if tc := parsed.Get("tool_choice"); tc.Exists() {
		req.ToolChoice = parseOpenAIToolChoice(tc)
	}

	if v := parsed.Get("max_completion_tokens"); v.Exists() {
		req.MaxTokens = ir.Ptr(int(v.Int()))
	} else if v := parsed.Get("max_tokens"); v.Exists() {
		req.MaxTokens = ir.Ptr(int(v.Int()))
	}
	if v := parsed.Get("temperature"); v.Exists() {
		req.Temperature = ir.Ptr(v.Float())
	}
	if v := parsed.Get("top_p"); v.Exists() {
		req.TopP = ir.Ptr(v.Float())
	}
	if v := parsed.Get("stop"); v.Exists() {
		if v.IsArray() {
			for _, s := range v.Array() {
				req.StopSequences = append(req.StopSequences, s.String())
			}
		} else {
			req.StopSequences = append(req.StopSequences, v.String())
		}
	}
	if v := parsed.Get("stream"); v.Exists() {
		req.Stream = ir.Ptr(v.Bool())
	}
	req.UserID = parsed.Get("user").String()
	if v := parsed.Get("reasoning_effort"); v.Exists() && v.String() != "none" {
		req.Thinking = &ir.ThinkingConfig{Enabled: true}
	}
	return req, nil
}

func parseOpenAIToolChoice(tc gjson.Result) *ir.ToolChoice {
	if tc.IsObject() {
		return &ir.ToolChoice{Mode: ir.ToolChoiceTool, Name: tc.Get("function.name").String()}
	}
	switch tc.String() {
	case "none":
		return &ir.ToolChoice{Mode: ir.ToolChoiceNone}
	case "required":
		return &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
	case "auto":
		return &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
	}
	return nil
}

// openaiContentText flattens a string-or-array content field to text.
func openaiContentText(content gjson.Result) string {
	if content.IsArray() {
		var b strings.Builder
		for _, part := range content.Array() {
			if part.Get("type").String() == "text" {
				b.WriteString(part.Get("text").String())
			}
		}
		return b.String()
	}
	return content.String()
}

// openaiContentParts lifts a string-or-array content field into IR parts.
func openaiContentParts(content gjson.Result) []ir.ContentPart {
	if !content.Exists() || content.Type == gjson.Null {
		return nil
	}
	if !content.IsArray() {
		if content.String() == "" {
			return nil
		}
		return []ir.ContentPart{{Type: ir.ContentTypeText, Text: content.String()}}
	}
	var parts []ir.ContentPart
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "text":
			parts = append(parts, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
		case "image_url":
			url := part.Get("image_url.url").String()
			if mime, data, ok := splitDataURI(url); ok {
				parts = append(parts, ir.ContentPart{Type: ir.ContentTypeImage, MimeType: mime, Data: data})
			} else if url != "" {
				parts = append(parts, ir.ContentPart{Type: ir.ContentTypeImage, URL: url})
			}
		}
	}
	return parts
}

// splitDataURI decodes "data:<mime>;base64,<payload>" URIs.
func splitDataURI(uri string) (mime, data string, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", false
	}
	rest := uri[len("data:"):]
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len(";base64,"):], true
}

// ParseResponse lifts a full Chat Completions response into the IR.
func (p *OpenAIParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: openai response: %v", translator.ErrInvalidResponse, err)
	}
	parsed := gjson.ParseBytes(raw)
	choice := parsed.Get("choices.0")
	if !choice.Exists() {
		return nil, fmt.Errorf("%w: openai response missing choices", translator.ErrInvalidResponse)
	}

	resp := &ir.UnifiedResponse{
		ID:    parsed.Get("id").String(),
		Model: parsed.Get("model").String(),
	}

	msg := choice.Get("message")
	if reasoning := msg.Get("reasoning_content"); reasoning.String() != "" {
		resp.Content = append(resp.Content, ir.ContentPart{
			Type:      ir.ContentTypeThinking,
			Thinking:  reasoning.String(),
			Signature: msg.Get("reasoning_signature").String(),
		})
	}
	if text := openaiContentText(msg.Get("content")); text != "" {
		resp.Content = append(resp.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: text})
	}
	for _, tc := range msg.Get("tool_calls").Array() {
		args := tc.Get("function.arguments").String()
		resp.Content = append(resp.Content, ir.ContentPart{
			Type:       ir.ContentTypeToolCall,
			ToolCallID: tc.Get("id").String(),
			Name:       tc.Get("function.name").String(),
			Args:       args,
			ArgsObject: ir.ParseToolCallArgs(args),
		})
	}

	resp.StopReason = ir.StopFromOpenAI(choice.Get("finish_reason").String())
	if ir.HasToolCalls(resp.Content) && resp.StopReason == ir.StopEndTurn {
		resp.StopReason = ir.StopToolUse
	}
	resp.Usage = parseOpenAIUsage(parsed.Get("usage"))
	return resp, nil
}

func parseOpenAIUsage(usage gjson.Result) *ir.Usage {
	if !usage.Exists() {
		return nil
	}
	return &ir.Usage{
		InputTokens:    int(usage.Get("prompt_tokens").Int()),
		OutputTokens:   int(usage.Get("completion_tokens").Int()),
		TotalTokens:    int(usage.Get("total_tokens").Int()),
		CachedTokens:   int(usage.Get("prompt_tokens_details.cached_tokens").Int()),
		ThinkingTokens: int(usage.Get("completion_tokens_details.reasoning_tokens").Int()),
	}
}

// ParseStreamChunk lifts one Chat Completions SSE payload into IR chunks.
func (p *OpenAIParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if string(data) == "[DONE]" {
		return []ir.StreamChunk{{Type: ir.ChunkDone}}, nil
	}
	if ir.ValidateJSON(data) != nil {
		st.ParseErrors++
		return nil, nil
	}

	parsed := gjson.ParseBytes(data)
	var chunks []ir.StreamChunk

	choice := parsed.Get("choices.0")
	delta := choice.Get("delta")

	if reasoning := delta.Get("reasoning_content"); reasoning.String() != "" {
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{
			Thinking:  reasoning.String(),
			Signature: delta.Get("reasoning_signature").String(),
		}})
	}
	if content := delta.Get("content"); content.String() != "" {
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkContent, Delta: &ir.StreamDelta{Text: content.String()}})
	}
	for _, tc := range delta.Get("tool_calls").Array() {
		tcDelta := &ir.ToolCallDelta{
			Index:       int(tc.Get("index").Int()),
			ID:          tc.Get("id").String(),
			Name:        tc.Get("function.name").String(),
			PartialJSON: tc.Get("function.arguments").String(),
		}
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{ToolCall: tcDelta}})
	}

	if usage := parsed.Get("usage"); usage.Exists() && usage.IsObject() {
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkUsage, Usage: parseOpenAIUsage(usage)})
	}
	if fr := choice.Get("finish_reason"); fr.Exists() && fr.Type != gjson.Null && fr.String() != "" {
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkDone, StopReason: ir.StopFromOpenAI(fr.String())})
	}
	return chunks, nil
}
