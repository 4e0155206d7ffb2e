// Package from_ir contains the per-dialect converters that emit wire
// payloads from the IR.
package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// OpenAIConverter emits the OpenAI Chat Completions dialect.
type OpenAIConverter struct{}

func (c *OpenAIConverter) Provider() provider.Format { return provider.FormatOpenAI }

func (c *OpenAIConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		StreamParser:      translator.StreamSSEStandard,
	}
}

// TransformRequest emits a Chat Completions request.
func (c *OpenAIConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	root := map[string]any{"model": model}

	messages := make([]map[string]any, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openaiMessages(msg)...)
	}
	root["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			fn := map[string]any{"name": tool.Name}
			if tool.Description != "" {
				fn["description"] = tool.Description
			}
			if tool.Parameters != nil {
				fn["parameters"] = tool.Parameters
			}
			tools = append(tools, map[string]any{"type": "function", "function": fn})
		}
		root["tools"] = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ir.ToolChoiceTool:
			root["tool_choice"] = map[string]any{
				"type":     "function",
				"function": map[string]any{"name": req.ToolChoice.Name},
			}
		case ir.ToolChoiceNone, ir.ToolChoiceRequired, ir.ToolChoiceAuto:
			root["tool_choice"] = string(req.ToolChoice.Mode)
		}
	}

	if req.MaxTokens != nil {
		root["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["top_p"] = *req.TopP
	}
	if len(req.StopSequences) > 0 {
		root["stop"] = req.StopSequences
	}
	if req.Stream != nil && *req.Stream {
		root["stream"] = true
		root["stream_options"] = map[string]any{"include_usage": true}
	}
	if req.UserID != "" {
		root["user"] = req.UserID
	}
	return json.Marshal(root)
}

// openaiMessages expands one IR turn into Chat Completions messages. A tool
// turn becomes one "tool" message per result; thinking parts are dropped
// since the dialect has no inbound reasoning field.
func openaiMessages(msg ir.Message) []map[string]any {
	if msg.Role == ir.RoleTool {
		out := make([]map[string]any, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			if part.Type != ir.ContentTypeToolResult {
				continue
			}
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": part.ResultFor,
				"content":      part.Result,
			})
		}
		return out
	}

	out := map[string]any{"role": string(msg.Role)}
	var content []map[string]any
	textOnly := true
	var toolCalls []map[string]any
	var toolResults []map[string]any

	for _, part := range msg.Parts {
		switch part.Type {
		case ir.ContentTypeText:
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		case ir.ContentTypeImage:
			url := part.URL
			if url == "" {
				url = "data:" + part.MimeType + ";base64," + part.Data
			}
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": url},
			})
			textOnly = false
		case ir.ContentTypeToolCall:
			toolCalls = append(toolCalls, map[string]any{
				"id":   part.ToolCallID,
				"type": "function",
				"function": map[string]any{
					"name":      part.Name,
					"arguments": toolArgsString(part),
				},
			})
		case ir.ContentTypeToolResult:
			// Tool results carried on a non-tool turn still need their own
			// tool message.
			toolResults = append(toolResults, map[string]any{
				"role":         "tool",
				"tool_call_id": part.ResultFor,
				"content":      part.Result,
			})
		}
	}

	if textOnly {
		var b string
		for _, c := range content {
			b += c["text"].(string)
		}
		if b != "" || len(toolCalls) == 0 {
			out["content"] = b
		}
	} else {
		out["content"] = content
	}
	if len(toolCalls) > 0 {
		out["tool_calls"] = toolCalls
	}

	result := []map[string]any{out}
	return append(result, toolResults...)
}

// toolArgsString renders tool-call arguments as a JSON string, preferring
// the verbatim bytes when present.
func toolArgsString(part ir.ContentPart) string {
	if part.Args != "" {
		return part.Args
	}
	if part.ArgsObject != nil {
		s, err := json.MarshalString(part.ArgsObject)
		if err == nil {
			return s
		}
	}
	return "{}"
}

// TransformResponse emits a full Chat Completions response.
func (c *OpenAIConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	id := resp.ID
	if id == "" {
		id = ir.GenMessageID("chatcmpl")
	}

	msg := map[string]any{"role": "assistant"}
	var text, thinking string
	var toolCalls []map[string]any
	for _, part := range resp.Content {
		switch part.Type {
		case ir.ContentTypeText:
			text += part.Text
		case ir.ContentTypeThinking:
			thinking += part.Thinking
		case ir.ContentTypeToolCall:
			toolCalls = append(toolCalls, map[string]any{
				"id":   part.ToolCallID,
				"type": "function",
				"function": map[string]any{
					"name":      part.Name,
					"arguments": toolArgsString(part),
				},
			})
		}
	}
	if text != "" || len(toolCalls) == 0 {
		msg["content"] = text
	} else {
		msg["content"] = nil
	}
	if thinking != "" {
		msg["reasoning_content"] = thinking
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}

	stop := resp.StopReason
	if len(toolCalls) > 0 && stop != ir.StopMaxTokens {
		stop = ir.StopToolUse
	}
	root := map[string]any{
		"id":      id,
		"object":  "chat.completion",
		"created": nowUnix(),
		"model":   resp.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       msg,
			"finish_reason": ir.StopToOpenAI(stop),
		}},
	}
	if resp.Usage != nil {
		root["usage"] = openaiUsage(resp.Usage)
	}
	return json.Marshal(root)
}

func openaiUsage(u *ir.Usage) map[string]any {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	out := map[string]any{
		"prompt_tokens":     u.InputTokens,
		"completion_tokens": u.OutputTokens,
		"total_tokens":      total,
	}
	if u.CachedTokens > 0 {
		out["prompt_tokens_details"] = map[string]any{"cached_tokens": u.CachedTokens}
	}
	if u.ThinkingTokens > 0 {
		out["completion_tokens_details"] = map[string]any{"reasoning_tokens": u.ThinkingTokens}
	}
	return out
}

// TransformStreamChunk emits Chat Completions SSE frames for one IR chunk.
func (c *OpenAIConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	switch chunk.Type {
	case ir.ChunkContent:
		if chunk.Delta == nil || chunk.Delta.Text == "" {
			return nil, nil
		}
		return c.deltaFrame(st, map[string]any{"content": chunk.Delta.Text}, nil)

	case ir.ChunkThinking:
		if chunk.Delta == nil || chunk.Delta.Thinking == "" {
			return nil, nil
		}
		delta := map[string]any{"reasoning_content": chunk.Delta.Thinking}
		if chunk.Delta.Signature != "" {
			delta["reasoning_signature"] = chunk.Delta.Signature
		}
		return c.deltaFrame(st, delta, nil)

	case ir.ChunkToolCall:
		if chunk.Delta == nil || chunk.Delta.ToolCall == nil {
			return nil, nil
		}
		tc := chunk.Delta.ToolCall
		st.HasToolCalls = true
		entry := map[string]any{"index": tc.Index}
		if tc.ID != "" {
			entry["id"] = tc.ID
			entry["type"] = "function"
		}
		fn := map[string]any{}
		if tc.Name != "" {
			fn["name"] = tc.Name
		}
		if args := tc.Args + tc.PartialJSON; args != "" {
			fn["arguments"] = args
		}
		if len(fn) > 0 {
			entry["function"] = fn
		}
		return c.deltaFrame(st, map[string]any{"tool_calls": []map[string]any{entry}}, nil)

	case ir.ChunkUsage:
		if chunk.Usage == nil {
			return nil, nil
		}
		root := c.envelope(st)
		root["choices"] = ir.EmptySlice
		root["usage"] = openaiUsage(chunk.Usage)
		data, err := json.Marshal(root)
		if err != nil {
			return nil, err
		}
		return [][]byte{ir.BuildSSEChunk(data)}, nil

	case ir.ChunkDone:
		if !st.MarkFinishSent() {
			return [][]byte{ir.DoneSentinel}, nil
		}
		stop := chunk.StopReason
		if st.HasToolCalls && stop != ir.StopMaxTokens {
			stop = ir.StopToolUse
		}
		if stop == ir.StopNone {
			stop = ir.StopEndTurn
		}
		frames, err := c.deltaFrame(st, ir.EmptyMap, ir.Ptr(ir.StopToOpenAI(stop)))
		if err != nil {
			return nil, err
		}
		if chunk.Usage != nil {
			root := c.envelope(st)
			root["choices"] = ir.EmptySlice
			root["usage"] = openaiUsage(chunk.Usage)
			data, err := json.Marshal(root)
			if err != nil {
				return nil, err
			}
			frames = append(frames, ir.BuildSSEChunk(data))
		}
		return append(frames, ir.DoneSentinel), nil

	case ir.ChunkError:
		msg := "upstream stream error"
		if chunk.Err != nil {
			msg = chunk.Err.Error()
		}
		data, err := json.Marshal(map[string]any{
			"error": map[string]any{"message": msg, "type": "upstream_error"},
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{ir.BuildSSEChunk(data), ir.DoneSentinel}, nil
	}
	return nil, nil
}

func (c *OpenAIConverter) envelope(st *ir.StreamEmitState) map[string]any {
	return map[string]any{
		"id":      st.MessageID,
		"object":  "chat.completion.chunk",
		"created": st.Created,
		"model":   st.Model,
	}
}

func (c *OpenAIConverter) deltaFrame(st *ir.StreamEmitState, delta map[string]any, finish *string) ([][]byte, error) {
	if !st.RoleSent {
		st.RoleSent = true
		withRole := make(map[string]any, len(delta)+1)
		for k, v := range delta {
			withRole[k] = v
		}
		withRole["role"] = "assistant"
		delta = withRole
	}
	choice := map[string]any{"index": 0, "delta": delta}
	if finish != nil {
		choice["finish_reason"] = *finish
	} else {
		choice["finish_reason"] = nil
	}
	root := c.envelope(st)
	root["choices"] = []map[string]any{choice}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	return [][]byte{ir.BuildSSEChunk(data)}, nil
}
