package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// ClaudeConverter emits the Anthropic Messages dialect.
type ClaudeConverter struct{}

func (c *ClaudeConverter) Provider() provider.Format { return provider.FormatClaude }

func (c *ClaudeConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		DefaultMaxTokens:  ir.ClaudeDefaultMaxTokens,
		StreamParser:      translator.StreamSSEStandard,
	}
}

// TransformRequest emits a Messages request. max_tokens is required by the
// dialect, so a default is filled in when the IR carries none.
func (c *ClaudeConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	maxTokens := ir.ClaudeDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	root := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
	}

	if len(req.SystemBlocks) > 0 {
		blocks := make([]map[string]any, 0, len(req.SystemBlocks))
		for _, sb := range req.SystemBlocks {
			block := map[string]any{"type": "text", "text": sb.Text}
			if sb.CacheControl != nil {
				block["cache_control"] = cacheControlMap(sb.CacheControl)
			}
			blocks = append(blocks, block)
		}
		root["system"] = blocks
	} else if req.System != "" {
		root["system"] = req.System
	}

	messages := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if m := claudeMessage(msg); m != nil {
			messages = append(messages, m)
		}
	}
	root["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			t := map[string]any{"name": tool.Name}
			if tool.Description != "" {
				t["description"] = tool.Description
			}
			schema := tool.Parameters
			if schema == nil {
				schema = map[string]any{"type": "object", "properties": ir.EmptyMap}
			}
			t["input_schema"] = schema
			tools = append(tools, t)
		}
		root["tools"] = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ir.ToolChoiceAuto:
			root["tool_choice"] = map[string]any{"type": "auto"}
		case ir.ToolChoiceRequired:
			root["tool_choice"] = map[string]any{"type": "any"}
		case ir.ToolChoiceNone:
			root["tool_choice"] = map[string]any{"type": "none"}
		case ir.ToolChoiceTool:
			root["tool_choice"] = map[string]any{"type": "tool", "name": req.ToolChoice.Name}
		}
	}

	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		root["top_k"] = *req.TopK
	}
	if len(req.StopSequences) > 0 {
		root["stop_sequences"] = req.StopSequences
	}
	if req.Stream != nil && *req.Stream {
		root["stream"] = true
	}
	if req.UserID != "" {
		root["metadata"] = map[string]any{"user_id": req.UserID}
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		thinking := map[string]any{"type": "enabled"}
		if req.Thinking.Budget > 0 {
			thinking["budget_tokens"] = req.Thinking.Budget
		}
		root["thinking"] = thinking
	}
	return json.Marshal(root)
}

func cacheControlMap(cc *ir.CacheControl) map[string]any {
	out := map[string]any{"type": cc.Type}
	if cc.TTL != "" {
		out["ttl"] = cc.TTL
	}
	return out
}

// claudeMessage emits one IR turn as a Messages turn. Tool turns become
// user turns carrying tool_result blocks.
func claudeMessage(msg ir.Message) map[string]any {
	role := "user"
	if msg.Role == ir.RoleAssistant {
		role = "assistant"
	}

	blocks := make([]map[string]any, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case ir.ContentTypeText:
			block := map[string]any{"type": "text", "text": part.Text}
			if part.CacheControl != nil {
				block["cache_control"] = cacheControlMap(part.CacheControl)
			}
			blocks = append(blocks, block)
		case ir.ContentTypeImage:
			var source map[string]any
			if part.URL != "" {
				source = map[string]any{"type": "url", "url": part.URL}
			} else {
				source = map[string]any{
					"type":       "base64",
					"media_type": part.MimeType,
					"data":       part.Data,
				}
			}
			blocks = append(blocks, map[string]any{"type": "image", "source": source})
		case ir.ContentTypeToolCall:
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    ir.ToClaudeToolID(part.ToolCallID),
				"name":  part.Name,
				"input": claudeToolInput(part),
			})
		case ir.ContentTypeToolResult:
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": ir.ToClaudeToolID(part.ResultFor),
				"content":     part.Result,
			}
			if part.IsError {
				block["is_error"] = true
			}
			blocks = append(blocks, block)
		case ir.ContentTypeThinking:
			if part.Redacted {
				blocks = append(blocks, map[string]any{
					"type": "redacted_thinking",
					"data": part.Thinking,
				})
				continue
			}
			block := map[string]any{"type": "thinking", "thinking": part.Thinking}
			if part.Signature != "" {
				block["signature"] = part.Signature
			}
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return map[string]any{"role": role, "content": blocks}
}

// claudeToolInput renders tool arguments as the object the dialect requires.
func claudeToolInput(part ir.ContentPart) map[string]any {
	if part.ArgsObject != nil {
		return part.ArgsObject
	}
	return ir.ParseToolCallArgs(part.Args)
}

// TransformResponse emits a full Messages response.
func (c *ClaudeConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	id := resp.ID
	if id == "" {
		id = ir.GenMessageID("msg")
	}

	content := make([]map[string]any, 0, len(resp.Content))
	hasTools := false
	for _, part := range resp.Content {
		switch part.Type {
		case ir.ContentTypeText:
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		case ir.ContentTypeThinking:
			if part.Redacted {
				content = append(content, map[string]any{"type": "redacted_thinking", "data": part.Thinking})
				continue
			}
			block := map[string]any{"type": "thinking", "thinking": part.Thinking}
			if part.Signature != "" {
				block["signature"] = part.Signature
			}
			content = append(content, block)
		case ir.ContentTypeToolCall:
			hasTools = true
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    ir.ToClaudeToolID(part.ToolCallID),
				"name":  part.Name,
				"input": claudeToolInput(part),
			})
		}
	}

	stop := resp.StopReason
	if hasTools && stop != ir.StopMaxTokens {
		stop = ir.StopToolUse
	}
	root := map[string]any{
		"id":            id,
		"type":          "message",
		"role":          "assistant",
		"model":         resp.Model,
		"content":       content,
		"stop_reason":   ir.StopToClaude(stop),
		"stop_sequence": nil,
	}
	if resp.Usage != nil {
		root["usage"] = claudeUsage(resp.Usage)
	} else {
		root["usage"] = map[string]any{"input_tokens": 0, "output_tokens": 0}
	}
	return json.Marshal(root)
}

func claudeUsage(u *ir.Usage) map[string]any {
	out := map[string]any{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
	}
	if u.CachedTokens > 0 {
		out["cache_read_input_tokens"] = u.CachedTokens
	}
	return out
}

// TransformStreamChunk emits Messages SSE frames for one IR chunk, running
// the dialect's block state machine: message_start first, one open block at
// a time, blocks closed before the next opens, message_delta + message_stop
// exactly once at the end.
func (c *ClaudeConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	var frames [][]byte

	ensureStart := func() error {
		if st.MessageStartSent {
			return nil
		}
		st.MessageStartSent = true
		data, err := json.Marshal(map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            st.MessageID,
				"type":          "message",
				"role":          "assistant",
				"model":         st.Model,
				"content":       ir.EmptySlice,
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		})
		if err != nil {
			return err
		}
		frames = append(frames, ir.BuildSSEEvent("message_start", data))
		ping, err := json.Marshal(map[string]any{"type": "ping"})
		if err != nil {
			return err
		}
		frames = append(frames, ir.BuildSSEEvent("ping", ping))
		return nil
	}

	closeTextBlock := func() error {
		if !st.TextBlockStarted {
			return nil
		}
		st.TextBlockStarted = false
		st.TextBlockIsThink = false
		data, err := json.Marshal(map[string]any{
			"type":  "content_block_stop",
			"index": st.TextBlockIndex,
		})
		if err != nil {
			return err
		}
		frames = append(frames, ir.BuildSSEEvent("content_block_stop", data))
		return nil
	}

	closeToolBlock := func() error {
		if st.OpenToolBlock < 0 {
			return nil
		}
		data, err := json.Marshal(map[string]any{
			"type":  "content_block_stop",
			"index": st.OpenToolWireIdx,
		})
		if err != nil {
			return err
		}
		frames = append(frames, ir.BuildSSEEvent("content_block_stop", data))
		st.OpenToolBlock = -1
		return nil
	}

	openTextBlock := func(thinking bool) error {
		if st.TextBlockStarted && st.TextBlockIsThink == thinking {
			return nil
		}
		if err := closeTextBlock(); err != nil {
			return err
		}
		if err := closeToolBlock(); err != nil {
			return err
		}
		inner := map[string]any{"type": "text", "text": ""}
		if thinking {
			inner = map[string]any{"type": "thinking", "thinking": ""}
		}
		st.TextBlockStarted = true
		st.TextBlockIsThink = thinking
		st.TextBlockIndex = st.NextBlockIndex
		st.NextBlockIndex++
		data, err := json.Marshal(map[string]any{
			"type":          "content_block_start",
			"index":         st.TextBlockIndex,
			"content_block": inner,
		})
		if err != nil {
			return err
		}
		frames = append(frames, ir.BuildSSEEvent("content_block_start", data))
		return nil
	}

	switch chunk.Type {
	case ir.ChunkContent:
		if chunk.Delta == nil || chunk.Delta.Text == "" {
			return nil, nil
		}
		if err := ensureStart(); err != nil {
			return nil, err
		}
		if err := openTextBlock(false); err != nil {
			return nil, err
		}
		data, err := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": st.TextBlockIndex,
			"delta": map[string]any{"type": "text_delta", "text": chunk.Delta.Text},
		})
		if err != nil {
			return nil, err
		}
		return append(frames, ir.BuildSSEEvent("content_block_delta", data)), nil

	case ir.ChunkThinking:
		if chunk.Delta == nil {
			return nil, nil
		}
		if err := ensureStart(); err != nil {
			return nil, err
		}
		if chunk.Delta.Redacted {
			if err := closeTextBlock(); err != nil {
				return nil, err
			}
			if err := closeToolBlock(); err != nil {
				return nil, err
			}
			idx := st.NextBlockIndex
			st.NextBlockIndex++
			start, err := json.Marshal(map[string]any{
				"type":  "content_block_start",
				"index": idx,
				"content_block": map[string]any{
					"type": "redacted_thinking",
					"data": chunk.Delta.Thinking,
				},
			})
			if err != nil {
				return nil, err
			}
			stop, err := json.Marshal(map[string]any{"type": "content_block_stop", "index": idx})
			if err != nil {
				return nil, err
			}
			return append(frames,
				ir.BuildSSEEvent("content_block_start", start),
				ir.BuildSSEEvent("content_block_stop", stop)), nil
		}
		if err := openTextBlock(true); err != nil {
			return nil, err
		}
		if chunk.Delta.Thinking != "" {
			data, err := json.Marshal(map[string]any{
				"type":  "content_block_delta",
				"index": st.TextBlockIndex,
				"delta": map[string]any{"type": "thinking_delta", "thinking": chunk.Delta.Thinking},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, ir.BuildSSEEvent("content_block_delta", data))
		}
		if chunk.Delta.Signature != "" {
			data, err := json.Marshal(map[string]any{
				"type":  "content_block_delta",
				"index": st.TextBlockIndex,
				"delta": map[string]any{"type": "signature_delta", "signature": chunk.Delta.Signature},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, ir.BuildSSEEvent("content_block_delta", data))
		}
		return frames, nil

	case ir.ChunkToolCall:
		if chunk.Delta == nil || chunk.Delta.ToolCall == nil {
			return nil, nil
		}
		tc := chunk.Delta.ToolCall
		st.HasToolCalls = true
		st.Accumulator.Feed(tc)
		if err := ensureStart(); err != nil {
			return nil, err
		}
		if st.OpenToolBlock != tc.Index {
			if err := closeTextBlock(); err != nil {
				return nil, err
			}
			if err := closeToolBlock(); err != nil {
				return nil, err
			}
			st.OpenToolBlock = tc.Index
			st.OpenToolWireIdx = st.NextBlockIndex
			st.NextBlockIndex++
			st.ToolBlockCount++
			id := tc.ID
			if id == "" {
				id = ir.GenToolCallID()
			}
			start, err := json.Marshal(map[string]any{
				"type":  "content_block_start",
				"index": st.OpenToolWireIdx,
				"content_block": map[string]any{
					"type":  "tool_use",
					"id":    ir.ToClaudeToolID(id),
					"name":  tc.Name,
					"input": ir.EmptyMap,
				},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, ir.BuildSSEEvent("content_block_start", start))
		}
		if partial := tc.Args + tc.PartialJSON; partial != "" {
			data, err := json.Marshal(map[string]any{
				"type":  "content_block_delta",
				"index": st.OpenToolWireIdx,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": partial},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, ir.BuildSSEEvent("content_block_delta", data))
		}
		return frames, nil

	case ir.ChunkUsage:
		if chunk.Usage != nil {
			if st.FinalUsage == nil {
				st.FinalUsage = &ir.Usage{}
			}
			mergeUsage(st.FinalUsage, chunk.Usage)
		}
		return nil, nil

	case ir.ChunkDone:
		if !st.MarkFinishSent() {
			return nil, nil
		}
		if err := ensureStart(); err != nil {
			return nil, err
		}
		if err := closeTextBlock(); err != nil {
			return nil, err
		}
		if err := closeToolBlock(); err != nil {
			return nil, err
		}
		stop := chunk.StopReason
		if st.HasToolCalls && stop != ir.StopMaxTokens {
			stop = ir.StopToolUse
		}
		if stop == ir.StopNone {
			stop = ir.StopEndTurn
		}
		usage := st.FinalUsage
		if chunk.Usage != nil {
			if usage == nil {
				usage = &ir.Usage{}
			}
			mergeUsage(usage, chunk.Usage)
		}
		outTokens := 0
		inTokens := 0
		if usage != nil {
			outTokens = usage.OutputTokens
			inTokens = usage.InputTokens
		}
		delta, err := json.Marshal(map[string]any{
			"type": "message_delta",
			"delta": map[string]any{
				"stop_reason":   ir.StopToClaude(stop),
				"stop_sequence": nil,
			},
			"usage": map[string]any{
				"input_tokens":  inTokens,
				"output_tokens": outTokens,
			},
		})
		if err != nil {
			return nil, err
		}
		stopFrame, err := json.Marshal(map[string]any{"type": "message_stop"})
		if err != nil {
			return nil, err
		}
		return append(frames,
			ir.BuildSSEEvent("message_delta", delta),
			ir.BuildSSEEvent("message_stop", stopFrame)), nil

	case ir.ChunkError:
		msg := "upstream stream error"
		if chunk.Err != nil {
			msg = chunk.Err.Error()
		}
		data, err := json.Marshal(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "api_error", "message": msg},
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{ir.BuildSSEEvent("error", data)}, nil
	}
	return nil, nil
}

// mergeUsage folds src counters into dst, keeping the larger value per
// field since dialects report input and output at different stream points.
func mergeUsage(dst, src *ir.Usage) {
	if src.InputTokens > dst.InputTokens {
		dst.InputTokens = src.InputTokens
	}
	if src.OutputTokens > dst.OutputTokens {
		dst.OutputTokens = src.OutputTokens
	}
	if src.CachedTokens > dst.CachedTokens {
		dst.CachedTokens = src.CachedTokens
	}
	if src.ThinkingTokens > dst.ThinkingTokens {
		dst.ThinkingTokens = src.ThinkingTokens
	}
	total := dst.InputTokens + dst.OutputTokens
	if src.TotalTokens > total {
		total = src.TotalTokens
	}
	dst.TotalTokens = total
}
