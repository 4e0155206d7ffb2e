package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// AISDKConverter emits the AI-SDK language-model protocol.
type AISDKConverter struct{}

func (c *AISDKConverter) Provider() provider.Format { return provider.FormatAISDK }

func (c *AISDKConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		StreamParser:      translator.StreamSSEStandard,
	}
}

// StopToAISDK maps an IR stop reason to the hyphenated AI-SDK form.
func StopToAISDK(reason ir.StopReason) string {
	switch reason {
	case ir.StopEndTurn, ir.StopSequence:
		return "stop"
	case ir.StopMaxTokens:
		return "length"
	case ir.StopToolUse:
		return "tool-calls"
	case ir.StopContentFilter:
		return "content-filter"
	case ir.StopError:
		return "error"
	}
	return "other"
}

// TransformRequest emits an AI-SDK request.
func (c *AISDKConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	root := map[string]any{}
	if model != "" {
		root["model"] = model
	}

	var prompt []map[string]any
	if req.System != "" {
		prompt = append(prompt, map[string]any{"role": "system", "content": req.System})
	}
	for _, msg := range req.Messages {
		var content []map[string]any
		for _, part := range msg.Parts {
			switch part.Type {
			case ir.ContentTypeText:
				content = append(content, map[string]any{"type": "text", "text": part.Text})
			case ir.ContentTypeThinking:
				content = append(content, map[string]any{"type": "reasoning", "text": part.Thinking})
			case ir.ContentTypeImage:
				file := map[string]any{"type": "file", "mediaType": part.MimeType}
				if part.Data != "" {
					file["data"] = part.Data
				} else {
					file["url"] = part.URL
				}
				content = append(content, file)
			case ir.ContentTypeToolCall:
				content = append(content, map[string]any{
					"type":       "tool-call",
					"toolCallId": part.ToolCallID,
					"toolName":   part.Name,
					"input":      claudeToolInput(part),
				})
			case ir.ContentTypeToolResult:
				result := map[string]any{
					"type":       "tool-result",
					"toolCallId": part.ResultFor,
					"output":     map[string]any{"type": "text", "value": part.Result},
				}
				if part.IsError {
					result["isError"] = true
				}
				content = append(content, result)
			}
		}
		if len(content) == 0 {
			continue
		}
		prompt = append(prompt, map[string]any{"role": string(msg.Role), "content": content})
	}
	root["prompt"] = prompt

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			t := map[string]any{"type": "function", "name": tool.Name}
			if tool.Description != "" {
				t["description"] = tool.Description
			}
			if tool.Parameters != nil {
				t["inputSchema"] = tool.Parameters
			}
			tools = append(tools, t)
		}
		root["tools"] = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ir.ToolChoiceTool:
			root["toolChoice"] = map[string]any{"type": "tool", "toolName": req.ToolChoice.Name}
		default:
			root["toolChoice"] = map[string]any{"type": string(req.ToolChoice.Mode)}
		}
	}

	if req.MaxTokens != nil {
		root["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["topP"] = *req.TopP
	}
	if req.TopK != nil {
		root["topK"] = *req.TopK
	}
	if len(req.StopSequences) > 0 {
		root["stopSequences"] = req.StopSequences
	}
	return json.Marshal(root)
}

// TransformResponse emits a full AI-SDK generate result.
func (c *AISDKConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	var content []map[string]any
	hasTools := false
	for _, part := range resp.Content {
		switch part.Type {
		case ir.ContentTypeText:
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		case ir.ContentTypeThinking:
			content = append(content, map[string]any{"type": "reasoning", "text": part.Thinking})
		case ir.ContentTypeToolCall:
			hasTools = true
			content = append(content, map[string]any{
				"type":       "tool-call",
				"toolCallId": part.ToolCallID,
				"toolName":   part.Name,
				"input":      claudeToolInput(part),
			})
		}
	}

	stop := resp.StopReason
	if hasTools && stop != ir.StopMaxTokens {
		stop = ir.StopToolUse
	}
	root := map[string]any{
		"content":      content,
		"finishReason": StopToAISDK(stop),
	}
	if resp.ID != "" || resp.Model != "" {
		meta := map[string]any{}
		if resp.ID != "" {
			meta["id"] = resp.ID
		}
		if resp.Model != "" {
			meta["modelId"] = resp.Model
		}
		root["response"] = meta
	}
	if resp.Usage != nil {
		root["usage"] = aisdkUsage(resp.Usage)
	}
	return json.Marshal(root)
}

func aisdkUsage(u *ir.Usage) map[string]any {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	out := map[string]any{
		"inputTokens":  u.InputTokens,
		"outputTokens": u.OutputTokens,
		"totalTokens":  total,
	}
	if u.ThinkingTokens > 0 {
		out["reasoningTokens"] = u.ThinkingTokens
	}
	if u.CachedTokens > 0 {
		out["cachedInputTokens"] = u.CachedTokens
	}
	return out
}

// TransformStreamChunk emits AI-SDK stream parts: text-start before the
// first delta, id-keyed tool input fragments, a single finish part.
func (c *AISDKConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	part := func(payload map[string]any) ([]byte, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return ir.BuildSSEChunk(data), nil
	}
	textID := st.MessageID + "-text"

	closeText := func(frames [][]byte) ([][]byte, error) {
		if !st.TextBlockStarted {
			return frames, nil
		}
		st.TextBlockStarted = false
		end, err := part(map[string]any{"type": "text-end", "id": textID})
		if err != nil {
			return nil, err
		}
		return append(frames, end), nil
	}

	switch chunk.Type {
	case ir.ChunkContent:
		if chunk.Delta == nil || chunk.Delta.Text == "" {
			return nil, nil
		}
		var frames [][]byte
		if !st.TextBlockStarted {
			st.TextBlockStarted = true
			start, err := part(map[string]any{"type": "text-start", "id": textID})
			if err != nil {
				return nil, err
			}
			frames = append(frames, start)
		}
		delta, err := part(map[string]any{"type": "text-delta", "id": textID, "delta": chunk.Delta.Text})
		if err != nil {
			return nil, err
		}
		return append(frames, delta), nil

	case ir.ChunkThinking:
		if chunk.Delta == nil || chunk.Delta.Thinking == "" {
			return nil, nil
		}
		delta, err := part(map[string]any{
			"type":  "reasoning-delta",
			"id":    st.MessageID + "-reasoning",
			"delta": chunk.Delta.Thinking,
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{delta}, nil

	case ir.ChunkToolCall:
		if chunk.Delta == nil || chunk.Delta.ToolCall == nil {
			return nil, nil
		}
		tc := chunk.Delta.ToolCall
		st.HasToolCalls = true
		st.Accumulator.Feed(tc)

		var frames [][]byte
		id, open := st.ToolWireIDs[tc.Index]
		if !open {
			var err error
			if frames, err = closeText(frames); err != nil {
				return nil, err
			}
			id = tc.ID
			if id == "" {
				id = ir.GenToolCallID()
			}
			st.ToolWireIDs[tc.Index] = id
			start, err := part(map[string]any{
				"type":     "tool-input-start",
				"id":       id,
				"toolName": tc.Name,
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, start)
		}
		if fragment := tc.Args + tc.PartialJSON; fragment != "" {
			delta, err := part(map[string]any{"type": "tool-input-delta", "id": id, "delta": fragment})
			if err != nil {
				return nil, err
			}
			frames = append(frames, delta)
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
		frames, err := closeText(nil)
		if err != nil {
			return nil, err
		}
		if st.HasToolCalls {
			for _, call := range st.Accumulator.Finalize() {
				id := st.ToolWireIDs[call.Index]
				if id == "" {
					id = call.ID
				}
				end, err := part(map[string]any{"type": "tool-input-end", "id": id})
				if err != nil {
					return nil, err
				}
				input := call.ArgsObject
				if input == nil {
					input = map[string]any{"value": call.Args}
				}
				complete, err := part(map[string]any{
					"type":       "tool-call",
					"toolCallId": id,
					"toolName":   call.Name,
					"input":      input,
				})
				if err != nil {
					return nil, err
				}
				frames = append(frames, end, complete)
			}
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
		finish := map[string]any{"type": "finish", "finishReason": StopToAISDK(stop)}
		if usage != nil {
			finish["usage"] = aisdkUsage(usage)
		}
		f, err := part(finish)
		if err != nil {
			return nil, err
		}
		return append(append(frames, f), ir.DoneSentinel), nil

	case ir.ChunkError:
		msg := "upstream stream error"
		if chunk.Err != nil {
			msg = chunk.Err.Error()
		}
		f, err := part(map[string]any{"type": "error", "errorText": msg})
		if err != nil {
			return nil, err
		}
		return [][]byte{f, ir.DoneSentinel}, nil
	}
	return nil, nil
}
