package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// ResponsesConverter emits the OpenAI Responses dialect.
type ResponsesConverter struct{}

func (c *ResponsesConverter) Provider() provider.Format { return provider.FormatOpenAIResponses }

func (c *ResponsesConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		StreamParser:      translator.StreamSSEStandard,
	}
}

// TransformRequest emits a Responses request.
func (c *ResponsesConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	root := map[string]any{"model": model}

	if req.System != "" {
		root["instructions"] = req.System
	}

	var input []map[string]any
	for _, msg := range req.Messages {
		switch msg.Role {
		case ir.RoleTool:
			for _, part := range msg.Parts {
				if part.Type != ir.ContentTypeToolResult {
					continue
				}
				input = append(input, map[string]any{
					"type":    "function_call_output",
					"call_id": part.ResultFor,
					"output":  part.Result,
				})
			}
		default:
			partType := "input_text"
			if msg.Role == ir.RoleAssistant {
				partType = "output_text"
			}
			var content []map[string]any
			for _, part := range msg.Parts {
				switch part.Type {
				case ir.ContentTypeText:
					content = append(content, map[string]any{"type": partType, "text": part.Text})
				case ir.ContentTypeImage:
					url := part.URL
					if url == "" {
						url = "data:" + part.MimeType + ";base64," + part.Data
					}
					content = append(content, map[string]any{"type": "input_image", "image_url": url})
				case ir.ContentTypeToolCall:
					input = append(input, map[string]any{
						"type":      "function_call",
						"call_id":   part.ToolCallID,
						"name":      part.Name,
						"arguments": toolArgsString(part),
					})
				}
			}
			if len(content) > 0 {
				input = append(input, map[string]any{
					"role":    string(msg.Role),
					"content": content,
				})
			}
		}
	}
	root["input"] = input

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			t := map[string]any{"type": "function", "name": tool.Name}
			if tool.Description != "" {
				t["description"] = tool.Description
			}
			if tool.Parameters != nil {
				t["parameters"] = tool.Parameters
			}
			tools = append(tools, t)
		}
		root["tools"] = tools
	}

	if req.MaxTokens != nil {
		root["max_output_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["top_p"] = *req.TopP
	}
	if req.Stream != nil && *req.Stream {
		root["stream"] = true
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		root["reasoning"] = map[string]any{"effort": "medium"}
	}
	return json.Marshal(root)
}

// TransformResponse emits a full Responses response.
func (c *ResponsesConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	id := resp.ID
	if id == "" {
		id = ir.GenMessageID("resp")
	}

	var output []map[string]any
	var text string
	hasTools := false
	for _, part := range resp.Content {
		switch part.Type {
		case ir.ContentTypeText:
			text += part.Text
		case ir.ContentTypeThinking:
			output = append(output, map[string]any{
				"id":   ir.GenMessageID("rs"),
				"type": "reasoning",
				"summary": []map[string]any{{
					"type": "summary_text",
					"text": part.Thinking,
				}},
			})
		case ir.ContentTypeToolCall:
			hasTools = true
			output = append(output, map[string]any{
				"id":        ir.GenMessageID("fc"),
				"type":      "function_call",
				"status":    "completed",
				"call_id":   part.ToolCallID,
				"name":      part.Name,
				"arguments": toolArgsString(part),
			})
		}
	}
	if text != "" || !hasTools {
		output = append(output, map[string]any{
			"id":     ir.GenMessageID("msg"),
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

	status := "completed"
	var incompleteReason string
	switch resp.StopReason {
	case ir.StopMaxTokens:
		status, incompleteReason = "incomplete", "max_output_tokens"
	case ir.StopContentFilter:
		status, incompleteReason = "incomplete", "content_filter"
	}

	root := map[string]any{
		"id":         id,
		"object":     "response",
		"created_at": nowUnix(),
		"status":     status,
		"model":      resp.Model,
		"output":     output,
	}
	if incompleteReason != "" {
		root["incomplete_details"] = map[string]any{"reason": incompleteReason}
	}
	if resp.Usage != nil {
		total := resp.Usage.TotalTokens
		if total == 0 {
			total = resp.Usage.InputTokens + resp.Usage.OutputTokens
		}
		root["usage"] = map[string]any{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"total_tokens":  total,
		}
	}
	return json.Marshal(root)
}

// TransformStreamChunk emits Responses SSE events: the lifecycle trio once
// before the first text delta, per-delta output_text.delta events, and the
// terminal done/completed sequence exactly once.
func (c *ResponsesConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	if st.ItemID == "" {
		st.ItemID = ir.GenMessageID("msg")
	}
	event := func(eventType string, payload map[string]any) ([]byte, error) {
		payload["type"] = eventType
		st.Seq++
		payload["sequence_number"] = st.Seq
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return ir.BuildSSEEvent(eventType, data), nil
	}
	responseObject := func(status string) map[string]any {
		return map[string]any{
			"id":         st.MessageID,
			"object":     "response",
			"created_at": st.Created,
			"status":     status,
			"model":      st.Model,
			"output":     ir.EmptySlice,
		}
	}

	switch chunk.Type {
	case ir.ChunkContent:
		if chunk.Delta == nil || chunk.Delta.Text == "" {
			return nil, nil
		}
		var frames [][]byte
		if !st.MessageStartSent {
			st.MessageStartSent = true
			created, err := event("response.created", map[string]any{
				"response": responseObject("in_progress"),
			})
			if err != nil {
				return nil, err
			}
			itemAdded, err := event("response.output_item.added", map[string]any{
				"output_index": 0,
				"item": map[string]any{
					"id":      st.ItemID,
					"type":    "message",
					"status":  "in_progress",
					"role":    "assistant",
					"content": ir.EmptySlice,
				},
			})
			if err != nil {
				return nil, err
			}
			partAdded, err := event("response.content_part.added", map[string]any{
				"item_id":       st.ItemID,
				"output_index":  0,
				"content_index": 0,
				"part":          map[string]any{"type": "output_text", "text": "", "annotations": ir.EmptySlice},
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, created, itemAdded, partAdded)
		}
		st.TextAccum.WriteString(chunk.Delta.Text)
		delta, err := event("response.output_text.delta", map[string]any{
			"item_id":       st.ItemID,
			"output_index":  0,
			"content_index": 0,
			"delta":         chunk.Delta.Text,
		})
		if err != nil {
			return nil, err
		}
		return append(frames, delta), nil

	case ir.ChunkThinking:
		if chunk.Delta == nil || chunk.Delta.Thinking == "" {
			return nil, nil
		}
		delta, err := event("response.reasoning_summary_text.delta", map[string]any{
			"item_id":      st.ItemID,
			"output_index": 0,
			"delta":        chunk.Delta.Thinking,
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{delta}, nil

	case ir.ChunkToolCall:
		if chunk.Delta == nil || chunk.Delta.ToolCall == nil {
			return nil, nil
		}
		st.HasToolCalls = true
		st.Accumulator.Feed(chunk.Delta.ToolCall)
		return nil, nil

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
		var frames [][]byte
		text := st.TextAccum.String()
		var output []map[string]any

		if st.MessageStartSent {
			textDone, err := event("response.output_text.done", map[string]any{
				"item_id":       st.ItemID,
				"output_index":  0,
				"content_index": 0,
				"text":          text,
			})
			if err != nil {
				return nil, err
			}
			item := map[string]any{
				"id":     st.ItemID,
				"type":   "message",
				"status": "completed",
				"role":   "assistant",
				"content": []map[string]any{{
					"type":        "output_text",
					"text":        text,
					"annotations": ir.EmptySlice,
				}},
			}
			itemDone, err := event("response.output_item.done", map[string]any{
				"output_index": 0,
				"item":         item,
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, textDone, itemDone)
			output = append(output, item)
		}

		if st.HasToolCalls {
			for _, call := range st.Accumulator.Finalize() {
				fcItem := map[string]any{
					"id":        ir.GenMessageID("fc"),
					"type":      "function_call",
					"status":    "completed",
					"call_id":   call.ID,
					"name":      call.Name,
					"arguments": call.Args,
				}
				fcDone, err := event("response.output_item.done", map[string]any{
					"output_index": len(output),
					"item":         fcItem,
				})
				if err != nil {
					return nil, err
				}
				frames = append(frames, fcDone)
				output = append(output, fcItem)
			}
		}

		status := "completed"
		var incompleteReason string
		switch chunk.StopReason {
		case ir.StopMaxTokens:
			status, incompleteReason = "incomplete", "max_output_tokens"
		case ir.StopContentFilter:
			status, incompleteReason = "incomplete", "content_filter"
		}
		response := responseObject(status)
		if len(output) > 0 {
			response["output"] = output
		}
		if incompleteReason != "" {
			response["incomplete_details"] = map[string]any{"reason": incompleteReason}
		}
		usage := st.FinalUsage
		if chunk.Usage != nil {
			if usage == nil {
				usage = &ir.Usage{}
			}
			mergeUsage(usage, chunk.Usage)
		}
		if usage != nil {
			response["usage"] = map[string]any{
				"input_tokens":  usage.InputTokens,
				"output_tokens": usage.OutputTokens,
				"total_tokens":  usage.TotalTokens,
			}
		}
		completed, err := event("response.completed", map[string]any{"response": response})
		if err != nil {
			return nil, err
		}
		return append(frames, completed), nil

	case ir.ChunkError:
		msg := "upstream stream error"
		if chunk.Err != nil {
			msg = chunk.Err.Error()
		}
		failed, err := event("response.failed", map[string]any{
			"response": map[string]any{
				"id":     st.MessageID,
				"object": "response",
				"status": "failed",
				"error":  map[string]any{"code": "server_error", "message": msg},
			},
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{failed}, nil
	}
	return nil, nil
}
