package to_ir

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// AISDKParser handles the AI-SDK language-model protocol: prompt arrays of
// typed content parts, hyphenated finish reasons, id-keyed stream parts.
type AISDKParser struct{}

func (p *AISDKParser) Format() provider.Format { return provider.FormatAISDK }

func (p *AISDKParser) IsSupportedRequest(raw []byte) bool {
	return gjson.GetBytes(raw, "prompt").IsArray()
}

func (p *AISDKParser) IsSupportedModel(model string) bool { return false }

// ParseRequest lifts an AI-SDK request into the IR.
func (p *AISDKParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: ai-sdk request: %v", translator.ErrInvalidRequest, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("prompt").IsArray() {
		return nil, fmt.Errorf("%w: ai-sdk request missing prompt array", translator.ErrInvalidRequest)
	}

	req := &ir.UnifiedRequest{Model: parsed.Get("model").String()}

	for _, msg := range parsed.Get("prompt").Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if role == "system" {
			text := content.String()
			if content.IsArray() {
				text = aisdkTextOf(content)
			}
			if text != "" {
				if req.System != "" {
					req.System += "\n"
				}
				req.System += text
				req.SystemBlocks = append(req.SystemBlocks, ir.SystemBlock{Text: text})
			}
			continue
		}

		var parts []ir.ContentPart
		if !content.IsArray() {
			if content.String() != "" {
				parts = append(parts, ir.ContentPart{Type: ir.ContentTypeText, Text: content.String()})
			}
		} else {
			for _, part := range content.Array() {
				switch part.Get("type").String() {
				case "text":
					parts = append(parts, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
				case "reasoning":
					parts = append(parts, ir.ContentPart{
						Type:     ir.ContentTypeThinking,
						Thinking: part.Get("text").String(),
					})
				case "file", "image":
					data := part.Get("data").String()
					url := part.Get("url").String()
					mime := part.Get("mediaType").String()
					if mime == "" {
						mime = part.Get("mimeType").String()
					}
					if data != "" {
						parts = append(parts, ir.ContentPart{Type: ir.ContentTypeImage, MimeType: mime, Data: data})
					} else if url != "" {
						parts = append(parts, ir.ContentPart{Type: ir.ContentTypeImage, MimeType: mime, URL: url})
					}
				case "tool-call":
					input := part.Get("input")
					if !input.Exists() {
						input = part.Get("args")
					}
					parts = append(parts, ir.ContentPart{
						Type:       ir.ContentTypeToolCall,
						ToolCallID: part.Get("toolCallId").String(),
						Name:       part.Get("toolName").String(),
						Args:       input.Raw,
						ArgsObject: ir.SchemaFromGJSON(input),
					})
				case "tool-result":
					output := part.Get("output")
					if !output.Exists() {
						output = part.Get("result")
					}
					result := output.String()
					if output.IsObject() || output.IsArray() {
						result = output.Raw
					}
					parts = append(parts, ir.ContentPart{
						Type:      ir.ContentTypeToolResult,
						ResultFor: part.Get("toolCallId").String(),
						Result:    result,
						IsError:   part.Get("isError").Bool(),
					})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		irRole := ir.RoleUser
		switch role {
		case "assistant":
			irRole = ir.RoleAssistant
		case "tool":
			irRole = ir.RoleTool
		}
		req.Messages = append(req.Messages, ir.Message{Role: irRole, Parts: parts})
	}

	for _, tool := range parsed.Get("tools").Array() {
		schema := tool.Get("inputSchema")
		if !schema.Exists() {
			schema = tool.Get("parameters")
		}
		req.Tools = append(req.Tools, ir.ToolDefinition{
			Name:        tool.Get("name").String(),
			Description: tool.Get("description").String(),
			Parameters:  ir.SchemaFromGJSON(schema),
		})
	}

	if tc := parsed.Get("toolChoice"); tc.Exists() {
		switch tc.Get("type").String() {
		case "auto":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
		case "none":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceNone}
		case "required":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
		case "tool":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceTool, Name: tc.Get("toolName").String()}
		}
	}

	if v := parsed.Get("maxOutputTokens"); v.Exists() {
		req.MaxTokens = ir.Ptr(int(v.Int()))
	}
	if v := parsed.Get("temperature"); v.Exists() {
		req.Temperature = ir.Ptr(v.Float())
	}
	if v := parsed.Get("topP"); v.Exists() {
		req.TopP = ir.Ptr(v.Float())
	}
	if v := parsed.Get("topK"); v.Exists() {
		req.TopK = ir.Ptr(int(v.Int()))
	}
	for _, s := range parsed.Get("stopSequences").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}
	return req, nil
}

func aisdkTextOf(content gjson.Result) string {
	var text string
	for _, part := range content.Array() {
		if part.Get("type").String() == "text" {
			text += part.Get("text").String()
		}
	}
	return text
}

// StopFromAISDK maps a hyphenated AI-SDK finish reason.
func StopFromAISDK(reason string) ir.StopReason {
	switch reason {
	case "stop":
		return ir.StopEndTurn
	case "length":
		return ir.StopMaxTokens
	case "tool-calls":
		return ir.StopToolUse
	case "content-filter":
		return ir.StopContentFilter
	case "error":
		return ir.StopError
	}
	return ir.StopNone
}

// ParseResponse lifts a full AI-SDK generate result into the IR.
func (p *AISDKParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: ai-sdk response: %v", translator.ErrInvalidResponse, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("content").IsArray() {
		return nil, fmt.Errorf("%w: ai-sdk response missing content array", translator.ErrInvalidResponse)
	}

	resp := &ir.UnifiedResponse{
		ID:    parsed.Get("response.id").String(),
		Model: parsed.Get("response.modelId").String(),
	}
	for _, part := range parsed.Get("content").Array() {
		switch part.Get("type").String() {
		case "text":
			resp.Content = append(resp.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
		case "reasoning":
			resp.Content = append(resp.Content, ir.ContentPart{
				Type:     ir.ContentTypeThinking,
				Thinking: part.Get("text").String(),
			})
		case "tool-call":
			input := part.Get("input")
			resp.Content = append(resp.Content, ir.ContentPart{
				Type:       ir.ContentTypeToolCall,
				ToolCallID: part.Get("toolCallId").String(),
				Name:       part.Get("toolName").String(),
				Args:       input.Raw,
				ArgsObject: ir.SchemaFromGJSON(input),
			})
		}
	}
	resp.StopReason = StopFromAISDK(parsed.Get("finishReason").String())
	if usage := parsed.Get("usage"); usage.Exists() {
		resp.Usage = &ir.Usage{
			InputTokens:    int(usage.Get("inputTokens").Int()),
			OutputTokens:   int(usage.Get("outputTokens").Int()),
			TotalTokens:    int(usage.Get("totalTokens").Int()),
			CachedTokens:   int(usage.Get("cachedInputTokens").Int()),
			ThinkingTokens: int(usage.Get("reasoningTokens").Int()),
		}
	}
	return resp, nil
}

// ParseStreamChunk lifts one AI-SDK stream part into IR chunks. Tool input
// fragments are keyed by the part's string id.
func (p *AISDKParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
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
	switch parsed.Get("type").String() {
	case "text-delta":
		delta := parsed.Get("delta").String()
		if delta == "" {
			delta = parsed.Get("textDelta").String()
		}
		if delta != "" {
			return []ir.StreamChunk{{Type: ir.ChunkContent, Delta: &ir.StreamDelta{Text: delta}}}, nil
		}
		return nil, nil

	case "reasoning-delta":
		if delta := parsed.Get("delta").String(); delta != "" {
			return []ir.StreamChunk{{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{Thinking: delta}}}, nil
		}
		return nil, nil

	case "tool-input-start":
		id := parsed.Get("id").String()
		return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
			ToolCall: &ir.ToolCallDelta{
				Index: st.ToolIndexFor(id),
				ID:    id,
				Name:  parsed.Get("toolName").String(),
			},
		}}}, nil

	case "tool-input-delta":
		id := parsed.Get("id").String()
		return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
			ToolCall: &ir.ToolCallDelta{
				Index:       st.ToolIndexFor(id),
				PartialJSON: parsed.Get("delta").String(),
			},
		}}}, nil

	case "tool-call":
		// Complete call in one part; only emit what earlier fragments have
		// not already delivered.
		id := parsed.Get("toolCallId").String()
		if _, seen := st.ToolIDs[id]; seen {
			return nil, nil
		}
		return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
			ToolCall: &ir.ToolCallDelta{
				Index: st.ToolIndexFor(id),
				ID:    id,
				Name:  parsed.Get("toolName").String(),
				Args:  parsed.Get("input").Raw,
			},
		}}}, nil

	case "finish":
		var chunks []ir.StreamChunk
		if usage := parsed.Get("usage"); usage.Exists() {
			chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkUsage, Usage: &ir.Usage{
				InputTokens:    int(usage.Get("inputTokens").Int()),
				OutputTokens:   int(usage.Get("outputTokens").Int()),
				TotalTokens:    int(usage.Get("totalTokens").Int()),
				ThinkingTokens: int(usage.Get("reasoningTokens").Int()),
			}})
		}
		return append(chunks, ir.StreamChunk{
			Type:       ir.ChunkDone,
			StopReason: StopFromAISDK(parsed.Get("finishReason").String()),
		}), nil

	case "error":
		return []ir.StreamChunk{{
			Type: ir.ChunkError,
			Err:  fmt.Errorf("upstream error: %s", parsed.Get("errorText").String()),
		}}, nil
	}
	return nil, nil
}
