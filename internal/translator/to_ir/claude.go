package to_ir

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// ClaudeParser handles the Anthropic Messages dialect.
type ClaudeParser struct{}

func (p *ClaudeParser) Format() provider.Format { return provider.FormatClaude }

func (p *ClaudeParser) IsSupportedRequest(raw []byte) bool {
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("messages").IsArray() {
		return false
	}
	return parsed.Get("system").Exists() ||
		parsed.Get("tools.0.input_schema").Exists() ||
		parsed.Get("thinking.budget_tokens").Exists() ||
		strings.Contains(strings.ToLower(parsed.Get("model").String()), "claude")
}

func (p *ClaudeParser) IsSupportedModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

// ParseRequest lifts a Messages request into the IR. Tool results embedded
// in user turns are canonicalized into tool-role turns so every dialect
// sees the same shape.
func (p *ClaudeParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: claude request: %v", translator.ErrInvalidRequest, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("messages").IsArray() {
		return nil, fmt.Errorf("%w: claude request missing messages array", translator.ErrInvalidRequest)
	}

	req := &ir.UnifiedRequest{Model: parsed.Get("model").String()}

	if system := parsed.Get("system"); system.Exists() {
		if system.IsArray() {
			for _, block := range system.Array() {
				if block.Get("type").String() != "text" {
					continue
				}
				sb := ir.SystemBlock{Text: block.Get("text").String()}
				if cc := block.Get("cache_control"); cc.Exists() {
					sb.CacheControl = &ir.CacheControl{
						Type: cc.Get("type").String(),
						TTL:  cc.Get("ttl").String(),
					}
				}
				if req.System != "" {
					req.System += "\n"
				}
				req.System += sb.Text
				req.SystemBlocks = append(req.SystemBlocks, sb)
			}
		} else {
			req.System = system.String()
			req.SystemBlocks = []ir.SystemBlock{{Text: system.String()}}
		}
	}

	for _, msg := range parsed.Get("messages").Array() {
		role := msg.Get("role").String()
		parts, toolResults := claudeContentParts(msg.Get("content"))
		if len(toolResults) > 0 {
			req.Messages = append(req.Messages, ir.Message{Role: ir.RoleTool, Parts: toolResults})
		}
		if len(parts) == 0 {
			continue
		}
		irRole := ir.RoleUser
		if role == "assistant" {
			irRole = ir.RoleAssistant
		}
		req.Messages = append(req.Messages, ir.Message{Role: irRole, Parts: parts})
	}

	for _, tool := range parsed.Get("tools").Array() {
		req.Tools = append(req.Tools, ir.ToolDefinition{
			Name:        tool.Get("name").String(),
			Description: tool.Get("description").String(),
			Parameters:  ir.SchemaFromGJSON(tool.Get("input_schema")),
		})
	}

	if tc := parsed.Get("tool_choice"); tc.Exists() {
		switch tc.Get("type").String() {
		case "auto":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
		case "any":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
		case "none":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceNone}
		case "tool":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceTool, Name: tc.Get("name").String()}
		}
	}

	if v := parsed.Get("max_tokens"); v.Exists() {
		req.MaxTokens = ir.Ptr(int(v.Int()))
	}
	if v := parsed.Get("temperature"); v.Exists() {
		req.Temperature = ir.Ptr(v.Float())
	}
	if v := parsed.Get("top_p"); v.Exists() {
		req.TopP = ir.Ptr(v.Float())
	}
	if v := parsed.Get("top_k"); v.Exists() {
		req.TopK = ir.Ptr(int(v.Int()))
	}
	for _, s := range parsed.Get("stop_sequences").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}
	if v := parsed.Get("stream"); v.Exists() {
		req.Stream = ir.Ptr(v.Bool())
	}
	req.UserID = parsed.Get("metadata.user_id").String()

	if thinking := parsed.Get("thinking"); thinking.Exists() {
		req.Thinking = &ir.ThinkingConfig{
			Enabled: thinking.Get("type").String() == "enabled",
			Budget:  int(thinking.Get("budget_tokens").Int()),
		}
	}
	return req, nil
}

// claudeContentParts lifts a Messages content value, splitting tool_result
// blocks out so the caller can canonicalize them into a tool turn.
func claudeContentParts(content gjson.Result) (parts, toolResults []ir.ContentPart) {
	if !content.Exists() {
		return nil, nil
	}
	if !content.IsArray() {
		if content.String() == "" {
			return nil, nil
		}
		return []ir.ContentPart{{Type: ir.ContentTypeText, Text: content.String()}}, nil
	}
	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "text":
			part := ir.ContentPart{Type: ir.ContentTypeText, Text: block.Get("text").String()}
			if cc := block.Get("cache_control"); cc.Exists() {
				part.CacheControl = &ir.CacheControl{
					Type: cc.Get("type").String(),
					TTL:  cc.Get("ttl").String(),
				}
			}
			parts = append(parts, part)
		case "image":
			source := block.Get("source")
			switch source.Get("type").String() {
			case "base64":
				parts = append(parts, ir.ContentPart{
					Type:     ir.ContentTypeImage,
					MimeType: source.Get("media_type").String(),
					Data:     source.Get("data").String(),
				})
			case "url":
				parts = append(parts, ir.ContentPart{Type: ir.ContentTypeImage, URL: source.Get("url").String()})
			}
		case "tool_use":
			input := block.Get("input")
			parts = append(parts, ir.ContentPart{
				Type:       ir.ContentTypeToolCall,
				ToolCallID: ir.FromClaudeToolID(block.Get("id").String()),
				Name:       block.Get("name").String(),
				Args:       input.Raw,
				ArgsObject: ir.SchemaFromGJSON(input),
			})
		case "tool_result":
			toolResults = append(toolResults, ir.ContentPart{
				Type:      ir.ContentTypeToolResult,
				ResultFor: ir.FromClaudeToolID(block.Get("tool_use_id").String()),
				Result:    claudeResultText(block.Get("content")),
				IsError:   block.Get("is_error").Bool(),
			})
		case "thinking":
			parts = append(parts, ir.ContentPart{
				Type:      ir.ContentTypeThinking,
				Thinking:  block.Get("thinking").String(),
				Signature: block.Get("signature").String(),
			})
		case "redacted_thinking":
			parts = append(parts, ir.ContentPart{
				Type:     ir.ContentTypeThinking,
				Thinking: block.Get("data").String(),
				Redacted: true,
			})
		}
	}
	return parts, toolResults
}

// claudeResultText flattens a tool_result content value to text.
func claudeResultText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var b strings.Builder
	for _, block := range content.Array() {
		if block.Get("type").String() == "text" {
			b.WriteString(block.Get("text").String())
		}
	}
	return b.String()
}

// ParseResponse lifts a full Messages response into the IR.
func (p *ClaudeParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: claude response: %v", translator.ErrInvalidResponse, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("content").IsArray() {
		return nil, fmt.Errorf("%w: claude response missing content array", translator.ErrInvalidResponse)
	}

	resp := &ir.UnifiedResponse{
		ID:    parsed.Get("id").String(),
		Model: parsed.Get("model").String(),
	}
	content, _ := claudeContentParts(parsed.Get("content"))
	resp.Content = content
	resp.StopReason = ir.StopFromClaude(parsed.Get("stop_reason").String())
	resp.Usage = parseClaudeUsage(parsed.Get("usage"))
	return resp, nil
}

func parseClaudeUsage(usage gjson.Result) *ir.Usage {
	if !usage.Exists() {
		return nil
	}
	in := int(usage.Get("input_tokens").Int())
	out := int(usage.Get("output_tokens").Int())
	return &ir.Usage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		CachedTokens: int(usage.Get("cache_read_input_tokens").Int()),
	}
}

// ParseStreamChunk lifts one Messages SSE payload into IR chunks. The data
// payload's own type field drives dispatch, so the event: line is not
// needed.
func (p *ClaudeParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if ir.ValidateJSON(data) != nil {
		st.ParseErrors++
		return nil, nil
	}

	parsed := gjson.ParseBytes(data)
	switch parsed.Get("type").String() {
	case "message_start":
		if usage := parsed.Get("message.usage"); usage.Exists() {
			return []ir.StreamChunk{{Type: ir.ChunkUsage, Usage: parseClaudeUsage(usage)}}, nil
		}
		return nil, nil

	case "content_block_start":
		index := int(parsed.Get("index").Int())
		block := parsed.Get("content_block")
		switch block.Get("type").String() {
		case "text":
			st.MarkBlock(index, ir.BlockInfo{Type: "text"})
		case "thinking":
			st.MarkBlock(index, ir.BlockInfo{Type: "thinking"})
		case "redacted_thinking":
			st.MarkBlock(index, ir.BlockInfo{Type: "redacted_thinking"})
			if data := block.Get("data").String(); data != "" {
				return []ir.StreamChunk{{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{
					Thinking: data,
					Redacted: true,
				}}}, nil
			}
		case "tool_use":
			toolIdx := st.ClaimToolIndex()
			id := ir.FromClaudeToolID(block.Get("id").String())
			name := block.Get("name").String()
			st.MarkBlock(index, ir.BlockInfo{
				Type: "tool_use", ToolID: id, ToolName: name, ToolIndex: toolIdx,
			})
			return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
				ToolCall: &ir.ToolCallDelta{Index: toolIdx, ID: id, Name: name},
			}}}, nil
		}
		return nil, nil

	case "content_block_delta":
		index := int(parsed.Get("index").Int())
		delta := parsed.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			if text := delta.Get("text").String(); text != "" {
				return []ir.StreamChunk{{Type: ir.ChunkContent, Delta: &ir.StreamDelta{Text: text}}}, nil
			}
		case "thinking_delta":
			if thinking := delta.Get("thinking").String(); thinking != "" {
				return []ir.StreamChunk{{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{Thinking: thinking}}}, nil
			}
		case "signature_delta":
			if sig := delta.Get("signature").String(); sig != "" {
				return []ir.StreamChunk{{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{Signature: sig}}}, nil
			}
		case "input_json_delta":
			info, ok := st.Block(index)
			if !ok || info.Type != "tool_use" {
				return nil, nil
			}
			return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
				ToolCall: &ir.ToolCallDelta{
					Index:       info.ToolIndex,
					PartialJSON: delta.Get("partial_json").String(),
				},
			}}}, nil
		}
		return nil, nil

	case "message_delta":
		var chunks []ir.StreamChunk
		if usage := parsed.Get("usage"); usage.Exists() {
			chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkUsage, Usage: &ir.Usage{
				OutputTokens: int(usage.Get("output_tokens").Int()),
			}})
		}
		if stop := parsed.Get("delta.stop_reason").String(); stop != "" {
			chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkDone, StopReason: ir.StopFromClaude(stop)})
		}
		return chunks, nil

	case "message_stop":
		return []ir.StreamChunk{{Type: ir.ChunkDone}}, nil

	case "error":
		return []ir.StreamChunk{{
			Type: ir.ChunkError,
			Err:  fmt.Errorf("upstream error: %s", parsed.Get("error.message").String()),
		}}, nil
	}
	return nil, nil
}
