package to_ir

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
	"github.com/bridgekit/llm-bridge/internal/translator/responses"
)

// ResponsesParser handles the OpenAI Responses dialect. Requests route
// through the Responses-to-Chat bridge so the Chat parser stays the single
// source of truth for OpenAI message semantics.
type ResponsesParser struct {
	chat OpenAIParser
}

func (p *ResponsesParser) Format() provider.Format { return provider.FormatOpenAIResponses }

func (p *ResponsesParser) IsSupportedRequest(raw []byte) bool {
	parsed := gjson.ParseBytes(raw)
	return parsed.Get("input").Exists() && !parsed.Get("messages").Exists() &&
		!parsed.Get("contents").Exists()
}

func (p *ResponsesParser) IsSupportedModel(model string) bool { return false }

func (p *ResponsesParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	chatRaw, err := responses.RequestToChat(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: responses request: %v", translator.ErrInvalidRequest, err)
	}
	return p.chat.ParseRequest(chatRaw)
}

// ParseResponse lifts a full Responses response into the IR.
func (p *ResponsesParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: responses response: %v", translator.ErrInvalidResponse, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("output").IsArray() {
		return nil, fmt.Errorf("%w: responses response missing output array", translator.ErrInvalidResponse)
	}

	resp := &ir.UnifiedResponse{
		ID:    parsed.Get("id").String(),
		Model: parsed.Get("model").String(),
	}
	for _, item := range parsed.Get("output").Array() {
		switch item.Get("type").String() {
		case "message":
			var b strings.Builder
			for _, part := range item.Get("content").Array() {
				if part.Get("type").String() == "output_text" {
					b.WriteString(part.Get("text").String())
				}
			}
			if b.Len() > 0 {
				resp.Content = append(resp.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: b.String()})
			}
		case "reasoning":
			for _, part := range item.Get("summary").Array() {
				if text := part.Get("text").String(); text != "" {
					resp.Content = append(resp.Content, ir.ContentPart{Type: ir.ContentTypeThinking, Thinking: text})
				}
			}
		case "function_call":
			args := item.Get("arguments").String()
			resp.Content = append(resp.Content, ir.ContentPart{
				Type:       ir.ContentTypeToolCall,
				ToolCallID: item.Get("call_id").String(),
				Name:       item.Get("name").String(),
				Args:       args,
				ArgsObject: ir.ParseToolCallArgs(args),
			})
		}
	}

	switch parsed.Get("status").String() {
	case "incomplete":
		switch parsed.Get("incomplete_details.reason").String() {
		case "max_output_tokens":
			resp.StopReason = ir.StopMaxTokens
		case "content_filter":
			resp.StopReason = ir.StopContentFilter
		default:
			resp.StopReason = ir.StopEndTurn
		}
	case "failed":
		resp.StopReason = ir.StopError
	default:
		resp.StopReason = ir.StopEndTurn
	}
	if ir.HasToolCalls(resp.Content) {
		resp.StopReason = ir.StopToolUse
	}

	if usage := parsed.Get("usage"); usage.Exists() {
		resp.Usage = &ir.Usage{
			InputTokens:  int(usage.Get("input_tokens").Int()),
			OutputTokens: int(usage.Get("output_tokens").Int()),
			TotalTokens:  int(usage.Get("total_tokens").Int()),
		}
	}
	return resp, nil
}

// ParseStreamChunk lifts one Responses SSE payload into IR chunks. The
// payload's own type field drives dispatch. Function-call items are keyed
// by output_index in the parse state.
func (p *ResponsesParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
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
	case "response.output_text.delta":
		if delta := parsed.Get("delta").String(); delta != "" {
			return []ir.StreamChunk{{Type: ir.ChunkContent, Delta: &ir.StreamDelta{Text: delta}}}, nil
		}
		return nil, nil

	case "response.reasoning_summary_text.delta":
		if delta := parsed.Get("delta").String(); delta != "" {
			return []ir.StreamChunk{{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{Thinking: delta}}}, nil
		}
		return nil, nil

	case "response.output_item.added":
		item := parsed.Get("item")
		if item.Get("type").String() != "function_call" {
			return nil, nil
		}
		outputIndex := int(parsed.Get("output_index").Int())
		toolIdx := st.ClaimToolIndex()
		id := item.Get("call_id").String()
		name := item.Get("name").String()
		st.MarkBlock(outputIndex, ir.BlockInfo{
			Type: "function_call", ToolID: id, ToolName: name, ToolIndex: toolIdx,
		})
		return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
			ToolCall: &ir.ToolCallDelta{Index: toolIdx, ID: id, Name: name},
		}}}, nil

	case "response.function_call_arguments.delta":
		outputIndex := int(parsed.Get("output_index").Int())
		info, ok := st.Block(outputIndex)
		if !ok || info.Type != "function_call" {
			return nil, nil
		}
		return []ir.StreamChunk{{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
			ToolCall: &ir.ToolCallDelta{
				Index:       info.ToolIndex,
				PartialJSON: parsed.Get("delta").String(),
			},
		}}}, nil

	case "response.completed", "response.incomplete":
		response := parsed.Get("response")
		var chunks []ir.StreamChunk
		if usage := response.Get("usage"); usage.Exists() {
			chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkUsage, Usage: &ir.Usage{
				InputTokens:  int(usage.Get("input_tokens").Int()),
				OutputTokens: int(usage.Get("output_tokens").Int()),
				TotalTokens:  int(usage.Get("total_tokens").Int()),
			}})
		}
		stop := ir.StopEndTurn
		if response.Get("incomplete_details.reason").String() == "max_output_tokens" {
			stop = ir.StopMaxTokens
		}
		if st.NextToolIndex > 0 {
			stop = ir.StopToolUse
		}
		return append(chunks, ir.StreamChunk{Type: ir.ChunkDone, StopReason: stop}), nil

	case "response.failed", "error":
		msg := parsed.Get("response.error.message").String()
		if msg == "" {
			msg = parsed.Get("message").String()
		}
		return []ir.StreamChunk{{Type: ir.ChunkError, Err: fmt.Errorf("upstream error: %s", msg)}}, nil
	}
	return nil, nil
}
