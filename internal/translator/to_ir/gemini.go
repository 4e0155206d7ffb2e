package to_ir

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// GeminiParser handles the Gemini generateContent dialect.
type GeminiParser struct{}

func (p *GeminiParser) Format() provider.Format { return provider.FormatGemini }

func (p *GeminiParser) IsSupportedRequest(raw []byte) bool {
	return gjson.GetBytes(raw, "contents").IsArray()
}

func (p *GeminiParser) IsSupportedModel(model string) bool {
	m := strings.ToLower(strings.TrimPrefix(model, "models/"))
	return strings.HasPrefix(m, "gemini")
}

// ParseRequest lifts a generateContent request into the IR. Gemini has no
// tool-call ids, so ids are minted per call and paired with responses by
// name in arrival order.
func (p *GeminiParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: gemini request: %v", translator.ErrInvalidRequest, err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("contents").IsArray() {
		return nil, fmt.Errorf("%w: gemini request missing contents array", translator.ErrInvalidRequest)
	}

	req := &ir.UnifiedRequest{Model: parsed.Get("model").String()}

	system := parsed.Get("systemInstruction")
	if !system.Exists() {
		system = parsed.Get("system_instruction")
	}
	for _, part := range system.Get("parts").Array() {
		if text := part.Get("text").String(); text != "" {
			if req.System != "" {
				req.System += "\n"
			}
			req.System += text
			req.SystemBlocks = append(req.SystemBlocks, ir.SystemBlock{Text: text})
		}
	}

	// Pending call ids by function name, consumed by functionResponse parts.
	pendingIDs := map[string][]string{}

	for _, content := range parsed.Get("contents").Array() {
		role := content.Get("role").String()
		var parts []ir.ContentPart
		var toolResults []ir.ContentPart

		for _, part := range content.Get("parts").Array() {
			switch {
			case part.Get("thought").Bool():
				parts = append(parts, ir.ContentPart{
					Type:      ir.ContentTypeThinking,
					Thinking:  part.Get("text").String(),
					Signature: part.Get("thoughtSignature").String(),
				})
			case part.Get("functionCall").Exists():
				fc := part.Get("functionCall")
				name := fc.Get("name").String()
				id := ir.GenToolCallID()
				pendingIDs[name] = append(pendingIDs[name], id)
				parts = append(parts, ir.ContentPart{
					Type:       ir.ContentTypeToolCall,
					ToolCallID: id,
					Name:       name,
					Args:       fc.Get("args").Raw,
					ArgsObject: ir.SchemaFromGJSON(fc.Get("args")),
				})
			case part.Get("functionResponse").Exists():
				fr := part.Get("functionResponse")
				name := fr.Get("name").String()
				var id string
				if queue := pendingIDs[name]; len(queue) > 0 {
					id = queue[0]
					pendingIDs[name] = queue[1:]
				}
				toolResults = append(toolResults, ir.ContentPart{
					Type:      ir.ContentTypeToolResult,
					ResultFor: id,
					Result:    fr.Get("response").Raw,
				})
			case part.Get("inlineData").Exists() || part.Get("inline_data").Exists():
				inline := part.Get("inlineData")
				if !inline.Exists() {
					inline = part.Get("inline_data")
				}
				mime := inline.Get("mimeType").String()
				if mime == "" {
					mime = inline.Get("mime_type").String()
				}
				parts = append(parts, ir.ContentPart{
					Type:     ir.ContentTypeImage,
					MimeType: mime,
					Data:     inline.Get("data").String(),
				})
			case part.Get("fileData").Exists():
				parts = append(parts, ir.ContentPart{
					Type:     ir.ContentTypeImage,
					MimeType: part.Get("fileData.mimeType").String(),
					URL:      part.Get("fileData.fileUri").String(),
				})
			case part.Get("text").Exists():
				if text := part.Get("text").String(); text != "" {
					parts = append(parts, ir.ContentPart{Type: ir.ContentTypeText, Text: text})
				}
			}
		}

		if len(toolResults) > 0 {
			req.Messages = append(req.Messages, ir.Message{Role: ir.RoleTool, Parts: toolResults})
		}
		if len(parts) == 0 {
			continue
		}
		irRole := ir.RoleUser
		if role == "model" {
			irRole = ir.RoleAssistant
		}
		req.Messages = append(req.Messages, ir.Message{Role: irRole, Parts: parts})
	}

	for _, tool := range parsed.Get("tools").Array() {
		for _, decl := range tool.Get("functionDeclarations").Array() {
			req.Tools = append(req.Tools, ir.ToolDefinition{
				Name:        decl.Get("name").String(),
				Description: decl.Get("description").String(),
				Parameters:  ir.SchemaFromGemini(ir.SchemaFromGJSON(decl.Get("parameters"))),
			})
		}
	}

	if fcc := parsed.Get("toolConfig.functionCallingConfig"); fcc.Exists() {
		switch fcc.Get("mode").String() {
		case "AUTO":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
		case "NONE":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceNone}
		case "ANY":
			allowed := fcc.Get("allowedFunctionNames").Array()
			if len(allowed) == 1 {
				req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceTool, Name: allowed[0].String()}
			} else {
				req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
			}
		}
	}

	gen := parsed.Get("generationConfig")
	if v := gen.Get("maxOutputTokens"); v.Exists() {
		req.MaxTokens = ir.Ptr(int(v.Int()))
	}
	if v := gen.Get("temperature"); v.Exists() {
		req.Temperature = ir.Ptr(v.Float())
	}
	if v := gen.Get("topP"); v.Exists() {
		req.TopP = ir.Ptr(v.Float())
	}
	if v := gen.Get("topK"); v.Exists() {
		req.TopK = ir.Ptr(int(v.Int()))
	}
	for _, s := range gen.Get("stopSequences").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}
	if tc := gen.Get("thinkingConfig"); tc.Exists() {
		req.Thinking = &ir.ThinkingConfig{
			Enabled: tc.Get("includeThoughts").Bool() || tc.Get("thinkingBudget").Int() > 0,
			Budget:  int(tc.Get("thinkingBudget").Int()),
		}
	}
	return req, nil
}

// ParseResponse lifts a full generateContent response into the IR. The
// presence of any functionCall overrides the finish reason to tool_use.
func (p *GeminiParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: gemini response: %v", translator.ErrInvalidResponse, err)
	}
	parsed := gjson.ParseBytes(raw)
	candidate := parsed.Get("candidates.0")
	if !candidate.Exists() {
		return nil, fmt.Errorf("%w: gemini response missing candidates", translator.ErrInvalidResponse)
	}

	resp := &ir.UnifiedResponse{
		ID:    parsed.Get("responseId").String(),
		Model: parsed.Get("modelVersion").String(),
	}
	resp.Content = geminiResponseParts(candidate.Get("content.parts"))
	resp.StopReason = ir.StopFromGemini(candidate.Get("finishReason").String())
	if ir.HasToolCalls(resp.Content) {
		resp.StopReason = ir.StopToolUse
	}
	resp.Usage = parseGeminiUsage(parsed.Get("usageMetadata"))
	return resp, nil
}

func geminiResponseParts(parts gjson.Result) []ir.ContentPart {
	var out []ir.ContentPart
	for _, part := range parts.Array() {
		switch {
		case part.Get("thought").Bool():
			out = append(out, ir.ContentPart{
				Type:      ir.ContentTypeThinking,
				Thinking:  part.Get("text").String(),
				Signature: part.Get("thoughtSignature").String(),
			})
		case part.Get("functionCall").Exists():
			fc := part.Get("functionCall")
			out = append(out, ir.ContentPart{
				Type:       ir.ContentTypeToolCall,
				ToolCallID: ir.GenToolCallID(),
				Name:       fc.Get("name").String(),
				Args:       fc.Get("args").Raw,
				ArgsObject: ir.SchemaFromGJSON(fc.Get("args")),
			})
		case part.Get("text").Exists():
			if text := part.Get("text").String(); text != "" {
				out = append(out, ir.ContentPart{Type: ir.ContentTypeText, Text: text})
			}
		}
	}
	return out
}

func parseGeminiUsage(usage gjson.Result) *ir.Usage {
	if !usage.Exists() {
		return nil
	}
	return &ir.Usage{
		InputTokens:    int(usage.Get("promptTokenCount").Int()),
		OutputTokens:   int(usage.Get("candidatesTokenCount").Int()),
		TotalTokens:    int(usage.Get("totalTokenCount").Int()),
		CachedTokens:   int(usage.Get("cachedContentTokenCount").Int()),
		ThinkingTokens: int(usage.Get("thoughtsTokenCount").Int()),
	}
}

// ParseStreamChunk lifts one streamGenerateContent payload into IR chunks.
// A thinking fragment without a signature is buffered one chunk so a
// signature arriving in the next frame can be attached before emission.
func (p *GeminiParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if ir.ValidateJSON(data) != nil {
		st.ParseErrors++
		return nil, nil
	}
	return p.parseStreamJSON(gjson.ParseBytes(data), st)
}

func (p *GeminiParser) parseStreamJSON(parsed gjson.Result, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
	var chunks []ir.StreamChunk
	flush := func() {
		if pending := st.FlushThinking(); pending != nil {
			chunks = append(chunks, *pending)
		}
	}

	if errObj := parsed.Get("error"); errObj.Exists() {
		flush()
		return append(chunks, ir.StreamChunk{
			Type: ir.ChunkError,
			Err:  fmt.Errorf("upstream error: %s", errObj.Get("message").String()),
		}), nil
	}

	candidate := parsed.Get("candidates.0")
	for _, part := range candidate.Get("content.parts").Array() {
		switch {
		case part.Get("thought").Bool():
			chunk := &ir.StreamChunk{Type: ir.ChunkThinking, Delta: &ir.StreamDelta{
				Thinking:  part.Get("text").String(),
				Signature: part.Get("thoughtSignature").String(),
			}}
			if chunk.Delta.Signature != "" {
				// A bare signature fragment completes the buffered thought.
				if pending := st.FlushThinking(); pending != nil && chunk.Delta.Thinking == "" {
					pending.Delta.Signature = chunk.Delta.Signature
					chunks = append(chunks, *pending)
					continue
				}
				flush()
				chunks = append(chunks, *chunk)
				continue
			}
			if prev := st.BufferThinking(chunk); prev != nil {
				chunks = append(chunks, *prev)
			}
		case part.Get("functionCall").Exists():
			flush()
			fc := part.Get("functionCall")
			chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkToolCall, Delta: &ir.StreamDelta{
				ToolCall: &ir.ToolCallDelta{
					Index: st.ClaimToolIndex(),
					ID:    ir.GenToolCallID(),
					Name:  fc.Get("name").String(),
					Args:  fc.Get("args").Raw,
				},
			}})
		case part.Get("text").Exists():
			flush()
			if text := part.Get("text").String(); text != "" {
				chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkContent, Delta: &ir.StreamDelta{Text: text}})
			}
		}
	}

	if usage := parsed.Get("usageMetadata"); usage.Exists() {
		flush()
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkUsage, Usage: parseGeminiUsage(usage)})
	}
	if finish := candidate.Get("finishReason").String(); finish != "" {
		flush()
		stop := ir.StopFromGemini(finish)
		if st.NextToolIndex > 0 {
			stop = ir.StopToolUse
		}
		chunks = append(chunks, ir.StreamChunk{Type: ir.ChunkDone, StopReason: stop})
	}
	return chunks, nil
}
