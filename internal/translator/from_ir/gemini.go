package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// GeminiConverter emits the Gemini generateContent dialect.
type GeminiConverter struct{}

func (c *GeminiConverter) Provider() provider.Format { return provider.FormatGemini }

func (c *GeminiConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		DefaultMaxTokens:  ir.GeminiDefaultMaxTokens,
		StreamParser:      translator.StreamSSEStandard,
	}
}

// TransformRequest emits a generateContent request.
func (c *GeminiConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	root := geminiRequestBody(req, modelOverride)
	return json.Marshal(root)
}

// geminiRequestBody builds the request map; the Antigravity converter reuses
// it before wrapping and repairing.
func geminiRequestBody(req *ir.UnifiedRequest, modelOverride string) map[string]any {
	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	root := map[string]any{}
	if model != "" {
		root["model"] = model
	}

	if len(req.SystemBlocks) > 0 || req.System != "" {
		var parts []map[string]any
		if len(req.SystemBlocks) > 0 {
			for _, sb := range req.SystemBlocks {
				parts = append(parts, map[string]any{"text": sb.Text})
			}
		} else {
			parts = append(parts, map[string]any{"text": req.System})
		}
		root["systemInstruction"] = map[string]any{"parts": parts}
	}

	// functionResponse needs the function name, which tool results do not
	// carry; recover it from the originating call.
	callNames := map[string]string{}
	for _, msg := range req.Messages {
		for _, part := range msg.Parts {
			if part.Type == ir.ContentTypeToolCall && part.ToolCallID != "" {
				callNames[part.ToolCallID] = part.Name
			}
		}
	}

	contents := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == ir.RoleAssistant {
			role = "model"
		}
		var parts []map[string]any
		for _, part := range msg.Parts {
			switch part.Type {
			case ir.ContentTypeText:
				parts = append(parts, map[string]any{"text": part.Text})
			case ir.ContentTypeImage:
				if part.Data != "" {
					parts = append(parts, map[string]any{
						"inlineData": map[string]any{
							"mimeType": part.MimeType,
							"data":     part.Data,
						},
					})
				} else if part.URL != "" {
					fd := map[string]any{"fileUri": part.URL}
					if part.MimeType != "" {
						fd["mimeType"] = part.MimeType
					}
					parts = append(parts, map[string]any{"fileData": fd})
				}
			case ir.ContentTypeToolCall:
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{
						"name": part.Name,
						"args": claudeToolInput(part),
					},
				})
			case ir.ContentTypeToolResult:
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"name":     callNames[part.ResultFor],
						"response": geminiResponseValue(part),
					},
				})
			case ir.ContentTypeThinking:
				thought := map[string]any{"text": part.Thinking, "thought": true}
				if part.Signature != "" {
					thought["thoughtSignature"] = part.Signature
				}
				parts = append(parts, thought)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, map[string]any{"role": role, "parts": parts})
	}
	root["contents"] = contents

	if len(req.Tools) > 0 {
		decls := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decl := map[string]any{"name": tool.Name}
			if tool.Description != "" {
				decl["description"] = tool.Description
			}
			if tool.Parameters != nil {
				decl["parameters"] = ir.SchemaToGemini(tool.Parameters)
			}
			decls = append(decls, decl)
		}
		root["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}
	if req.ToolChoice != nil {
		fcc := map[string]any{}
		switch req.ToolChoice.Mode {
		case ir.ToolChoiceAuto:
			fcc["mode"] = "AUTO"
		case ir.ToolChoiceNone:
			fcc["mode"] = "NONE"
		case ir.ToolChoiceRequired:
			fcc["mode"] = "ANY"
		case ir.ToolChoiceTool:
			fcc["mode"] = "ANY"
			fcc["allowedFunctionNames"] = []string{req.ToolChoice.Name}
		}
		root["toolConfig"] = map[string]any{"functionCallingConfig": fcc}
	}

	gen := map[string]any{}
	if req.MaxTokens != nil {
		gen["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		gen["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		gen["topP"] = *req.TopP
	}
	if req.TopK != nil {
		gen["topK"] = *req.TopK
	}
	if len(req.StopSequences) > 0 {
		gen["stopSequences"] = req.StopSequences
	}
	if req.Thinking != nil {
		tc := map[string]any{"includeThoughts": req.Thinking.Enabled}
		if req.Thinking.Budget > 0 {
			tc["thinkingBudget"] = req.Thinking.Budget
		}
		gen["thinkingConfig"] = tc
	}
	if len(gen) > 0 {
		root["generationConfig"] = gen
	}
	return root
}

// geminiResponseValue renders a tool result as the object the dialect
// requires; non-object results are wrapped.
func geminiResponseValue(part ir.ContentPart) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(part.Result), &obj); err == nil && obj != nil {
		return obj
	}
	if part.IsError {
		return map[string]any{"error": part.Result}
	}
	return map[string]any{"result": part.Result}
}

// TransformResponse emits a full generateContent response.
func (c *GeminiConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	root := geminiResponseBody(resp)
	return json.Marshal(root)
}

func geminiResponseBody(resp *ir.UnifiedResponse) map[string]any {
	parts := make([]map[string]any, 0, len(resp.Content))
	hasTools := false
	for _, part := range resp.Content {
		switch part.Type {
		case ir.ContentTypeText:
			parts = append(parts, map[string]any{"text": part.Text})
		case ir.ContentTypeThinking:
			thought := map[string]any{"text": part.Thinking, "thought": true}
			if part.Signature != "" {
				thought["thoughtSignature"] = part.Signature
			}
			parts = append(parts, thought)
		case ir.ContentTypeToolCall:
			hasTools = true
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{
					"name": part.Name,
					"args": claudeToolInput(part),
				},
			})
		}
	}

	stop := resp.StopReason
	if hasTools {
		stop = ir.StopToolUse
	}
	root := map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": ir.StopToGemini(stop),
			"index":        0,
		}},
	}
	if resp.ID != "" {
		root["responseId"] = resp.ID
	}
	if resp.Model != "" {
		root["modelVersion"] = resp.Model
	}
	if resp.Usage != nil {
		root["usageMetadata"] = geminiUsage(resp.Usage)
	}
	return root
}

func geminiUsage(u *ir.Usage) map[string]any {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	out := map[string]any{
		"promptTokenCount":     u.InputTokens,
		"candidatesTokenCount": u.OutputTokens,
		"totalTokenCount":      total,
	}
	if u.ThinkingTokens > 0 {
		out["thoughtsTokenCount"] = u.ThinkingTokens
	}
	if u.CachedTokens > 0 {
		out["cachedContentTokenCount"] = u.CachedTokens
	}
	return out
}

// TransformStreamChunk emits streamGenerateContent SSE frames. The dialect
// cannot stream partial function arguments, so tool calls buffer in the
// accumulator and flush as complete functionCall parts just before the
// final frame.
func (c *GeminiConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	return geminiStreamFrames(chunk, st, nil)
}

// geminiStreamFrames implements the shared Gemini stream emission; wrap,
// when non-nil, post-processes each JSON payload (Antigravity envelopes).
func geminiStreamFrames(chunk ir.StreamChunk, st *ir.StreamEmitState, wrap func([]byte) ([]byte, error)) ([][]byte, error) {
	frame := func(root map[string]any) ([]byte, error) {
		data, err := json.Marshal(root)
		if err != nil {
			return nil, err
		}
		if wrap != nil {
			data, err = wrap(data)
			if err != nil {
				return nil, err
			}
		}
		return ir.BuildSSEChunk(data), nil
	}
	partsFrame := func(parts []map[string]any) ([]byte, error) {
		return frame(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": parts},
				"index":   0,
			}},
		})
	}

	switch chunk.Type {
	case ir.ChunkContent:
		if chunk.Delta == nil || chunk.Delta.Text == "" {
			return nil, nil
		}
		f, err := partsFrame([]map[string]any{{"text": chunk.Delta.Text}})
		if err != nil {
			return nil, err
		}
		return [][]byte{f}, nil

	case ir.ChunkThinking:
		if chunk.Delta == nil || (chunk.Delta.Thinking == "" && chunk.Delta.Signature == "") {
			return nil, nil
		}
		thought := map[string]any{"text": chunk.Delta.Thinking, "thought": true}
		if chunk.Delta.Signature != "" {
			thought["thoughtSignature"] = chunk.Delta.Signature
		}
		f, err := partsFrame([]map[string]any{thought})
		if err != nil {
			return nil, err
		}
		return [][]byte{f}, nil

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
		if st.HasToolCalls {
			var parts []map[string]any
			for _, call := range st.Accumulator.Finalize() {
				args := call.ArgsObject
				if args == nil {
					args = map[string]any{"value": call.Args}
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": call.Name, "args": args},
				})
			}
			if len(parts) > 0 {
				f, err := partsFrame(parts)
				if err != nil {
					return nil, err
				}
				frames = append(frames, f)
			}
		}

		stop := chunk.StopReason
		if st.HasToolCalls {
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
		final := map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": ir.EmptySlice},
				"finishReason": ir.StopToGemini(stop),
				"index":        0,
			}},
		}
		if usage != nil {
			final["usageMetadata"] = geminiUsage(usage)
		}
		f, err := frame(final)
		if err != nil {
			return nil, err
		}
		return append(frames, f), nil

	case ir.ChunkError:
		msg := "upstream stream error"
		if chunk.Err != nil {
			msg = chunk.Err.Error()
		}
		f, err := frame(map[string]any{
			"error": map[string]any{"code": 500, "message": msg, "status": "INTERNAL"},
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{f}, nil
	}
	return nil, nil
}
