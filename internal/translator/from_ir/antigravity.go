package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// AntigravityConverter emits the Antigravity dialect: the Gemini body
// wrapped in a {"model", "project", "request"} envelope, with the
// tool-pairing repair pass applied to the contents first.
type AntigravityConverter struct {
	gemini GeminiConverter
}

func (c *AntigravityConverter) Provider() provider.Format { return provider.FormatAntigravity }

func (c *AntigravityConverter) Config() translator.AdapterConfig {
	return translator.AdapterConfig{
		SupportsStreaming: true,
		SupportsThinking:  true,
		SupportsTools:     true,
		DefaultMaxTokens:  ir.GeminiDefaultMaxTokens,
		StreamParser:      translator.StreamSSELineDelimited,
	}
}

// TransformRequest builds the Gemini body, repairs tool pairing, then wraps.
func (c *AntigravityConverter) TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error) {
	body := geminiRequestBody(req, modelOverride)
	if contents, ok := body["contents"].([]map[string]any); ok {
		body["contents"] = repairToolPairing(contents)
	}
	delete(body, "model")

	model := req.Model
	if modelOverride != "" {
		model = modelOverride
	}
	root := map[string]any{
		"model":   model,
		"request": body,
	}
	if project, ok := req.Metadata["project"].(string); ok && project != "" {
		root["project"] = project
	}
	if promptID, ok := req.Metadata["user_prompt_id"].(string); ok && promptID != "" {
		root["user_prompt_id"] = promptID
	}
	return json.Marshal(root)
}

// TransformResponse wraps the Gemini response in the envelope.
func (c *AntigravityConverter) TransformResponse(resp *ir.UnifiedResponse) ([]byte, error) {
	return json.Marshal(map[string]any{"response": geminiResponseBody(resp)})
}

// TransformStreamChunk emits Gemini stream frames, each wrapped in the
// response envelope.
func (c *AntigravityConverter) TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error) {
	return geminiStreamFrames(chunk, st, func(data []byte) ([]byte, error) {
		wrapped := make([]byte, 0, len(data)+16)
		wrapped = append(wrapped, `{"response":`...)
		wrapped = append(wrapped, data...)
		wrapped = append(wrapped, '}')
		return wrapped, nil
	})
}
