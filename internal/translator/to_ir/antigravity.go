package to_ir

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// AntigravityParser handles the Antigravity dialect: a Gemini body inside a
// {"model", "project", "request"} envelope, responses wrapped in
// {"response": ...}.
type AntigravityParser struct {
	gemini GeminiParser
}

func (p *AntigravityParser) Format() provider.Format { return provider.FormatAntigravity }

func (p *AntigravityParser) IsSupportedRequest(raw []byte) bool {
	return gjson.GetBytes(raw, "request.contents").IsArray()
}

func (p *AntigravityParser) IsSupportedModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gemini-claude-") || strings.HasPrefix(m, "gemini-3-")
}

// ParseRequest unwraps the envelope and delegates to the Gemini parser.
// Envelope fields survive in Metadata so a round trip can restore them.
func (p *AntigravityParser) ParseRequest(raw []byte) (*ir.UnifiedRequest, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: antigravity request: %v", translator.ErrInvalidRequest, err)
	}
	parsed := gjson.ParseBytes(raw)
	inner := parsed.Get("request")
	if !inner.Exists() {
		return nil, fmt.Errorf("%w: antigravity request missing request envelope", translator.ErrInvalidRequest)
	}
	req, err := p.gemini.ParseRequest([]byte(inner.Raw))
	if err != nil {
		return nil, err
	}
	if model := parsed.Get("model").String(); model != "" {
		req.Model = model
	}
	meta := map[string]any{}
	if project := parsed.Get("project").String(); project != "" {
		meta["project"] = project
	}
	if promptID := parsed.Get("user_prompt_id").String(); promptID != "" {
		meta["user_prompt_id"] = promptID
	}
	if len(meta) > 0 {
		req.Metadata = meta
	}
	return req, nil
}

// ParseResponse unwraps {"response": ...} and delegates to Gemini.
func (p *AntigravityParser) ParseResponse(raw []byte) (*ir.UnifiedResponse, error) {
	if err := ir.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: antigravity response: %v", translator.ErrInvalidResponse, err)
	}
	if inner := gjson.GetBytes(raw, "response"); inner.Exists() {
		raw = []byte(inner.Raw)
	}
	return p.gemini.ParseResponse(raw)
}

// ParseStreamChunk unwraps each frame's response envelope and delegates to
// the Gemini stream parser.
func (p *AntigravityParser) ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error) {
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if ir.ValidateJSON(data) != nil {
		st.ParseErrors++
		return nil, nil
	}
	parsed := gjson.ParseBytes(data)
	if inner := parsed.Get("response"); inner.Exists() {
		parsed = inner
	}
	return p.gemini.parseStreamJSON(parsed, st)
}
