package translator

import (
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// Options selects the endpoints of a conversion. Model, when set, overrides
// the model written into the target payload; Thinking, when set, overwrites
// the parsed thinking configuration before the transform.
type Options struct {
	From     provider.Format
	To       provider.Format
	Model    string
	Thinking *ir.ThinkingConfig
}

// TransformRequest parses raw in the From dialect and re-emits it in the
// To dialect. The facade is stateless and adds no policy.
func TransformRequest(raw []byte, opts Options) ([]byte, error) {
	parser, err := GetRegistry().ToIR(opts.From)
	if err != nil {
		return nil, err
	}
	converter, err := GetRegistry().FromIR(opts.To)
	if err != nil {
		return nil, err
	}
	req, err := parser.ParseRequest(raw)
	if err != nil {
		return nil, err
	}
	if opts.Thinking != nil {
		req.Thinking = opts.Thinking
	}
	return converter.TransformRequest(req, opts.Model)
}

// TransformResponse parses a full (non-streaming) response in the From
// dialect and re-emits it in the To dialect.
func TransformResponse(raw []byte, opts Options) ([]byte, error) {
	parser, err := GetRegistry().ToIR(opts.From)
	if err != nil {
		return nil, err
	}
	converter, err := GetRegistry().FromIR(opts.To)
	if err != nil {
		return nil, err
	}
	resp, err := parser.ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return converter.TransformResponse(resp)
}
