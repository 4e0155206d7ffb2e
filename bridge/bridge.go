// Package bridge is the embeddable surface of llm-bridge: dialect
// identifiers and the stateless translation facade, for hosts that want
// the transformation pipeline without the HTTP server.
package bridge

import (
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"

	// Adapter self-registration.
	_ "github.com/bridgekit/llm-bridge/internal/translator/from_ir"
	_ "github.com/bridgekit/llm-bridge/internal/translator/to_ir"
)

// Format identifies a wire dialect.
type Format = provider.Format

// Supported dialects.
const (
	FormatOpenAI          = provider.FormatOpenAI
	FormatOpenAIResponses = provider.FormatOpenAIResponses
	FormatClaude          = provider.FormatClaude
	FormatGemini          = provider.FormatGemini
	FormatAntigravity     = provider.FormatAntigravity
	FormatAISDK           = provider.FormatAISDK
)

// FromString normalizes a dialect name.
func FromString(name string) Format {
	return provider.FromString(name)
}

// ThinkingConfig controls extended reasoning on translation.
type ThinkingConfig = ir.ThinkingConfig

// Options selects the endpoints of a conversion.
type Options struct {
	From     Format
	To       Format
	Model    string
	Thinking *ThinkingConfig
}

// TranslateRequest re-emits a request payload in another dialect.
func TranslateRequest(raw []byte, opts Options) ([]byte, error) {
	return translator.TransformRequest(raw, translator.Options{
		From:     opts.From,
		To:       opts.To,
		Model:    opts.Model,
		Thinking: opts.Thinking,
	})
}

// TranslateResponse re-emits a non-streaming response payload in another
// dialect.
func TranslateResponse(raw []byte, opts Options) ([]byte, error) {
	return translator.TransformResponse(raw, translator.Options{
		From: opts.From,
		To:   opts.To,
	})
}
