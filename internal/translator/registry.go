// Package translator provides the IR translation layer: per-dialect
// parsers and converters, a registry keyed by dialect name, and the
// stateless facade that composes a parse with a transform.
package translator

import (
	"fmt"
	"sync"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// StreamParserKind declares how a dialect frames its SSE stream.
type StreamParserKind string

const (
	// StreamSSEStandard: events separated by blank lines, "data: " prefixed
	// payloads, [DONE] sentinel.
	StreamSSEStandard StreamParserKind = "sse-standard"
	// StreamSSELineDelimited: every newline-terminated line is an event.
	StreamSSELineDelimited StreamParserKind = "sse-line-delimited"
)

// AdapterConfig declares a dialect's static capabilities.
type AdapterConfig struct {
	SupportsStreaming bool
	SupportsThinking  bool
	SupportsTools     bool
	DefaultMaxTokens  int
	StreamParser      StreamParserKind
}

// ToIRParser parses one dialect into the IR.
type ToIRParser interface {
	// Format returns the dialect identifier this parser handles.
	Format() provider.Format

	// IsSupportedRequest is a structural probe; it never errors.
	IsSupportedRequest(raw []byte) bool

	// IsSupportedModel is the dialect's best-effort claim over a model name.
	IsSupportedModel(model string) bool

	// ParseRequest converts a raw request into the IR. The dialect's model
	// field must populate UnifiedRequest.Model.
	ParseRequest(raw []byte) (*ir.UnifiedRequest, error)

	// ParseResponse converts a raw non-streaming response into the IR.
	ParseResponse(raw []byte) (*ir.UnifiedResponse, error)

	// ParseStreamChunk converts one SSE payload into zero or more IR
	// chunks. A nil, error-free result means "ignore this frame".
	ParseStreamChunk(payload []byte, st *ir.StreamParseState) ([]ir.StreamChunk, error)
}

// FromIRConverter emits one dialect from the IR. Converters drop IR
// features the dialect cannot express; they never error on a well-formed
// IR value.
type FromIRConverter interface {
	// Provider returns the dialect identifier this converter handles.
	Provider() provider.Format

	// Config returns the dialect's static capabilities.
	Config() AdapterConfig

	// TransformRequest converts an IR request into a raw payload.
	// modelOverride, when non-empty, replaces req.Model on the wire.
	TransformRequest(req *ir.UnifiedRequest, modelOverride string) ([]byte, error)

	// TransformResponse converts an IR response into a raw payload.
	TransformResponse(resp *ir.UnifiedResponse) ([]byte, error)

	// TransformStreamChunk converts one IR chunk into zero or more wire
	// frames, each already SSE-framed for the dialect.
	TransformStreamChunk(chunk ir.StreamChunk, st *ir.StreamEmitState) ([][]byte, error)
}

// Registry maps dialect names to their parser/converter pair. It is
// populated once at startup before any request is served; afterwards it is
// read-only, so lookups take no lock in the common case beyond an RWMutex
// read.
type Registry struct {
	mu      sync.RWMutex
	toIR    map[provider.Format]ToIRParser
	fromIR  map[provider.Format]FromIRConverter
	aliases map[provider.Format]provider.Format
}

var getGlobalRegistry = sync.OnceValue(func() *Registry {
	return &Registry{
		toIR:    make(map[provider.Format]ToIRParser),
		fromIR:  make(map[provider.Format]FromIRConverter),
		aliases: make(map[provider.Format]provider.Format),
	}
})

// GetRegistry returns the process-wide registry.
func GetRegistry() *Registry { return getGlobalRegistry() }

// Register installs both halves of a dialect adapter.
func (r *Registry) Register(p ToIRParser, c FromIRConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p != nil {
		r.toIR[p.Format()] = p
	}
	if c != nil {
		r.fromIR[c.Provider()] = c
	}
}

// RegisterAlias exposes an existing adapter pair under another name
// (opencode-zen and openai-web speak OpenAI-Chat on the wire). Aliases
// resolve lazily at lookup, so registration order against the target does
// not matter.
func (r *Registry) RegisterAlias(alias, target provider.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = target
}

func (r *Registry) resolve(format provider.Format) provider.Format {
	if target, ok := r.aliases[format]; ok {
		return target
	}
	return format
}

// ToIR returns the parser for format.
func (r *Registry) ToIR(format provider.Format) (ToIRParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.toIR[r.resolve(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, format)
	}
	return p, nil
}

// FromIR returns the converter for format.
func (r *Registry) FromIR(format provider.Format) (FromIRConverter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.fromIR[r.resolve(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, format)
	}
	return c, nil
}

// Has reports whether format has a registered converter.
func (r *Registry) Has(format provider.Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fromIR[r.resolve(format)]
	return ok
}

// List returns the registered converter formats.
func (r *Registry) List() []provider.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]provider.Format, 0, len(r.fromIR))
	for f := range r.fromIR {
		formats = append(formats, f)
	}
	return formats
}

// Clear removes all registrations. Tests only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toIR = make(map[provider.Format]ToIRParser)
	r.fromIR = make(map[provider.Format]FromIRConverter)
	r.aliases = make(map[provider.Format]provider.Format)
}

// RegisterToIR installs a parser in the global registry. Called from init()
// functions in to_ir/*.go.
func RegisterToIR(p ToIRParser) { GetRegistry().Register(p, nil) }

// RegisterFromIR installs a converter in the global registry. Called from
// init() functions in from_ir/*.go.
func RegisterFromIR(c FromIRConverter) { GetRegistry().Register(nil, c) }

// RegisterAlias installs a dialect alias in the global registry.
func RegisterAlias(alias, target provider.Format) {
	GetRegistry().RegisterAlias(alias, target)
}

// SniffFormat probes all registered parsers and returns the first dialect
// claiming the payload.
func (r *Registry) SniffFormat(raw []byte) (provider.Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for f, p := range r.toIR {
		if p.IsSupportedRequest(raw) {
			return f, true
		}
	}
	return provider.FormatUnknown, false
}
