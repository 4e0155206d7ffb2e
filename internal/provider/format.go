// Package provider defines the closed set of dialect identifiers the
// gateway translates between, plus the model-name inference rules shared by
// the router and the HTTP layer.
package provider

import "strings"

// Format identifies a wire dialect.
type Format string

const (
	FormatOpenAI          Format = "openai"
	FormatOpenAIResponses Format = "openai-responses"
	FormatOpenAIWeb       Format = "openai-web"
	FormatClaude          Format = "claude"
	FormatGemini          Format = "gemini"
	FormatAntigravity     Format = "antigravity"
	FormatOpencodeZen     Format = "opencode-zen"
	FormatAISDK           Format = "ai-sdk"
	FormatUnknown         Format = ""
)

// FromString normalizes a provider/dialect name to a Format.
func FromString(name string) Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "openai-chat", "chat":
		return FormatOpenAI
	case "openai-responses", "responses", "codex":
		return FormatOpenAIResponses
	case "openai-web":
		return FormatOpenAIWeb
	case "claude", "anthropic":
		return FormatClaude
	case "gemini", "google":
		return FormatGemini
	case "antigravity":
		return FormatAntigravity
	case "opencode-zen":
		return FormatOpencodeZen
	case "ai-sdk", "aisdk":
		return FormatAISDK
	}
	return FormatUnknown
}

// Known reports whether name maps to a registered dialect family.
func Known(name string) bool {
	return FromString(name) != FormatUnknown
}

func (f Format) String() string { return string(f) }

// CredentialChecker reports which credential classes are available.
// The host wires this in; the router uses it to disambiguate the
// OpenAI family between the web and standard backends.
type CredentialChecker interface {
	HasOpenAIWeb() bool
	HasOpenAIKey() bool
}

// StaticCredentials is a fixed CredentialChecker, used in tests and for
// hosts with a static credential set.
type StaticCredentials struct {
	OpenAIWeb bool
	OpenAIKey bool
}

func (s StaticCredentials) HasOpenAIWeb() bool { return s.OpenAIWeb }
func (s StaticCredentials) HasOpenAIKey() bool { return s.OpenAIKey }
