// Package ir defines the dialect-neutral intermediate representation that
// every adapter parses into and emits from. IR values are transient: built
// by a parse, consumed by a transform, then discarded. Nothing mutates an
// IR value after construction except the streaming accumulator, which owns
// its working state exclusively.
package ir

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentType tags a ContentPart.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeToolCall   ContentType = "tool_call"
	ContentTypeToolResult ContentType = "tool_result"
	ContentTypeThinking   ContentType = "thinking"
)

// StopReason is the normalized outcome of a generation.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopMaxTokens     StopReason = "max_tokens"
	StopToolUse       StopReason = "tool_use"
	StopSequence      StopReason = "stop_sequence"
	StopContentFilter StopReason = "content_filter"
	StopError         StopReason = "error"
	StopNone          StopReason = ""
)

// CacheControl carries an ephemeral prompt-cache marker through dialects
// that support it.
type CacheControl struct {
	Type string
	TTL  string
}

// ContentPart is a tagged union; exactly the fields for its Type are set.
type ContentPart struct {
	Type ContentType

	// ContentTypeText
	Text         string
	CacheControl *CacheControl

	// ContentTypeImage: exactly one of Data / URL is set.
	MimeType string
	Data     string
	URL      string

	// ContentTypeToolCall. Args holds the raw argument JSON exactly as the
	// source dialect delivered it; ArgsObject is set instead when the source
	// provides a structured object.
	ToolCallID string
	Name       string
	Args       string
	ArgsObject map[string]any

	// ContentTypeToolResult
	ResultFor string
	Result    string
	IsError   bool

	// ContentTypeThinking
	Thinking  string
	Signature string
	Redacted  bool
}

// Message is one conversation turn.
type Message struct {
	Role  Role
	Parts []ContentPart
}

// SystemBlock is one block of the system prompt, kept separate from the
// flattened System string so cache hints survive round trips.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// ToolDefinition exposes a callable function to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolChoiceMode enumerates tool-choice behaviors.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceTool     ToolChoiceMode = "tool"
)

// ToolChoice constrains which tool the model may call. Name is set only
// for ToolChoiceTool.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ThinkingConfig controls extended reasoning.
type ThinkingConfig struct {
	Enabled bool
	Budget  int
}

// UnifiedRequest is the dialect-neutral request. Model is authoritative:
// the source dialect's model field populates it and a transform writes it
// back into the target dialect's model field.
type UnifiedRequest struct {
	Model        string
	Messages     []Message
	System       string
	SystemBlocks []SystemBlock
	Tools        []ToolDefinition
	ToolChoice   *ToolChoice

	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string

	Thinking *ThinkingConfig
	Stream   *bool
	UserID   string

	// Metadata holds vendor passthrough keys that have no IR field.
	Metadata map[string]any
}

// Usage is normalized token accounting.
type Usage struct {
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	CachedTokens   int
	ThinkingTokens int
}

// UnifiedResponse is the dialect-neutral full response. Thinking blocks
// live in Content alongside text and tool calls; transforms emit one copy.
type UnifiedResponse struct {
	ID         string
	Model      string
	Content    []ContentPart
	StopReason StopReason
	Usage      *Usage
}

// ChunkType tags a StreamChunk.
type ChunkType string

const (
	ChunkContent  ChunkType = "content"
	ChunkThinking ChunkType = "thinking"
	ChunkToolCall ChunkType = "tool_call"
	ChunkUsage    ChunkType = "usage"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// ToolCallDelta is an incremental tool-call fragment. PartialJSON carries
// argument bytes verbatim; Args is set only when the source delivered the
// complete argument string in one piece.
type ToolCallDelta struct {
	Index       int
	ID          string
	Name        string
	Args        string
	PartialJSON string
	Signature   string
}

// StreamDelta carries the payload of a content, thinking or tool_call chunk.
// Redacted marks opaque thinking whose bytes must pass through untouched.
type StreamDelta struct {
	Text      string
	Thinking  string
	Signature string
	Redacted  bool
	ToolCall  *ToolCallDelta
}

// StreamChunk is one IR streaming event. Chunk order within a response is
// preserved end to end; the terminal chunk is always done or error.
type StreamChunk struct {
	Type       ChunkType
	Delta      *StreamDelta
	StopReason StopReason
	Usage      *Usage
	Err        error
}

// Ptr returns a pointer to v; convenience for optional scalar fields.
func Ptr[T any](v T) *T { return &v }
