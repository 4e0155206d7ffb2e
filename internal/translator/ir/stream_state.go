package ir

import "strings"

// BlockInfo describes a source-dialect content block seen during stream
// parsing (Anthropic indexes its stream by block).
type BlockInfo struct {
	Type      string
	ToolID    string
	ToolName  string
	ToolIndex int
}

// StreamParseState is the per-stream working state a parser may need:
// Anthropic block bookkeeping, Gemini deferred thinking signatures, and
// tool-call index assignment. One instance per upstream response; never
// shared across streams.
type StreamParseState struct {
	Blocks        map[int]BlockInfo
	NextToolIndex int

	// ToolIDs maps dialect-native string tool ids to unified indexes for
	// dialects that key stream fragments by id instead of position.
	ToolIDs map[string]int

	// PendingThinking buffers the latest thinking fragment so a signature
	// arriving in a later Gemini chunk can be attached before emission.
	PendingThinking *StreamChunk

	// ParseErrors counts malformed frames that were dropped (observable,
	// never fatal).
	ParseErrors int
}

// NewStreamParseState creates an empty parse state.
func NewStreamParseState() *StreamParseState {
	return &StreamParseState{
		Blocks:  make(map[int]BlockInfo, 4),
		ToolIDs: make(map[string]int, 2),
	}
}

// ToolIndexFor returns the unified index for a dialect-native tool id,
// assigning the next one on first sight.
func (s *StreamParseState) ToolIndexFor(id string) int {
	if idx, ok := s.ToolIDs[id]; ok {
		return idx
	}
	idx := s.ClaimToolIndex()
	s.ToolIDs[id] = idx
	return idx
}

// MarkBlock records a content block by index.
func (s *StreamParseState) MarkBlock(index int, info BlockInfo) {
	s.Blocks[index] = info
}

// Block returns the recorded block info for index.
func (s *StreamParseState) Block(index int) (BlockInfo, bool) {
	info, ok := s.Blocks[index]
	return info, ok
}

// ClaimToolIndex assigns the next unified tool-call index.
func (s *StreamParseState) ClaimToolIndex() int {
	idx := s.NextToolIndex
	s.NextToolIndex++
	return idx
}

// BufferThinking stores chunk, returning any previously buffered one that
// should be emitted first.
func (s *StreamParseState) BufferThinking(chunk *StreamChunk) *StreamChunk {
	prev := s.PendingThinking
	s.PendingThinking = chunk
	return prev
}

// FlushThinking returns and clears the buffered thinking chunk, if any.
func (s *StreamParseState) FlushThinking() *StreamChunk {
	chunk := s.PendingThinking
	s.PendingThinking = nil
	return chunk
}

// StreamEmitState is the per-stream working state an emitter may need.
// One instance per downstream response.
type StreamEmitState struct {
	MessageID string
	Model     string
	Created   int64

	// Responses-style emission: the output item id, running text, and the
	// per-stream event sequence counter.
	ItemID    string
	TextAccum strings.Builder
	Seq       int

	// OpenAI-style chunk emission.
	RoleSent bool

	// Anthropic-style block emission. TextBlockIndex is the wire index of
	// the currently open text or thinking block; NextBlockIndex is the next
	// unused wire index. OpenToolBlock holds the IR tool-call index of an
	// open tool_use block, -1 when none.
	MessageStartSent bool
	TextBlockStarted bool
	TextBlockIsThink bool
	TextBlockIndex   int
	NextBlockIndex   int
	ToolBlockCount   int
	OpenToolBlock    int
	OpenToolWireIdx  int

	HasToolCalls bool
	FinishSent   bool

	// ToolWireIDs remembers the wire id chosen per unified tool index for
	// dialects that key stream fragments by id.
	ToolWireIDs map[int]string

	// FinalUsage carries usage seen mid-stream into the terminal frame for
	// dialects that report usage at message end.
	FinalUsage *Usage

	// Accumulator consolidates fragmented tool arguments for targets that
	// need a complete object before done.
	Accumulator *ToolCallAccumulator
}

// NewStreamEmitState creates emit state for one downstream response.
func NewStreamEmitState(messageID, model string, created int64) *StreamEmitState {
	return &StreamEmitState{
		MessageID:     messageID,
		Model:         model,
		Created:       created,
		OpenToolBlock: -1,
		ToolWireIDs:   make(map[int]string, 2),
		Accumulator:   NewToolCallAccumulator(),
	}
}

// MarkFinishSent returns true the first time it is called.
func (s *StreamEmitState) MarkFinishSent() bool {
	if s.FinishSent {
		return false
	}
	s.FinishSent = true
	return true
}
