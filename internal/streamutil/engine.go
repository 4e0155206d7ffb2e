package streamutil

import (
	"time"

	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// Engine transforms one upstream stream into one downstream stream. It
// owns the per-stream parse and emit state and is never shared.
//
// The terminal done chunk is held rather than emitted on first sight:
// several dialects report the finish reason before trailing usage frames,
// and the downstream contract requires done to be the last thing on the
// wire. Usage seen after the first done merges into the held chunk.
type Engine struct {
	parser     translator.ToIRParser
	converter  translator.FromIRConverter
	parseState *ir.StreamParseState
	emitState  *ir.StreamEmitState

	heldDone *ir.StreamChunk
	finished bool
}

// NewEngine builds an engine for one response.
func NewEngine(parser translator.ToIRParser, converter translator.FromIRConverter, messageID, model string) *Engine {
	return &Engine{
		parser:     parser,
		converter:  converter,
		parseState: ir.NewStreamParseState(),
		emitState:  ir.NewStreamEmitState(messageID, model, time.Now().Unix()),
	}
}

// TransformFrame parses one upstream payload and emits the resulting
// downstream frames. Done chunks are absorbed; Finish flushes them.
func (e *Engine) TransformFrame(payload []byte) ([][]byte, error) {
	if e.finished {
		return nil, nil
	}
	chunks, err := e.parser.ParseStreamChunk(payload, e.parseState)
	if err != nil {
		return nil, err
	}
	var frames [][]byte
	for i := range chunks {
		out, err := e.transformChunk(chunks[i])
		if err != nil {
			return nil, err
		}
		frames = append(frames, out...)
	}
	return frames, nil
}

func (e *Engine) transformChunk(chunk ir.StreamChunk) ([][]byte, error) {
	switch chunk.Type {
	case ir.ChunkDone:
		if e.heldDone == nil {
			held := chunk
			e.heldDone = &held
		} else if e.heldDone.StopReason == ir.StopNone {
			e.heldDone.StopReason = chunk.StopReason
		}
		return nil, nil
	case ir.ChunkUsage:
		if e.heldDone != nil {
			// Trailing usage after the finish frame; fold it into the
			// terminal chunk instead of emitting past done.
			if e.heldDone.Usage == nil {
				e.heldDone.Usage = chunk.Usage
			}
			return nil, nil
		}
	case ir.ChunkError:
		e.finished = true
		return e.converter.TransformStreamChunk(chunk, e.emitState)
	}
	return e.converter.TransformStreamChunk(chunk, e.emitState)
}

// Finish flushes the held terminal chunk. Called exactly once when the
// upstream stream ends. If the upstream never produced a done, one is
// synthesized so the downstream stream still terminates cleanly.
func (e *Engine) Finish() ([][]byte, error) {
	if e.finished {
		return nil, nil
	}
	e.finished = true
	var frames [][]byte
	// A thinking fragment may still be buffered waiting for a signature
	// that never came; emit it before terminating rather than dropping it.
	if pending := e.parseState.FlushThinking(); pending != nil {
		out, err := e.converter.TransformStreamChunk(*pending, e.emitState)
		if err != nil {
			return frames, err
		}
		frames = append(frames, out...)
	}
	done := e.heldDone
	if done == nil {
		done = &ir.StreamChunk{Type: ir.ChunkDone}
	}
	out, err := e.converter.TransformStreamChunk(*done, e.emitState)
	if err != nil {
		return frames, err
	}
	return append(frames, out...), nil
}

// Abort emits a terminal error frame in the downstream dialect.
func (e *Engine) Abort(err error) ([][]byte, error) {
	if e.finished {
		return nil, nil
	}
	e.finished = true
	return e.converter.TransformStreamChunk(ir.StreamChunk{Type: ir.ChunkError, Err: err}, e.emitState)
}

// FinalUsage returns the usage the upstream reported, when any.
func (e *Engine) FinalUsage() *ir.Usage {
	if e.emitState.FinalUsage != nil {
		return e.emitState.FinalUsage
	}
	if e.heldDone != nil {
		return e.heldDone.Usage
	}
	return nil
}

// ParseErrors reports how many malformed upstream frames were dropped.
func (e *Engine) ParseErrors() int {
	return e.parseState.ParseErrors
}

// PendingToolCall reports whether a partially accumulated tool call would
// be discarded if the stream stopped now.
func (e *Engine) PendingToolCall() bool {
	return e.emitState.Accumulator.Pending()
}
