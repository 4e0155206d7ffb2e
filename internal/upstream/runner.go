package upstream

import (
	"context"
	"errors"
	"io"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/streamutil"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// StreamRunner drives one upstream stream through the engine: frame by
// frame off the upstream body, transformed into the client dialect, into
// the pipeline. The runner owns the handle and finishes it.
type StreamRunner struct {
	handle    *StreamHandle
	parser    translator.ToIRParser
	converter translator.FromIRConverter

	// OnUsage fires once with the final usage when the upstream reported
	// any; wired to accounting.
	OnUsage func(usage ir.Usage)
}

// NewStreamRunner pairs an admitted stream with its dialects.
func NewStreamRunner(handle *StreamHandle, parser translator.ToIRParser, converter translator.FromIRConverter) *StreamRunner {
	return &StreamRunner{handle: handle, parser: parser, converter: converter}
}

// Run consumes the stream until EOF or cancellation, sending transformed
// frames into pipe. It reports the outcome to the breaker and never leaves
// the pipeline without a terminal frame.
func (r *StreamRunner) Run(ctx context.Context, pipe *streamutil.Pipeline, messageID, model string) error {
	engine := streamutil.NewEngine(r.parser, r.converter, messageID, model)
	framer := streamutil.NewFramer(r.handle.Body, upstreamFraming(r.parser.Format()))

	success := false
	defer func() { r.handle.Finish(success) }()

	for {
		if ctx.Err() != nil {
			r.abort(pipe, ctx.Err(), engine)
			return ctx.Err()
		}
		payload, err := framer.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Body closed mid-stream: cancellation or idle timeout.
			r.abort(pipe, err, engine)
			return err
		}
		if streamutil.IsDone(payload) {
			break
		}
		frames, terr := engine.TransformFrame(payload)
		if terr != nil {
			r.abort(pipe, terr, engine)
			return terr
		}
		for _, frame := range frames {
			if !pipe.SendData(frame) {
				return ctx.Err()
			}
		}
	}

	frames, err := engine.Finish()
	if err != nil {
		r.abort(pipe, err, engine)
		return err
	}
	for _, frame := range frames {
		if !pipe.SendData(frame) {
			return ctx.Err()
		}
	}
	if engine.ParseErrors() > 0 {
		logging.Debugf("stream finished with %d unparsable upstream frames", engine.ParseErrors())
	}
	if r.OnUsage != nil {
		if usage := engine.FinalUsage(); usage != nil {
			r.OnUsage(*usage)
		}
	}
	success = true
	return nil
}

// upstreamFraming reads the stream framing the upstream dialect declares.
func upstreamFraming(p provider.Format) translator.StreamParserKind {
	if conv, err := translator.GetRegistry().FromIR(p); err == nil {
		if kind := conv.Config().StreamParser; kind != "" {
			return kind
		}
	}
	return translator.StreamSSEStandard
}

func (r *StreamRunner) abort(pipe *streamutil.Pipeline, cause error, engine *streamutil.Engine) {
	frames, err := engine.Abort(cause)
	if err != nil {
		pipe.SendError(cause)
		return
	}
	for _, frame := range frames {
		if !pipe.SendData(frame) {
			return
		}
	}
	pipe.SendError(cause)
}
