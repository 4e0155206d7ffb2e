package streamutil

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Chunk is one unit of downstream data: a wire frame or a terminal error.
type Chunk struct {
	Data []byte
	Err  error
}

// Pipeline carries transformed frames from the upstream reader goroutine
// to the HTTP writer with lifecycle control. Producers run in an errgroup
// so a failing goroutine cancels the rest.
type Pipeline struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	output chan Chunk

	onComplete func(success bool, elapsed time.Duration)

	startTime time.Time
	mu        sync.Mutex
	closed    bool
	failed    bool
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// BufferSize for the output channel; defaults to 64.
	BufferSize int

	// OnComplete runs once when the pipeline closes.
	OnComplete func(success bool, elapsed time.Duration)
}

// NewPipeline creates a pipeline bound to parent's lifetime.
func NewPipeline(parent context.Context, cfg PipelineConfig) *Pipeline {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	return &Pipeline{
		ctx:        gctx,
		cancel:     cancel,
		group:      g,
		output:     make(chan Chunk, cfg.BufferSize),
		onComplete: cfg.OnComplete,
		startTime:  time.Now(),
	}
}

// Context returns the pipeline's context.
func (p *Pipeline) Context() context.Context { return p.ctx }

// Output returns the read side of the pipeline.
func (p *Pipeline) Output() <-chan Chunk { return p.output }

// Go runs f as a producer; its error cancels the whole pipeline.
func (p *Pipeline) Go(f func(ctx context.Context) error) {
	p.group.Go(func() error {
		return f(p.ctx)
	})
}

// Send delivers one chunk downstream; false means the consumer is gone.
func (p *Pipeline) Send(chunk Chunk) bool {
	if chunk.Err != nil {
		p.mu.Lock()
		p.failed = true
		p.mu.Unlock()
	}
	select {
	case p.output <- chunk:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// SendData delivers one frame downstream.
func (p *Pipeline) SendData(data []byte) bool {
	return p.Send(Chunk{Data: data})
}

// SendError delivers a terminal error downstream.
func (p *Pipeline) SendError(err error) bool {
	return p.Send(Chunk{Err: err})
}

// Close waits for producers and closes the output channel. Idempotent.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	failed := p.failed
	p.mu.Unlock()

	err := p.group.Wait()
	close(p.output)
	if p.onComplete != nil {
		p.onComplete(err == nil && !failed, time.Since(p.startTime))
	}
	p.cancel()
	return err
}

// Start closes the pipeline in the background once producers finish, so
// consumers detect completion through channel close.
func (p *Pipeline) Start() {
	go func() {
		_ = p.Close()
	}()
}

// Cancel aborts the pipeline immediately.
func (p *Pipeline) Cancel() { p.cancel() }
