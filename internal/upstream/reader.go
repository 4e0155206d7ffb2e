package upstream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/streamutil"
)

// StreamReader wraps an upstream response body with context cancellation
// and idle detection. Cancelling the context closes the body, which
// unblocks any pending Read; idle detection is delegated to the shared
// watcher so each stream costs no extra goroutines.
type StreamReader struct {
	body      io.ReadCloser
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	touch func()
	done  func()

	providerName string
}

// NewStreamReader wraps body. idleTimeout of 0 disables idle detection.
func NewStreamReader(ctx context.Context, body io.ReadCloser, idleTimeout time.Duration, providerName string) *StreamReader {
	sr := &StreamReader{body: body, providerName: providerName}
	if idleTimeout > 0 {
		sr.touch, sr.done = streamutil.DefaultIdleWatcher().Register(ctx, idleTimeout, func() {
			logging.Warnf("%s: stream idle past %v, closing connection", providerName, idleTimeout)
			sr.closeWithReason("idle timeout")
		})
	} else {
		stop := context.AfterFunc(ctx, func() {
			sr.closeWithReason("context cancelled")
		})
		sr.done = func() { stop() }
	}
	return sr
}

// Read implements io.Reader, refreshing the idle clock on progress.
func (sr *StreamReader) Read(p []byte) (int, error) {
	if sr.closed.Load() {
		return 0, io.EOF
	}
	n, err := sr.body.Read(p)
	if n > 0 && sr.touch != nil {
		sr.touch()
	}
	return n, err
}

func (sr *StreamReader) closeWithReason(reason string) {
	sr.closeOnce.Do(func() {
		sr.closed.Store(true)
		sr.closeErr = sr.body.Close()
		logging.Debugf("%s: stream closed: %s", sr.providerName, reason)
	})
}

// Close implements io.Closer. Safe to call multiple times.
func (sr *StreamReader) Close() error {
	sr.closeWithReason("explicit close")
	if sr.done != nil {
		sr.done()
	}
	return sr.closeErr
}
