package resilience

import (
	"github.com/sony/gobreaker"
)

// StreamingCircuitBreaker is the two-phase breaker for streaming calls: a
// stream's outcome is unknown until it finishes, so admission and outcome
// recording are separate steps.
type StreamingCircuitBreaker struct {
	cb *gobreaker.TwoStepCircuitBreaker
}

func NewStreamingCircuitBreaker(cfg BreakerConfig) *StreamingCircuitBreaker {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip(cfg),
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
	}
	return &StreamingCircuitBreaker{cb: gobreaker.NewTwoStepCircuitBreaker(settings)}
}

// Allow admits or rejects a new stream. The returned done callback must be
// invoked exactly once when the stream finishes: done(true) on clean
// completion, done(false) on failure or mid-stream error.
func (s *StreamingCircuitBreaker) Allow() (done func(success bool), err error) {
	return s.cb.Allow()
}

func (s *StreamingCircuitBreaker) State() gobreaker.State   { return s.cb.State() }
func (s *StreamingCircuitBreaker) Counts() gobreaker.Counts { return s.cb.Counts() }
func (s *StreamingCircuitBreaker) Name() string             { return s.cb.Name() }
