package usage

import (
	"context"
	"time"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// Tracker is the accounting front door: every finished request passes
// through it once. Works with a nil backend (counters only).
type Tracker struct {
	counters *Counters
	backend  Backend
}

func NewTracker(backend Backend) *Tracker {
	return &Tracker{counters: NewCounters(), backend: backend}
}

// Start bootstraps counters from history and starts the backend loops.
func (t *Tracker) Start(ctx context.Context) error {
	if t.backend == nil {
		return nil
	}
	if err := t.backend.Start(); err != nil {
		return err
	}
	stats, err := t.backend.QueryGlobalStats(ctx, time.Time{})
	if err != nil {
		logging.Warnf("usage counter bootstrap failed: %v", err)
		return nil
	}
	t.counters.Bootstrap(stats.TotalRequests, stats.SuccessCount, stats.FailureCount, stats.TotalTokens)
	return nil
}

func (t *Tracker) Stop() error {
	if t == nil || t.backend == nil {
		return nil
	}
	return t.backend.Stop()
}

// RecordRequest accounts one finished request. A nil usage means the
// upstream reported nothing; pass the request and response for estimation.
func (t *Tracker) RecordRequest(providerName, model, apiKey string, failed bool, usage *ir.Usage, req *ir.UnifiedRequest, resp *ir.UnifiedResponse) {
	if t == nil {
		return
	}
	record := Record{
		Provider:    providerName,
		Model:       model,
		APIKey:      apiKey,
		RequestedAt: time.Now().UTC(),
		Failed:      failed,
	}
	if usage != nil {
		record.InputTokens = int64(usage.InputTokens)
		record.OutputTokens = int64(usage.OutputTokens)
		record.ThinkingTokens = int64(usage.ThinkingTokens)
		record.CachedTokens = int64(usage.CachedTokens)
		record.TotalTokens = int64(usage.TotalTokens)
		if record.TotalTokens == 0 {
			record.TotalTokens = record.InputTokens + record.OutputTokens
		}
	} else if req != nil || resp != nil {
		record.InputTokens = int64(CountRequestTokens(model, req))
		record.OutputTokens = int64(CountResponseTokens(model, resp))
		record.TotalTokens = record.InputTokens + record.OutputTokens
		record.Estimated = true
	}

	t.counters.Record(failed, record.TotalTokens)
	if t.backend != nil {
		t.backend.Enqueue(record)
	}
}

// Snapshot returns the live counters.
func (t *Tracker) Snapshot() CounterSnapshot {
	if t == nil {
		return CounterSnapshot{}
	}
	return t.counters.Snapshot()
}

// Backend exposes the history store for the stats endpoints; nil when
// usage persistence is disabled.
func (t *Tracker) Backend() Backend {
	if t == nil {
		return nil
	}
	return t.backend
}
