package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

func TestCountersRecordAndSnapshot(t *testing.T) {
	c := NewCounters()
	c.Record(false, 100)
	c.Record(false, 50)
	c.Record(true, 0)

	snap := c.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.SuccessCount != 2 || snap.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 2/1", snap.SuccessCount, snap.FailureCount)
	}
	if snap.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", snap.TotalTokens)
	}
}

func TestCountersBootstrap(t *testing.T) {
	c := NewCounters()
	c.Bootstrap(10, 8, 2, 5000)
	c.Record(false, 100)

	snap := c.Snapshot()
	if snap.TotalRequests != 11 || snap.TotalTokens != 5100 {
		t.Errorf("snapshot after bootstrap = %+v", snap)
	}
}

func TestCountTextTokens(t *testing.T) {
	if n := CountTextTokens("gpt-4o", ""); n != 0 {
		t.Errorf("empty text counted %d tokens", n)
	}
	n := CountTextTokens("gpt-4o", "Hello, how are you doing today?")
	if n <= 0 || n > 15 {
		t.Errorf("token count = %d, want small positive", n)
	}
}

func TestCountRequestTokens(t *testing.T) {
	if n := CountRequestTokens("gpt-4o", nil); n != 0 {
		t.Errorf("nil request counted %d tokens", n)
	}

	req := &ir.UnifiedRequest{
		Model:  "gpt-4o",
		System: "You are a helpful assistant.",
		Messages: []ir.Message{
			{Role: ir.RoleUser, Parts: []ir.ContentPart{
				{Type: ir.ContentTypeText, Text: "What is the weather in Paris?"},
			}},
			{Role: ir.RoleAssistant, Parts: []ir.ContentPart{
				{Type: ir.ContentTypeToolCall, ToolCallID: "c1", Name: "get_weather", Args: `{"city":"Paris"}`},
			}},
			{Role: ir.RoleTool, Parts: []ir.ContentPart{
				{Type: ir.ContentTypeToolResult, ResultFor: "c1", Result: `{"temp":21}`},
			}},
		},
	}
	n := CountRequestTokens("gpt-4o", req)
	if n < 20 {
		t.Errorf("multi-turn request counted %d tokens, want >= 20", n)
	}

	withImage := &ir.UnifiedRequest{
		Messages: []ir.Message{
			{Role: ir.RoleUser, Parts: []ir.ContentPart{
				{Type: ir.ContentTypeImage, MimeType: "image/png", Data: "aGk="},
			}},
		},
	}
	if n := CountRequestTokens("gpt-4o", withImage); n < imageTokenCost {
		t.Errorf("image request counted %d tokens, want >= %d", n, imageTokenCost)
	}
}

func TestTrackerWithoutBackend(t *testing.T) {
	tr := NewTracker(nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr.RecordRequest("openai", "gpt-4o", "key1", false,
		&ir.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}, nil, nil)

	snap := tr.Snapshot()
	if snap.TotalRequests != 1 || snap.TotalTokens != 30 {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := tr.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTrackerEstimatesWhenUsageMissing(t *testing.T) {
	tr := NewTracker(nil)
	req := &ir.UnifiedRequest{
		Messages: []ir.Message{
			{Role: ir.RoleUser, Parts: []ir.ContentPart{
				{Type: ir.ContentTypeText, Text: "Summarize this paragraph for me please."},
			}},
		},
	}
	tr.RecordRequest("claude", "claude-sonnet-4-5", "", false, nil, req, nil)

	if snap := tr.Snapshot(); snap.TotalTokens == 0 {
		t.Error("estimated tokens not recorded")
	}
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	backend, err := NewSQLiteBackend(dbPath, BackendConfig{})
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer backend.Stop()

	now := time.Now().UTC()
	backend.Enqueue(Record{
		Provider: "openai", Model: "gpt-4o", RequestedAt: now,
		InputTokens: 100, OutputTokens: 50, TotalTokens: 150,
	})
	backend.Enqueue(Record{
		Provider: "claude", Model: "claude-sonnet-4-5", RequestedAt: now, Failed: true,
	})
	if err := backend.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stats, err := backend.QueryGlobalStats(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("QueryGlobalStats: %v", err)
	}
	if stats.TotalRequests != 2 || stats.SuccessCount != 1 || stats.FailureCount != 1 {
		t.Errorf("global stats = %+v", stats)
	}
	if stats.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", stats.TotalTokens)
	}

	providers, err := backend.QueryProviderStats(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("QueryProviderStats: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("provider rows = %d, want 2", len(providers))
	}

	n, err := backend.Cleanup(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("Cleanup removed %d rows, want 2", n)
	}
}

func TestNewBackendRejectsUnknownDSN(t *testing.T) {
	if _, err := NewBackend(BackendConfig{DSN: "mysql://localhost"}); err == nil {
		t.Error("expected error for unknown DSN scheme")
	}
	if _, err := NewBackend(BackendConfig{DSN: ""}); err == nil {
		t.Error("expected error for empty DSN")
	}
}
