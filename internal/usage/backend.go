package usage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend persists usage records. Implementations must be safe for
// concurrent use; Enqueue never blocks the request path.
type Backend interface {
	Enqueue(record Record)
	Flush(ctx context.Context) error

	QueryGlobalStats(ctx context.Context, since time.Time) (*AggregatedStats, error)
	QueryDailyStats(ctx context.Context, since time.Time) ([]DailyStats, error)
	QueryProviderStats(ctx context.Context, since time.Time) ([]ProviderStats, error)
	QueryModelStats(ctx context.Context, since time.Time) ([]ModelStats, error)

	Cleanup(ctx context.Context, before time.Time) (int64, error)

	Start() error
	Stop() error
}

// BackendConfig holds backend tuning.
type BackendConfig struct {
	DSN           string
	BatchSize     int
	FlushInterval time.Duration
	RetentionDays int
}

// NewBackend selects a backend from the DSN scheme: "sqlite://path" or
// "postgres://...".
func NewBackend(cfg BackendConfig) (Backend, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("usage DSN is required (sqlite:// or postgres://)")
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteBackend(strings.TrimPrefix(dsn, "sqlite://"), cfg)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresBackend(dsn, cfg)
	}
	return nil, fmt.Errorf("unknown usage backend in DSN %q", cfg.DSN)
}
