// Package catalog maintains the model catalog: the mapping from model
// names to the provider that serves them, refreshed from upstream listings
// and cached on disk. The router consults it between static mappings and
// pattern inference.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
)

// ModelInfo describes one catalog entry for listing endpoints.
type ModelInfo struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	DisplayName   string `json:"display_name,omitempty"`
	OwnedBy       string `json:"owned_by,omitempty"`
	Created       int64  `json:"created,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
}

// Fetcher retrieves the live model listing for every provider with
// credentials. Supplied by the host.
type Fetcher func(ctx context.Context) ([]ModelInfo, error)

// Catalog is read-mostly: written at startup, on explicit refresh, and by
// the rate-limited background refresher.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelInfo

	fetcher   Fetcher
	cachePath string

	refreshGroup   singleflight.Group
	refreshLimiter *rate.Limiter
	lastRefresh    time.Time
}

// New creates a catalog. cachePath, when non-empty, is the JSON file the
// catalog persists to between runs; fetcher may be nil for static setups.
func New(fetcher Fetcher, cachePath string) *Catalog {
	c := &Catalog{
		models:    make(map[string]ModelInfo),
		fetcher:   fetcher,
		cachePath: cachePath,
		// One upstream listing sweep per 30s at most.
		refreshLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	if cachePath != "" {
		c.loadCache()
	}
	return c
}

// Replace swaps the whole catalog content.
func (c *Catalog) Replace(models []ModelInfo) {
	next := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		next[m.ID] = m
	}
	c.mu.Lock()
	c.models = next
	c.lastRefresh = time.Now()
	c.mu.Unlock()
}

// Set inserts or updates one entry.
func (c *Catalog) Set(m ModelInfo) {
	if m.ID == "" {
		return
	}
	c.mu.Lock()
	c.models[m.ID] = m
	c.mu.Unlock()
}

// HasModel reports whether name is an exact catalog entry.
func (c *Catalog) HasModel(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.models[name]
	return ok
}

// ResolveProvider resolves name to a provider. An exact match wins;
// otherwise prefix candidates (either direction) are collected, and the
// match is accepted only when every candidate agrees on the provider —
// model names share prefixes across providers too often for
// longest-match to be safe. Candidates that disagree return FormatUnknown
// with ErrAmbiguousModel; no match at all returns FormatUnknown without
// an error.
func (c *Catalog) ResolveProvider(name string) (provider.Format, error) {
	if name == "" {
		return provider.FormatUnknown, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.models[name]; ok {
		return provider.FromString(m.Provider), nil
	}

	var candidate ModelInfo
	var candidateSet bool
	for id, m := range c.models {
		if !strings.HasPrefix(id, name) && !strings.HasPrefix(name, id) {
			continue
		}
		if !candidateSet {
			candidate = m
			candidateSet = true
			continue
		}
		if m.Provider != candidate.Provider {
			return provider.FormatUnknown, fmt.Errorf("%w: %s", translator.ErrAmbiguousModel, name)
		}
		if len(m.ID) > len(candidate.ID) {
			candidate = m
		}
	}
	if !candidateSet {
		return provider.FormatUnknown, nil
	}
	return provider.FromString(candidate.Provider), nil
}

// List returns all entries sorted by id.
func (c *Catalog) List() []ModelInfo {
	c.mu.RLock()
	out := make([]ModelInfo, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Refresh re-fetches the catalog. Concurrent callers share one flight and
// the limiter drops refreshes arriving faster than the refresh window.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.fetcher == nil {
		return nil
	}
	if !c.refreshLimiter.Allow() {
		return nil
	}
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		models, err := c.fetcher(ctx)
		if err != nil {
			return nil, err
		}
		c.Replace(models)
		if c.cachePath != "" {
			c.saveCache()
		}
		logging.Debugf("model catalog refreshed: %d entries", len(models))
		return nil, nil
	})
	return err
}

// LastRefresh reports when the catalog content last changed.
func (c *Catalog) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Catalog) loadCache() {
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return
	}
	var models []ModelInfo
	if err := json.Unmarshal(data, &models); err != nil {
		logging.Warnf("model catalog cache unreadable: %v", err)
		return
	}
	c.Replace(models)
}

func (c *Catalog) saveCache() {
	data, err := json.Marshal(c.List())
	if err != nil {
		return
	}
	if err := os.WriteFile(c.cachePath, data, 0o644); err != nil {
		logging.Warnf("model catalog cache write failed: %v", err)
	}
}
