package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bridgekit/llm-bridge/internal/config"
)

// handleGetConfig returns the active config with credentials masked.
func (s *Server) handleGetConfig(c *gin.Context) {
	cfg := s.config()
	redacted := *cfg
	redacted.APIKeys = maskAll(cfg.APIKeys)
	redacted.Providers = make([]config.Provider, len(cfg.Providers))
	for i, p := range cfg.Providers {
		masked := p
		masked.APIKey = mask(p.APIKey)
		masked.APIKeys = nil
		redacted.Providers[i] = masked
	}
	c.JSON(http.StatusOK, &redacted)
}

func (s *Server) handleCatalogRefresh(c *gin.Context) {
	if err := s.catalog.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{
			"type":    "api_error",
			"message": "catalog refresh failed: " + err.Error(),
		}})
		return
	}
	s.events.broadcast(event{Type: "catalog.refreshed", Time: time.Now().UTC()})
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"models":       len(s.catalog.List()),
		"last_refresh": s.catalog.LastRefresh(),
	})
}

// handleUsageStats returns the live counters plus, when a backend is
// configured, aggregates over the requested window (?days=N, default 7).
func (s *Server) handleUsageStats(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	out := gin.H{"counters": s.tracker.Snapshot()}
	backend := s.tracker.Backend()
	if backend != nil {
		since := time.Now().AddDate(0, 0, -days)
		ctx := c.Request.Context()
		if daily, err := backend.QueryDailyStats(ctx, since); err == nil {
			out["by_day"] = daily
		}
		if providers, err := backend.QueryProviderStats(ctx, since); err == nil {
			out["by_provider"] = providers
		}
		if models, err := backend.QueryModelStats(ctx, since); err == nil {
			out["by_model"] = models
		}
	}
	c.JSON(http.StatusOK, out)
}

func mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func maskAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = mask(k)
	}
	return out
}
