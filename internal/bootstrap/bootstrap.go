// Package bootstrap assembles the gateway from configuration: credentials,
// catalog, router, accounting, upstream client and HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bridgekit/llm-bridge/internal/api"
	"github.com/bridgekit/llm-bridge/internal/auth"
	"github.com/bridgekit/llm-bridge/internal/catalog"
	"github.com/bridgekit/llm-bridge/internal/config"
	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/router"
	"github.com/bridgekit/llm-bridge/internal/store"
	"github.com/bridgekit/llm-bridge/internal/upstream"
	"github.com/bridgekit/llm-bridge/internal/usage"
)

// App is the assembled gateway.
type App struct {
	Config     *config.Config
	ConfigPath string

	Credentials *auth.ConfigCredentials
	Tokens      auth.CredentialProvider
	Catalog     *catalog.Catalog
	Router      *router.Router
	Signatures  *store.SignatureStore
	Tracker     *usage.Tracker
	Client      *upstream.Client
	Server      *api.Server
}

// Load reads configuration and wires every component. configPath may be
// empty or point at a missing file; defaults then apply.
func Load(configPath string) (*App, error) {
	config.LoadDotEnv(".")

	cfg, err := config.LoadConfigOptional(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	config.ApplyEnvOverrides(cfg)

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logFile := ""
	if cfg.LoggingToFile {
		dir := cfg.LogDir
		if dir == "" {
			dir = "logs"
		}
		logFile = filepath.Join(dir, "llm-bridge.log")
	}
	logging.Init(logging.Options{Level: level, File: logFile})

	creds := auth.FromConfig(cfg)
	tokens := auth.NewTokenManager(creds, auth.OAuthRefreshers(), auth.DefaultTokenManagerConfig())

	cat := catalog.New(buildFetcher(cfg), cfg.CatalogCachePath)
	rtr := router.New(router.Config{
		Routes:         buildRoutes(cfg),
		Catalog:        cat,
		Credentials:    creds,
		OpenAIFallback: cfg.OpenAIFallback,
	})

	sigOpts := []store.Option{}
	if cfg.SignatureStore.Capacity > 0 {
		sigOpts = append(sigOpts, store.WithCapacity(cfg.SignatureStore.Capacity))
	}
	if cfg.SignatureStore.TTLHours > 0 {
		sigOpts = append(sigOpts, store.WithTTL(time.Duration(cfg.SignatureStore.TTLHours)*time.Hour))
	}
	if cfg.SignatureStore.Path != "" {
		sigOpts = append(sigOpts, store.WithPersistence(cfg.SignatureStore.Path))
	}
	signatures := store.NewSignatureStore(sigOpts...)

	var backend usage.Backend
	if cfg.Usage.Enabled && cfg.Usage.DSN != "" {
		backend, err = usage.NewBackend(usage.BackendConfig{
			DSN:           cfg.Usage.DSN,
			RetentionDays: cfg.Usage.RetentionDays,
		})
		if err != nil {
			logging.Warnf("usage backend unavailable, counters only: %v", err)
			backend = nil
		}
	}
	tracker := usage.NewTracker(backend)

	client := upstream.NewClient(creds, tokens).WithSignatureStore(signatures)

	server := api.New(api.Options{
		Config:  cfg,
		Router:  rtr,
		Catalog: cat,
		Client:  client,
		Tracker: tracker,
	})

	return &App{
		Config:      cfg,
		ConfigPath:  configPath,
		Credentials: creds,
		Tokens:      tokens,
		Catalog:     cat,
		Router:      rtr,
		Signatures:  signatures,
		Tracker:     tracker,
		Client:      client,
		Server:      server,
	}, nil
}

// Run starts background work and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Tracker.Start(ctx); err != nil {
		return fmt.Errorf("usage tracker: %w", err)
	}
	defer func() {
		if err := a.Tracker.Stop(); err != nil {
			logging.Warnf("usage tracker shutdown: %v", err)
		}
		if err := a.Signatures.Save(); err != nil {
			logging.Warnf("signature store save: %v", err)
		}
	}()

	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := a.Catalog.Refresh(refreshCtx); err != nil {
			logging.Warnf("initial catalog refresh: %v", err)
		}
	}()

	if a.ConfigPath != "" {
		stop := make(chan struct{})
		defer close(stop)
		err := config.Watch(a.ConfigPath, stop, func(cfg *config.Config) {
			config.ApplyEnvOverrides(cfg)
			a.Server.UpdateConfig(cfg)
			logging.Infof("configuration reloaded")
		})
		if err != nil {
			logging.Warnf("config watch unavailable: %v", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", a.Config.Host, a.Config.Port)
	return a.Server.Run(ctx, addr)
}

// buildRoutes converts config static routes into the router's table.
func buildRoutes(cfg *config.Config) map[string]router.Route {
	if len(cfg.ModelRoutes) == 0 {
		return nil
	}
	routes := make(map[string]router.Route, len(cfg.ModelRoutes))
	for name, route := range cfg.ModelRoutes {
		routes[name] = router.Route{Target: route.Target, Fallbacks: route.Fallbacks}
	}
	return routes
}

// buildFetcher seeds the catalog with config-declared models and adds a
// live listing source per keyed provider.
func buildFetcher(cfg *config.Config) catalog.Fetcher {
	var static []catalog.ModelInfo
	var sources []catalog.Source

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if !p.IsEnabled() {
			continue
		}
		format := provider.FromString(string(p.Type))
		if format == provider.FormatUnknown {
			continue
		}
		for _, m := range p.Models {
			id := m.Name
			if m.Alias != "" {
				id = m.Alias
			}
			static = append(static, catalog.ModelInfo{
				ID:       id,
				Provider: string(format),
				OwnedBy:  p.GetDisplayName(),
			})
		}
		keys := p.GetAPIKeys()
		if len(keys) == 0 {
			continue
		}
		switch format {
		case provider.FormatOpenAI, provider.FormatClaude, provider.FormatGemini:
			sources = append(sources, catalog.Source{
				Provider: format,
				Key:      keys[0].Key,
				BaseURL:  p.BaseURL,
			})
		}
	}
	return catalog.NewProviderFetcher(static, sources)
}
