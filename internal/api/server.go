// Package api exposes the gateway over HTTP: one endpoint per client
// dialect, model lists shaped per dialect, and a small management surface.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bridgekit/llm-bridge/internal/catalog"
	"github.com/bridgekit/llm-bridge/internal/config"
	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/router"
	"github.com/bridgekit/llm-bridge/internal/upstream"
	"github.com/bridgekit/llm-bridge/internal/usage"
)

// Options carries the wired collaborators into the server.
type Options struct {
	Config  *config.Config
	Router  *router.Router
	Catalog *catalog.Catalog
	Client  *upstream.Client
	Tracker *usage.Tracker
}

// Server is the HTTP front end.
type Server struct {
	engine  *gin.Engine
	httpSrv *http.Server

	cfg     atomic.Pointer[config.Config]
	routes  *router.Router
	catalog *catalog.Catalog
	client  *upstream.Client
	tracker *usage.Tracker
	events  *eventHub

	managementEnabled atomic.Bool
}

// New assembles the server and its routes.
func New(opts Options) *Server {
	if !opts.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		engine:  gin.New(),
		routes:  opts.Router,
		catalog: opts.Catalog,
		client:  opts.Client,
		tracker: opts.Tracker,
		events:  newEventHub(),
	}
	s.cfg.Store(opts.Config)
	s.managementEnabled.Store(true)

	s.engine.Use(logging.GinLogger())
	s.engine.Use(logging.GinRecovery())
	s.engine.Use(corsMiddleware())
	s.engine.Use(requestIDMiddleware())

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1", s.authMiddleware())
	{
		v1.POST("/chat/completions", s.handleChatCompletions)
		v1.POST("/responses", s.handleResponses)
		v1.POST("/messages", s.handleMessages)
		v1.GET("/models", s.handleListModels)
	}

	beta := s.engine.Group("/v1beta", s.authMiddleware())
	{
		beta.GET("/models", s.handleGeminiModels)
		beta.POST("/models/:modelAction", s.handleGemini)
	}

	mgmt := s.engine.Group("/v0/management", s.authMiddleware(), s.managementAvailabilityMiddleware())
	{
		mgmt.GET("/config", s.handleGetConfig)
		mgmt.POST("/catalog/refresh", s.handleCatalogRefresh)
		mgmt.GET("/usage", s.handleUsageStats)
		mgmt.GET("/events", s.handleEvents)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.events.close()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// UpdateConfig swaps the active config after a hot reload.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.events.broadcast(event{Type: "config.reloaded", Time: time.Now().UTC()})
}

func (s *Server) config() *config.Config { return s.cfg.Load() }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
