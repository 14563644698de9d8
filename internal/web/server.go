package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mtogate/mtogate/internal/config"
	"github.com/mtogate/mtogate/internal/status"
	"github.com/mtogate/mtogate/internal/syncer"
)

// Pinger is the upstream liveness probe used by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API for MTO status queries and sync administration.
type Server struct {
	cfg    config.Config
	svc    *status.Service
	orch   *syncer.Orchestrator
	pinger Pinger
	mux    *http.ServeMux
	server *http.Server
}

// New creates the API server.
func New(cfg config.Config, svc *status.Service, orch *syncer.Orchestrator, pinger Pinger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		orch:   orch,
		pinger: pinger,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // live fan-outs can be slow
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut down.
func (s *Server) Start() error {
	log.Printf("api listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/mto/{mto}", s.handleGetStatus)
	s.mux.HandleFunc("GET /api/v1/mto/{mto}/related", s.handleRelatedOrders)

	s.mux.HandleFunc("POST /api/v1/sync", s.handleTriggerSync)
	s.mux.HandleFunc("GET /api/v1/sync/status", s.handleSyncStatus)
	s.mux.HandleFunc("GET /api/v1/sync/history", s.handleSyncHistory)
	s.mux.HandleFunc("GET /api/v1/sync/config", s.handleGetSyncConfig)
	s.mux.HandleFunc("PUT /api/v1/sync/config", s.handleUpdateSyncConfig)

	s.mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /api/v1/cache/stats/reset", s.handleCacheStatsReset)
	s.mux.HandleFunc("POST /api/v1/cache/clear", s.handleCacheClear)
	s.mux.HandleFunc("POST /api/v1/cache/warm", s.handleCacheWarm)
	s.mux.HandleFunc("GET /api/v1/cache/hot", s.handleCacheHot)
	s.mux.HandleFunc("DELETE /api/v1/cache/{mto}", s.handleCacheInvalidate)
}
