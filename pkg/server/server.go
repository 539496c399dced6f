// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the agent loop over HTTP: a connection-capped
// one-shot endpoint (POST /run) and a bidirectional streaming endpoint
// (GET /live, upgraded to a WebSocket), plus small ambient endpoints for
// introspection (/knowledge_graphs, /config) and UI state persistence
// (/save, /load). Grounded in original_source/server.py, restructured
// around chi and gorilla/websocket the way
// kadirpekel-hector/pkg/transport and a2a/server.go structure their own
// HTTP surfaces.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/utils"
)

// Server owns one agent deployment's HTTP/WS surface: a shared model
// bridge and set of knowledge graph managers, and a connection-admission
// counter bounding how many requests/streams may run concurrently.
type Server struct {
	cfg      *config.Config
	bridge   *llms.Bridge
	managers []*kg.Manager
	notes    []string
	logger   *slog.Logger

	router     chi.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	active            int64
	maxConnections    int64
	generationTimeout time.Duration
	idleTimeout       time.Duration
	stateDir          string

	metrics *metrics
}

// New builds a Server from a loaded config, the shared model bridge, and
// the knowledge graph managers it was configured with. notes are the
// general (cross-knowledge-graph) notes loaded at startup, mirrored into
// every request's feedback round.
func New(cfg *config.Config, bridge *llms.Bridge, managers []*kg.Manager, notes []string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	genTimeout, err := time.ParseDuration(cfg.Server.MaxGenerationTime)
	if err != nil {
		return nil, fmt.Errorf("parse server.max_generation_time %q: %w", cfg.Server.MaxGenerationTime, err)
	}
	idleTimeout, err := time.ParseDuration(cfg.Server.MaxIdleTime)
	if err != nil {
		return nil, fmt.Errorf("parse server.max_idle_time %q: %w", cfg.Server.MaxIdleTime, err)
	}

	stateDir, err := utils.DefaultStateDir(cfg.Server.StateDir)
	if err != nil {
		logger.Warn("state directory unavailable, /save and /load will fail", "error", err)
	}

	s := &Server{
		cfg:               cfg,
		bridge:            bridge,
		managers:          managers,
		notes:             notes,
		logger:            logger,
		maxConnections:    int64(cfg.Server.MaxConnections),
		generationTimeout: genTimeout,
		idleTimeout:       idleTimeout,
		stateDir:          stateDir,
		metrics:           newMetrics(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.metricsMiddleware)

	r.Get("/knowledge_graphs", s.handleKnowledgeGraphs)
	r.Get("/config", s.handleConfig)
	r.Post("/run", s.handleRun)
	r.Get("/live", s.handleLive)
	r.Post("/save", s.handleSave)
	r.Get("/load/{id}", s.handleLoad)
	r.Handle("/metrics", s.handleMetrics())
	return r
}

// ListenAndServe starts the HTTP server and blocks until it stops or ctx
// is cancelled, mirroring the original's uvicorn.run/shutdown pairing.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// acquire reserves one connection slot, mirroring the original's
// active_connections check against max_connections before accepting a
// request. It reports whether the slot was granted.
func (s *Server) acquire() bool {
	for {
		cur := atomic.LoadInt64(&s.active)
		if cur >= s.maxConnections {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.active, cur, cur+1) {
			s.metrics.activeConns.Inc()
			return true
		}
	}
}

func (s *Server) release() {
	atomic.AddInt64(&s.active, -1)
	s.metrics.activeConns.Dec()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = writeJSON(w, data)
}

func (s *Server) handleKnowledgeGraphs(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"knowledge_graphs": kg.Names(s.managers)})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.cfg)
}
