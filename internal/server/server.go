// ABOUTME: HTTP server wiring the portal API, websocket chat, and health checks
// ABOUTME: Owns the mux, runs the listener, and handles graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skyarc/portalbot/internal/chat"
	"github.com/skyarc/portalbot/internal/config"
	"github.com/skyarc/portalbot/internal/ingest"
	"github.com/skyarc/portalbot/internal/kg"
	"github.com/skyarc/portalbot/internal/resolver"
	"github.com/skyarc/portalbot/internal/store"
)

// shutdownTimeout bounds how long Run waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Searcher answers similarity queries for the search API.
type Searcher = resolver.Searcher

// Server hosts the portal bot's HTTP and websocket endpoints.
type Server struct {
	cfg       *config.Config
	store     store.Store
	graph     *kg.Service
	searcher  Searcher
	resolver  *resolver.Resolver
	scraper   *ingest.Scraper
	processor *ingest.Processor
	hub       *chat.Hub
	upgrader  websocket.Upgrader
	mux       *http.ServeMux
	logger    *slog.Logger
}

// New wires a server from its components and registers all routes.
func New(cfg *config.Config, st store.Store, graph *kg.Service, searcher Searcher,
	res *resolver.Resolver, scraper *ingest.Scraper, processor *ingest.Processor) *Server {

	s := &Server{
		cfg:       cfg,
		store:     st,
		graph:     graph,
		searcher:  searcher,
		resolver:  res,
		scraper:   scraper,
		processor: processor,
		hub:       chat.NewHub(nil),
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		mux:       http.NewServeMux(),
		logger:    slog.Default().With("component", "server"),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/ready", s.handleReady)
	s.mux.HandleFunc("GET /api/knowledge_graph/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/search", s.requireAuth(s.handleSearch))
	s.mux.HandleFunc("POST /api/scrape_portal", s.requireAuth(s.handleScrapePortal))
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/chat_history", s.handleChatHistory)
	s.mux.HandleFunc("GET /ws/chat", s.handleChat)
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP until ctx is cancelled or the listener fails, then
// shuts down gracefully and closes the hub.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.HTTPAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	s.hub.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
