// ABOUTME: HTTP server setup, routing, and lifecycle for the gateway
// ABOUTME: Runs until context cancellation, then shuts down gracefully

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentgaia/gaia-gateway/internal/chat"
	"github.com/agentgaia/gaia-gateway/internal/config"
	"github.com/agentgaia/gaia-gateway/internal/llm"
	"github.com/agentgaia/gaia-gateway/internal/store"
)

// Config wires the server's collaborators.
type Config struct {
	HTTPAddr string
	Registry *chat.Registry
	Pipeline *chat.Pipeline
	Router   *llm.Router
	Repo     store.Store
	Chain    []string
	Models   map[string]string
	Logger   *slog.Logger
}

// Server is the HTTP face of the gateway.
type Server struct {
	httpAddr   string
	registry   *chat.Registry
	pipeline   *chat.Pipeline
	router     *llm.Router
	repo       store.Store
	chain      []string
	models     map[string]string
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server and builds its route table.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		httpAddr: cfg.HTTPAddr,
		registry: cfg.Registry,
		pipeline: cfg.Pipeline,
		router:   cfg.Router,
		repo:     cfg.Repo,
		chain:    cfg.Chain,
		models:   cfg.Models,
		logger:   logger.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws/chat", s.handleChat)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/providers", s.handleProviders)
		r.Get("/export", s.handleExport)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Delete("/conversations/{id}", s.handleDeleteConversation)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until the context is canceled
// or the server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The run context is already canceled; shutdown gets its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// ProvidersFromConfig builds the name-to-model map the providers
// endpoint reports.
func ProvidersFromConfig(cfg *config.Config) map[string]string {
	models := make(map[string]string, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		models[p.Name] = p.Model
	}
	return models
}
