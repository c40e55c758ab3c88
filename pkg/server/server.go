// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencivic/ask311/pkg/pipeline"
)

// Config holds the configuration for the HTTP server.
type Config struct {
	Logger *slog.Logger
	Addr   string

	Pipeline pipeline.Runner
	Schema   pipeline.SchemaFetcher

	// AllowedOrigins for CORS. Empty disables cross-origin access.
	AllowedOrigins []string

	RequestTimeout  time.Duration // per-request ceiling (default 120s)
	ShutdownTimeout time.Duration // drain window on shutdown (default 30s)
}

// Server is the HTTP front end. Create with New, run with Run.
type Server struct {
	cfg *Config
	log *slog.Logger
	srv *http.Server
}

// New creates a new Server.
func New(cfg *Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema fetcher is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{cfg: cfg, log: log}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/api/schema", s.handleSchema)
	r.Post("/api/chat", s.handleChat)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server: shutting down", "drain", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ready reports whether the schema is loadable, which implies the database
// file is present and the catalog is populated.
func (s *Server) ready(ctx context.Context) error {
	sc, err := s.cfg.Schema.FetchSchema(ctx)
	if err != nil {
		return err
	}
	if sc.Empty() {
		return fmt.Errorf("no tables loaded")
	}
	return nil
}
