// Package api provides HTTP handlers and the server for Styleflow.
//
// It exposes the chat entry point plus feedback recording and reporting
// endpoints. The transport layer carries no dialogue semantics of its own;
// everything flows through the engine.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/broadway-labs/styleflow/internal/feedback"
	"github.com/broadway-labs/styleflow/internal/flow"
	"github.com/broadway-labs/styleflow/internal/store"
)

// Default server configuration
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the engine and collaborators to HTTP endpoints.
type Server struct {
	engine   *flow.Engine
	recorder *feedback.Recorder
	store    store.Store
	addr     string
}

// NewServer creates an API server around the dialogue engine.
func NewServer(engine *flow.Engine, recorder *feedback.Recorder, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: engine, recorder: recorder, store: st, addr: cfg.Addr}
}

// Routes returns the HTTP handler with all endpoints registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/sessions/", s.sessionHandler)
	mux.HandleFunc("/feedback", s.feedbackHandler)
	mux.HandleFunc("/feedback/stats", s.feedbackStatsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Routes()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Styleflow API listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Styleflow API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
