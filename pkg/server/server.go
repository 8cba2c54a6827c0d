package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/telemetry/health"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/worklog"
)

// Controller is the orchestrator surface served by the API.
// *automation.Orchestrator implements it.
type Controller interface {
	State() automation.State
	StartTimer(ctx context.Context) error
	StopTimer(ctx context.Context) (bool, error)
	SubmitTime(ctx context.Context, description string) (*worklog.Result, error)
	SelectTicket(ctx context.Context, key string) (*ticket.Info, error)
	ClearCurrentTicket()
	Settings() storage.Settings
	SetAutoStart(on bool)
	SetAutoLog(on bool)
	CheckAuthentication(ctx context.Context) error
}

// RepositoryLister lists watched repositories. *gitwatch.Watcher
// implements it.
type RepositoryLister interface {
	Repositories() []gitwatch.BranchInfo
}

// JournalReader reads logged entries. storage.Store implements it.
type JournalReader interface {
	ListEntries(ctx context.Context, opts storage.ListOptions) ([]storage.JournalEntry, error)
}

// Options wires the server to the rest of the daemon. Only Controller is
// required.
type Options struct {
	Controller   Controller
	Repositories RepositoryLister
	Journal      JournalReader
	WorkspaceID  string

	Health  *health.Checker
	Version health.VersionInfo
	Metrics *metrics.Collector
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Tracer      *tracing.Tracer
	Logger      *slog.Logger
}

// Server is the local control API.
type Server struct {
	config     config.ServerConfig
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server

	mu           sync.RWMutex
	isRunning    bool
	addr         string
	shutdownOnce sync.Once
}

// New creates a server. It does not listen until Start.
func New(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		config: cfg,
		opts:   opts,
		logger: logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", "address", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("shutting down control API", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("control API stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address once Start has listened.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.opts.Tracer.Enabled() {
		handler = s.opts.Tracer.Middleware(handler)
	}
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/timer/start", s.handleStart)
	mux.HandleFunc("POST /api/timer/stop", s.handleStop)
	mux.HandleFunc("POST /api/timer/submit", s.handleSubmit)
	mux.HandleFunc("PUT /api/ticket", s.handleSelectTicket)
	mux.HandleFunc("DELETE /api/ticket", s.handleClearTicket)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/repositories", s.handleRepositories)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/auth/check", s.handleAuthCheck)

	if s.opts.Health != nil {
		s.opts.Health.Register(mux, s.opts.Version)
	}
	if s.opts.Metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
}
