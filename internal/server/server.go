// Package server exposes functions and their schedules over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/logger"
)

// Functions runs and locates functions.
type Functions interface {
	Execute(name string, payload []byte) (functions.Result, error)
	Lookup(name string) (string, error)
}

// Scheduler installs and removes schedule lines.
type Scheduler interface {
	Upsert(ctx context.Context, name, expr, command string) error
	Remove(ctx context.Context, name string) error
}

// Schedules is the read side of the schedule mirror.
type Schedules interface {
	All() (map[string]string, error)
}

// RunLogs reads per-function logs.
type RunLogs interface {
	Read(name string) ([]byte, error)
}

// CommandFunc builds the command a schedule line runs for a function located
// at scriptPath.
type CommandFunc func(name, scriptPath string) string

// ScriptCommand runs the function file directly.
func ScriptCommand(_ string, scriptPath string) string {
	return scriptPath
}

// Recorder counts handled requests. *metrics.Metrics implements it.
type Recorder interface {
	RecordHTTPRequest(route string, code int)
}

// Config holds listener and request handling settings.
type Config struct {
	Listen            string
	Serialize         bool
	RateLimit         float64
	RateBurst         int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Deps are the components the handlers delegate to. Metrics and Recorder may
// be nil.
type Deps struct {
	Functions Functions
	Scheduler Scheduler
	Schedules Schedules
	Logs      RunLogs
	Command   CommandFunc
	Metrics   http.Handler
	Recorder  Recorder
	Logger    *logger.Logger
}

// Server is the HTTP front of the host.
type Server struct {
	cfg     Config
	deps    Deps
	logger  *logger.Logger
	handler http.Handler

	exclusive sync.Mutex

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// New wires routes and middleware.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewDiscard()
	}
	if deps.Command == nil {
		deps.Command = ScriptCommand
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ErrorLog:          s.logger.StdLogger(),
	}

	s.srv = srv
	s.ln = ln
	s.done = make(chan error, 1)

	go func(done chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
		close(done)
	}(s.done)

	s.logger.Info("HTTP server listening", logger.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Done delivers the result of the serve loop once it exits.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
