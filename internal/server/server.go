// Package server runs the tome HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/ollama"
	"github.com/jackzampolin/tome/internal/progress"
	"github.com/jackzampolin/tome/internal/providers"
	"github.com/jackzampolin/tome/internal/server/endpoints"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// shutdownTimeout bounds how long in-flight requests get to finish. A
// running job stops at its next cancellation point within this window.
const shutdownTimeout = 30 * time.Second

// Server is the tome HTTP server. When configured to, it also manages a
// local Ollama container for the lifetime of the server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	running  bool
	addr     string
	listener chan struct{}
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080). "0" picks a free port.
	Port string
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string
	// Home is the tome home directory.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Store and Registry replace the defaults, for tests.
	Store    progress.Store
	Registry *providers.Registry
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		listener: make(chan struct{}),
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	// No write timeout: a start request is answered when its job ends.
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           c.Handler(s.withServices(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Start wires the services, starts the managed Ollama container if
// configured, and serves HTTP. It blocks until the context is cancelled or
// the listener fails, then shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	services, err := svcctx.Build(svcctx.Options{
		Home:          s.cfg.Home,
		ConfigManager: s.cfg.ConfigManager,
		Logger:        s.logger,
		Store:         s.cfg.Store,
		Registry:      s.cfg.Registry,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			s.logger.Error("closing services", "error", err)
		}
	}()

	if oc := s.cfg.ConfigManager.Get().Ollama; oc.ManageContainer {
		mgr, err := s.startOllama(ctx, oc)
		if err != nil {
			return err
		}
		defer s.stopOllama(mgr)
		services.Ollama = mgr
	}

	stopping := make(chan struct{})
	services.Stopping = stopping

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.services = services
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.listener)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down server")
		close(stopping)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) startOllama(ctx context.Context, oc config.OllamaConfig) (*ollama.DockerManager, error) {
	mgr, err := ollama.NewDockerManager(ollama.DockerConfig{
		ContainerName: oc.ContainerName,
		Image:         oc.Image,
		HostPort:      oc.Port,
		DataPath:      s.cfg.Home.OllamaDataDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama manager: %w", err)
	}
	if err := mgr.ValidateExisting(ctx); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("existing Ollama container incompatible: %w", err)
	}
	s.logger.Info("starting Ollama", "container", mgr.ContainerName())
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("failed to start Ollama: %w", err)
	}
	s.logger.Info("Ollama is ready", "url", mgr.URL())

	// Pull the models of enabled ollama providers that point at the container.
	for name, p := range s.cfg.ConfigManager.Get().EnabledProviders() {
		if p.Type != "ollama" || p.Model == "" || p.BaseURL != mgr.URL() {
			continue
		}
		pulled, err := ollama.EnsureModel(ctx, mgr.URL(), p.Model)
		if err != nil {
			s.logger.Warn("failed to pull model", "provider", name, "model", p.Model, "error", err)
			continue
		}
		if pulled {
			s.logger.Info("pulled model", "provider", name, "model", p.Model)
		}
	}
	return mgr, nil
}

func (s *Server) stopOllama(mgr *ollama.DockerManager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("stopping Ollama")
	if err := mgr.Stop(ctx); err != nil {
		s.logger.Error("Ollama stop error", "error", err)
	}
	if err := mgr.Close(); err != nil {
		s.logger.Error("Ollama manager close error", "error", err)
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Listening is closed once the server accepts connections.
func (s *Server) Listening() <-chan struct{} {
	return s.listener
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != "" {
		return s.addr
	}
	return s.httpServer.Addr
}

// Services returns the wired services. Returns nil before Start.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the orchestrator is wired.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc := s.Services(); svc == nil || svc.Orchestrator == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
