// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/correlation"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Server is the HTTP server hosting the passkey ceremony endpoints along
// with health and metrics surfaces.
type Server struct {
	server  *http.Server
	handler *passkeyhttp.Handler
	config  *Config
	logger  *slog.Logger
	limiter *ratelimit.Limiter
	started time.Time
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the listen address (default: localhost)
	Host string

	// Port is the HTTP port to listen on (default: 8080)
	Port int

	// Handler serves the passkey ceremony endpoints (required)
	Handler *passkeyhttp.Handler

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	// MetricsEnabled exposes Prometheus metrics at MetricsPath
	MetricsEnabled bool
	MetricsPath    string

	// HealthEnabled exposes a liveness endpoint at HealthPath
	HealthEnabled bool
	HealthPath    string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// RateLimit throttles the ceremony endpoints per client (optional)
	RateLimit *ratelimit.Limiter
}

// NewServer creates a new REST server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("passkey handler is required")
	}

	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		handler: cfg.Handler,
		config:  cfg,
		logger:  logger,
		limiter: cfg.RateLimit,
		started: time.Now(),
	}

	server.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:      server.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.HTTPMiddleware) // correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	if s.config.HealthEnabled {
		r.Get(s.config.HealthPath, s.HealthHandler)
		r.Head(s.config.HealthPath, s.HealthHandler)
	}
	if s.config.MetricsEnabled {
		r.Handle(s.config.MetricsPath, promhttp.Handler())
	}

	r.Get("/", s.handler.Home)

	// Ceremony endpoints are rate limited per client and each phase is
	// instrumented separately.
	r.Group(func(r chi.Router) {
		if s.limiter != nil && s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		r.With(metrics.CeremonyMiddleware(metrics.CeremonyRegistration, metrics.PhaseOptions)).
			Post("/registration/options", s.handler.RegistrationOptions)
		r.With(metrics.CeremonyMiddleware(metrics.CeremonyRegistration, metrics.PhaseSubmit)).
			Post("/registration/submit", s.handler.RegistrationSubmit)
		r.With(metrics.CeremonyMiddleware(metrics.CeremonyAuthentication, metrics.PhaseOptions)).
			Post("/authentication/options", s.handler.AuthenticationOptions)
		r.With(metrics.CeremonyMiddleware(metrics.CeremonyAuthentication, metrics.PhaseSubmit)).
			Post("/authentication/submit", s.handler.AuthenticationSubmit)
	})

	r.Post("/sign-out", s.handler.SignOut)

	return r
}

// Start starts the REST server and blocks until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		"host", s.config.Host,
		"port", s.config.Port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.server.Addr
}
