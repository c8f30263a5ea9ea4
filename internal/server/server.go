// Package server hosts the HTTP surface: the signed interactions endpoint and the
// health probe.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/mfea-gateway/internal/auth"
)

// InteractionsPath is the signed callback endpoint. The root path is also accepted.
const InteractionsPath = "/interactions"

// HealthPath is the unauthenticated probe endpoint.
const HealthPath = "/healthz"

// Config configures the HTTP server.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	ServiceName    string
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

func New(cfg Config, logger *slog.Logger, verifier *auth.Verifier, interactions http.Handler) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mfea-gateway"
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, cfg.ServiceName)
	})

	r.Get(HealthPath, HealthHandler)
	r.Head(HealthPath, HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(SignatureMiddleware(verifier, cfg.MaxBodyBytes, logger))
		r.Post("/", interactions.ServeHTTP)
		r.Post(InteractionsPath, interactions.ServeHTTP)
	})

	return &Server{
		Router: r,
		Port:   cfg.Port,
		logger: logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens on the configured port and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln. http.ErrServerClosed is reported as nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
