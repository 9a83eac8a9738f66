// Package core provides the HTTP chassis for the dispatch API: the chi
// router, the middleware chain, the JSON envelope helpers and request
// validation. Domain handlers register themselves through
// V1RouteRegistrars so this package never imports them.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microgrid/internal/config"
)

// Server holds the router and the dependencies shared by all middleware.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Operator       *OperatorAuth
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1.
	V1RouteRegistrars []func(chi.Router)

	// Closers are released in order by Shutdown.
	Closers []func(context.Context) error

	router *chi.Mux
}

// NewServer creates a Server with an empty router. The caller sets optional
// dependencies and registrars, then calls MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	operator, err := NewOperatorAuth(cfg.Server.OperatorKeyHash)
	if err != nil {
		return nil, err
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Operator:  operator,
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered closers. Every closer runs even if an
// earlier one fails; the first error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var first error
	for _, closeFn := range s.Closers {
		if err := closeFn(ctx); err != nil {
			s.Logger.Error("error releasing server resource", "error", err)
			if first == nil {
				first = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return first
}
