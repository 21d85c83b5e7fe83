// Package api serves the agent's JSON status API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/autofilebot/internal/api/handlers"
)

// Deps are the components the handlers read from and trigger.
type Deps struct {
	Pipeline handlers.Pipeline
	Queue    handlers.Trigger
	Sched    handlers.Schedule  // optional; leave unset rather than typed nil
	Store    handlers.PassStore // optional; leave unset rather than typed nil
	Version  string
}

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// New wires all routes and returns a Server ready to Run.
func New(addr string, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           Router(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Router builds the chi router for deps.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	statusH := &handlers.StatusHandler{
		Pipeline: deps.Pipeline,
		Queue:    deps.Queue,
		Sched:    deps.Sched,
		Version:  deps.Version,
	}
	stagesH := &handlers.StagesHandler{Pipeline: deps.Pipeline}
	passesH := &handlers.PassesHandler{Store: deps.Store, Queue: deps.Queue}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)
		r.Get("/stages", stagesH.ServeHTTP)

		r.Post("/passes", passesH.Create)
		r.Get("/passes", passesH.List)
		r.Get("/passes/{id}", passesH.Get)
	})
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
