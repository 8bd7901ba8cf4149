// Package web serves the board over HTTP: a JSON API for the grid and the
// board actions, a websocket that tells browsers when to refetch, and the
// Prometheus metrics endpoint.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
	"hemo-board/internal/logger"
	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

type ServerConfig struct {
	Addr     string
	AuthMode string // none|token

	Backend store.Backend
	Service *board.Service
	// Identity resolves the acting user when AuthMode is none.
	Identity identity.Provider
	// Tokens verifies bearer tokens when AuthMode is token.
	Tokens *identity.Tokens
	// Mailer delivers login links when AuthMode is token.
	Mailer Mailer

	Gatherer prometheus.Gatherer
	Logger   logger.Logger
	Now      func() time.Time
}

type Server struct {
	cfg    ServerConfig
	router chi.Router
	hub    *changeHub
	log    logger.Logger
	unsub  func()
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Backend == nil || cfg.Service == nil {
		return nil, errors.New("web: backend and service are required")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "none"
	}
	switch cfg.AuthMode {
	case "none":
		if cfg.Identity == nil {
			return nil, errors.New("web: auth mode none needs an identity provider")
		}
	case "token":
		if cfg.Tokens == nil {
			return nil, errors.New("web: auth mode token needs a token issuer")
		}
		if cfg.Mailer == nil {
			return nil, errors.New("web: auth mode token needs a mailer for login links")
		}
	default:
		return nil, errors.New("web: invalid auth mode (expected none|token)")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{cfg: cfg, hub: newChangeHub(), log: cfg.Logger}
	s.unsub = cfg.Backend.Subscribe(func(model.Change) { s.hub.broadcast() })
	s.router = s.routes()
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/login/verify", s.handleVerify)
		r.Post("/login/verify", s.handleVerify)
		r.Get("/ws", s.handleWS)
		r.Get("/me", s.handleMe)

		r.Get("/weeks/{start}", s.handleWeek)
		r.Get("/weeks/{start}/export.csv", s.handleExport)

		r.Post("/cards", s.handleCardCreate)
		r.Get("/cards/{id}", s.handleCardGet)
		r.Patch("/cards/{id}", s.handleCardEdit)
		r.Delete("/cards/{id}", s.handleCardDelete)
		r.Post("/cards/{id}/move", s.handleCardMove)
		r.Post("/cards/{id}/toggle-done", s.handleCardToggleDone)
	})
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Close detaches from the store's change stream and drops websocket clients.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.hub.closeAll()
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on http://%s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
