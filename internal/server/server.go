// Package server exposes the conversational agent and the auth flows over
// HTTP. Every response uses the {success, ...} envelope; authentication is
// a bearer token issued by the auth service.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	authx "github.com/shoptalklabs/shoptalk/pkg/auth"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Agent is the conversational surface the query routes call into.
type Agent interface {
	HandleTurn(ctx context.Context, in contractx.TurnInput) (contractx.TurnOutput, error)
	History(ctx context.Context, sessionID string) ([]contractx.Message, error)
	ResetHistory(ctx context.Context, sessionID string) error
}

type Server struct {
	cfg   Config
	auth  *authx.Service
	agent Agent
	store storex.Store
}

func New(cfg Config, auth *authx.Service, agent Agent, store storex.Store) *Server {
	return &Server{cfg: cfg, auth: auth, agent: agent, store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/auth/signup", s.handleSignup)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/auth/verify", s.handleVerify)
		r.Post("/api/query", s.handleQuery)
		r.Get("/api/query/history", s.handleHistory)
		r.Delete("/api/query/history", s.handleResetHistory)
		r.Get("/api/orders", s.handleListOrders)
	})

	return r
}

// Start serves until the context is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func fail(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]any{"success": false, "message": message})
}
