// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package httpapi exposes the account flows as a JSON HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/observability"
)

// RouterConfig holds the collaborators for the API router.
type RouterConfig struct {
	Engine  *auth.Engine
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewRouter builds the API router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{engine: cfg.Engine, metrics: cfg.Metrics, logger: logger}

	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(recovery(logger))
	api.Use(logging(logger))
	if cfg.Metrics != nil {
		api.Use(countRequests(cfg.Metrics))
	}

	api.HandleFunc("/register/request-token", h.RequestRegisterToken).Methods(http.MethodPost)
	api.HandleFunc("/register/complete", h.CompleteRegistration).Methods(http.MethodPost)

	api.HandleFunc("/login/salt", h.LoginSalt).Methods(http.MethodPost)
	api.HandleFunc("/login/complete", h.CompleteLogin).Methods(http.MethodPost)

	api.HandleFunc("/otp/request", h.RequestOTPs).Methods(http.MethodPost)

	api.HandleFunc("/password/forgot", h.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/password/reset", h.ResetPassword).Methods(http.MethodPost)

	api.HandleFunc("/account-token/request", h.RequestAccountToken).Methods(http.MethodPost)
	api.HandleFunc("/sessions/revoke", h.RevokeSessions).Methods(http.MethodPost)
	api.HandleFunc("/account/delete", h.DeleteAccount).Methods(http.MethodPost)

	api.HandleFunc("/gameserver/verify", h.VerifyGameServer).Methods(http.MethodPost)

	return r
}

// Server runs the API router on a TCP listener with graceful shutdown.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server for the given listen address.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving. It returns an error channel that receives any error
// from the HTTP server after startup; the channel closes on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the bound listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
