// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a registry over HTTP at /metrics, with a liveness
// probe at /healthz.
type Server struct {
	listener net.Listener
	server   *http.Server
}

// NewServer listens on address and prepares a handler for gatherer.
// Use ":0" for a random port; Address reports the bound address.
func NewServer(address string, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		server: &http.Server{
			Handler:           Router(gatherer, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Router returns the chi router serving /metrics and /healthz.
func Router(gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}

// Serve handles requests until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.server.Close()
	}()

	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Address returns the bound address in "host:port" form.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Close stops the server and releases the listener. It is safe to call
// whether or not Serve has started.
func (s *Server) Close() error {
	err := s.server.Close()
	s.listener.Close()
	return err
}
