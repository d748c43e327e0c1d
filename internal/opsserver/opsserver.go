// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Package opsserver exposes the monitor's operational HTTP endpoint:
// liveness, Prometheus metrics and a JSON status view of the poll
// loop. It is read-only and never issues controller calls of its own.
package opsserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/monitor"
)

const shutdownTimeout = 5 * time.Second

// StatusSource provides the loop snapshot served at /api/status. The
// concrete implementation is monitor.Monitor.
type StatusSource interface {
	Status() monitor.Status
}

// Server is the operational HTTP endpoint.
type Server struct {
	listen string
	source StatusSource
	log    zerolog.Logger
}

// New creates an ops server listening on addr.
func New(addr string, source StatusSource) *Server {
	return &Server{
		listen: addr,
		source: source,
		log:    logging.Component("ops"),
	}
}

// Routes builds the router. Split out so tests can exercise handlers
// without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/status", s.handleStatus)

	return r
}

// Serve runs the HTTP server until ctx is cancelled; suitable as a
// suture service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.listen).Msg("Ops endpoint listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("Ops endpoint shutdown failed")
		}
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleHealth reports healthy once the loop has completed at least
// one poll cycle.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.source.Status().LastPoll.IsZero() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no poll completed yet\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode status response")
	}
}
