// Package server exposes the query service, log streaming and container
// control over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/control"
	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/query"
	"github.com/rusenback/dockerstats/internal/telemetry"
)

type Server struct {
	router    *mux.Router
	server    *http.Server
	cfg       *Options
	engine    docker.Engine
	queries   *query.Service
	control   *control.Controller
	telemetry *telemetry.Exporter
}

// New builds the router. exporter may be nil, in which case /metrics is not
// served and requests are not counted.
func New(engine docker.Engine, queries *query.Service, ctrl *control.Controller, exporter *telemetry.Exporter, opts ...Option) *Server {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Server{
		router:    mux.NewRouter(),
		cfg:       options,
		engine:    engine,
		queries:   queries,
		control:   ctrl,
		telemetry: exporter,
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", options.Host, options.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server is stopped.
func (s *Server) Start() error {
	addr := s.server.Addr
	log.WithField("addr", addr).Info("http server listening")
	err := s.server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WrapIfWithDetails(err, "http server failed", "addr", addr)
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop() error {
	log.Debug("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
