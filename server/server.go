// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server exposes a notebook over HTTP: document management,
// question answering with optional server-sent event streaming, a progress
// event stream and Prometheus metrics.
package server

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

	notebook "github.com/pedrocostadev/ai-notebook-sub000"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
)

const shutdownTimeout = 5 * time.Second

// Notebook is the part of *notebook.Notebook the server uses.
type Notebook interface {
	Ingest(ctx context.Context, path string) (*core.Document, error)
	Cancel(ctx context.Context, documentID core.ID) error
	DeleteDocument(ctx context.Context, documentID core.ID) error
	Documents(ctx context.Context) ([]*core.Document, error)
	Document(ctx context.Context, documentID core.ID) (*core.Document, error)
	Chapters(ctx context.Context, documentID core.ID) ([]*core.Chapter, error)
	Jobs(ctx context.Context, documentID core.ID) ([]*core.Job, error)
	Messages(ctx context.Context, scope core.Scope) ([]*core.Message, error)
	Ask(ctx context.Context, scope core.Scope, question string, onToken func(token string) error) (*notebook.Answer, error)
	Subscribe() (<-chan scheduler.Progress, func())
}

var _ Notebook = (*notebook.Notebook)(nil)

// Server serves the notebook API.
type Server struct {
	notebook Notebook
	gatherer prometheus.Gatherer
	http     *metrics.Middleware
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithMetrics serves /metrics from gatherer and records HTTP metrics on reg.
func WithMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(s *Server) error {
		s.http = metrics.NewMiddleware(reg)
		s.gatherer = gatherer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a server for nb.
func New(nb Notebook, opts ...Option) (*Server, error) {
	if nb == nil {
		return nil, ErrNotebookRequired
	}
	s := &Server{
		notebook: nb,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")
	return s, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	if s.http != nil {
		router.Use(s.http.Handler)
	}
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.streamEvents)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.listDocuments)
			r.Post("/", s.ingestDocument)
			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/", s.getDocument)
				r.Delete("/", s.deleteDocument)
				r.Post("/cancel", s.cancelDocument)
				r.Get("/chapters", s.listChapters)
				r.Get("/jobs", s.listJobs)
				r.Get("/messages", s.listMessages)
				r.Post("/ask", s.ask)
			})
		})
	})
	return router
}

// Run serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(shutdownCtx)
		s.logger.Info("server stopped")
	}()

	s.logger.Info("serving", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()))
	})
}
