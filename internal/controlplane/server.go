// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package controlplane is the HTTP surface of the mirror: the GitHub
// webhook receiver, the bounded read API and the operator endpoints.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/gh"
	"github.com/mindersec/ghmirror/internal/queue"
	"github.com/mindersec/ghmirror/internal/reads"
	ghsync "github.com/mindersec/ghmirror/internal/sync"
	"github.com/mindersec/ghmirror/internal/writeops"
)

// Server wires the HTTP routes to the mirror services.
type Server struct {
	store    db.Store
	cfg      *config.Config
	ingestor *queue.Ingestor
	operator *queue.Operator
	reader   *reads.Reader
	worker   *ghsync.Worker
	writes   *writeops.Service
	factory  *gh.ClientFactory

	now func() time.Time
}

// NewServer creates the HTTP control plane.
func NewServer(
	store db.Store,
	cfg *config.Config,
	ingestor *queue.Ingestor,
	operator *queue.Operator,
	worker *ghsync.Worker,
	writes *writeops.Service,
	factory *gh.ClientFactory,
) *Server {
	return &Server{
		store:    store,
		cfg:      cfg,
		ingestor: ingestor,
		operator: operator,
		reader:   reads.NewReader(store),
		worker:   worker,
		writes:   writes,
		factory:  factory,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/webhook", s.handleWebhook)

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/status/queue", s.handleQueueStatus)
	mux.HandleFunc("GET /api/v1/sync-jobs", s.handleSyncJobs)
	mux.HandleFunc("GET /api/v1/dead-letters", s.handleDeadLetters)

	mux.HandleFunc("GET /api/v1/repos", s.handleListRepos)
	mux.HandleFunc("GET /api/v1/repos/{id}", s.handleGetRepo)
	mux.HandleFunc("GET /api/v1/repos/{id}/pulls", s.handleListPulls)
	mux.HandleFunc("GET /api/v1/repos/{id}/pulls/{number}", s.handleGetPull)
	mux.HandleFunc("GET /api/v1/repos/{id}/issues", s.handleListIssues)
	mux.HandleFunc("GET /api/v1/repos/{id}/issues/{number}", s.handleGetIssue)
	mux.HandleFunc("GET /api/v1/repos/{id}/activity", s.handleListActivity)
	mux.HandleFunc("POST /api/v1/repos/{id}/sync", s.handleScheduleSync)

	mux.HandleFunc("POST /api/v1/write-operations", s.handleSubmitWriteOp)
	mux.HandleFunc("GET /api/v1/write-operations/{correlationID}", s.handleGetWriteOp)

	return mux
}

// StartHTTPServer serves the control plane until the context is cancelled.
func (s *Server) StartHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPServer.GetAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("address", srv.Addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// clientFor resolves the GitHub client for a mirrored repository.
func (s *Server) clientFor(ctx context.Context, repo db.Repository) (*gh.Client, error) {
	if repo.InstallationID.Valid && repo.InstallationID.Int64 != 0 {
		return s.factory.ForInstallation(repo.InstallationID.Int64)
	}
	return s.factory.Default(ctx)
}
