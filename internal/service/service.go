// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service assembles the mirror: eventer, queue processor, sync
// worker, HTTP control plane and the periodic maintenance loops.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/controlplane"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/gh"
	"github.com/mindersec/ghmirror/internal/projections"
	"github.com/mindersec/ghmirror/internal/queue"
	ghsync "github.com/mindersec/ghmirror/internal/sync"
	"github.com/mindersec/ghmirror/internal/writeops"
)

// repairInterval is how often the projection repairer rebuilds every
// repository's projections from scratch.
const repairInterval = 5 * time.Minute

// AllInOneServerService starts every component of the mirror and blocks
// until the context is cancelled or a component fails.
func AllInOneServerService(
	ctx context.Context,
	cfg *config.Config,
	store db.Store,
) error {
	errg, ctx := errgroup.WithContext(ctx)

	evt, err := events.NewEventer(ctx, &cfg.Events)
	if err != nil {
		return fmt.Errorf("unable to setup eventer: %w", err)
	}

	factory := gh.NewClientFactory(cfg.GitHub)
	worker := ghsync.NewWorker(store, ghsync.FactoryProvider(factory), evt, cfg.Sync)
	processor := queue.NewProcessor(store, evt, cfg.Queue)
	maintainer := projections.NewMaintainer(store)

	evt.ConsumeEvents(processor, worker)

	srv := controlplane.NewServer(
		store,
		cfg,
		queue.NewIngestor(store, evt),
		queue.NewOperator(store, evt),
		worker,
		writeops.NewService(store),
		factory,
	)

	errg.Go(func() error {
		return srv.StartHTTPServer(ctx)
	})

	errg.Go(func() error {
		defer evt.Close()
		return evt.Run(ctx)
	})

	// Wait for event handlers to start running before the periodic loops
	// begin publishing kicks.
	<-evt.Running()

	errg.Go(func() error {
		return runEvery(ctx, cfg.Queue.PromoteInterval, "retry promoter", func(ctx context.Context) error {
			promoted, err := processor.PromoteRetryEvents(ctx)
			if err != nil {
				return err
			}
			if promoted > 0 {
				zerolog.Ctx(ctx).Debug().Int("promoted", promoted).Msg("promoted retry deliveries")
			}
			return nil
		})
	})

	errg.Go(func() error {
		return runEvery(ctx, cfg.Queue.ProcessInterval, "batch processor", func(ctx context.Context) error {
			_, err := processor.ProcessAllPending(ctx)
			return err
		})
	})

	errg.Go(func() error {
		return runEvery(ctx, repairInterval, "projection repairer", maintainer.RepairAll)
	})

	return errg.Wait()
}

// runEvery runs fn on a fixed interval until the context is cancelled.
// Errors are logged, not returned; a failing pass must not bring the
// service down.
func runEvery(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("task", name).Msg("periodic task failed")
			}
		}
	}
}
