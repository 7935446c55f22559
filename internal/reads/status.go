// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package reads

import (
	"context"
	"fmt"
	"time"

	"github.com/mindersec/ghmirror/internal/db"
)

// staleRetryAge is how old a retry row must be before it counts as stale.
const staleRetryAge = 5 * time.Minute

// Health is the liveness read shape.
type Health struct {
	OK     bool           `json:"ok"`
	Tables db.TableCounts `json:"tables"`
}

// QueueHealth summarizes the delivery queue.
type QueueHealth struct {
	Pending                 int64 `json:"pending"`
	Retry                   int64 `json:"retry"`
	Failed                  int64 `json:"failed"`
	DeadLetters             int64 `json:"deadLetters"`
	RecentProcessedLastHour int64 `json:"recentProcessedLastHour"`
}

// ProjectionCoverage reports whether every repository has an overview row.
type ProjectionCoverage struct {
	OverviewCount int64 `json:"overviewCount"`
	RepoCount     int64 `json:"repoCount"`
	AllSynced     bool  `json:"allSynced"`
}

// SystemStatus is the combined operational status read shape.
type SystemStatus struct {
	Queue           QueueHealth        `json:"queue"`
	PendingLagAvgMs int64              `json:"pendingLagAvgMs"`
	PendingLagMaxMs int64              `json:"pendingLagMaxMs"`
	StaleRetries    int64              `json:"staleRetries"`
	WriteOpsByState map[string]int64   `json:"writeOpsByState"`
	Projections     ProjectionCoverage `json:"projections"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// GetHealth reports store reachability plus bounded table counts.
func (r *Reader) GetHealth(ctx context.Context) (Health, error) {
	if err := r.store.CheckHealth(ctx); err != nil {
		return Health{OK: false}, nil
	}
	counts, err := r.store.GetTableCounts(ctx)
	if err != nil {
		return Health{}, fmt.Errorf("counting tables: %w", err)
	}
	return Health{OK: true, Tables: counts}, nil
}

// GetQueueHealth summarizes delivery queue depth and recent throughput.
func (r *Reader) GetQueueHealth(ctx context.Context) (QueueHealth, error) {
	states, err := r.store.CountDeliveriesByState(ctx)
	if err != nil {
		return QueueHealth{}, fmt.Errorf("counting deliveries: %w", err)
	}

	var health QueueHealth
	for _, state := range states {
		switch state.State {
		case db.ProcessStatePending:
			health.Pending = state.Count
		case db.ProcessStateRetry:
			health.Retry = state.Count
		case db.ProcessStateFailed:
			health.Failed = state.Count
		}
	}

	health.DeadLetters, err = r.store.CountDeadLetters(ctx)
	if err != nil {
		return QueueHealth{}, fmt.Errorf("counting dead letters: %w", err)
	}

	health.RecentProcessedLastHour, err = r.store.CountProcessedSince(ctx, r.now().Add(-time.Hour))
	if err != nil {
		return QueueHealth{}, fmt.Errorf("counting processed deliveries: %w", err)
	}
	return health, nil
}

// GetSystemStatus combines queue health, processing lag, stale retries,
// write operation counts and projection coverage.
func (r *Reader) GetSystemStatus(ctx context.Context) (SystemStatus, error) {
	now := r.now()

	queue, err := r.GetQueueHealth(ctx)
	if err != nil {
		return SystemStatus{}, err
	}

	lag, err := r.store.GetPendingLag(ctx, now)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("computing pending lag: %w", err)
	}

	stale, err := r.store.CountStaleRetries(ctx, now.Add(-staleRetryAge))
	if err != nil {
		return SystemStatus{}, fmt.Errorf("counting stale retries: %w", err)
	}

	writeOps, err := r.store.CountWriteOperationsByState(ctx)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("counting write operations: %w", err)
	}
	byState := map[string]int64{}
	for _, entry := range writeOps {
		byState[string(entry.State)] = entry.Count
	}

	overviews, err := r.store.CountRepoOverviews(ctx)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("counting overviews: %w", err)
	}
	repos, err := r.store.CountRepositories(ctx)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("counting repositories: %w", err)
	}

	return SystemStatus{
		Queue:           queue,
		PendingLagAvgMs: lag.AvgMs,
		PendingLagMaxMs: lag.MaxMs,
		StaleRetries:    stale,
		WriteOpsByState: byState,
		Projections: ProjectionCoverage{
			OverviewCount: overviews,
			RepoCount:     repos,
			AllSynced:     overviews >= repos,
		},
		GeneratedAt: now,
	}, nil
}

// ListSyncJobs returns recent sync jobs for the operator surface.
func (r *Reader) ListSyncJobs(ctx context.Context, limit int32) ([]db.SyncJob, error) {
	return r.store.ListSyncJobs(ctx, clampLimit(limit, maxListRows))
}

// ListDeadLetters returns recent dead letters for the operator surface.
func (r *Reader) ListDeadLetters(ctx context.Context, limit int32) ([]db.DeadLetter, error) {
	return r.store.ListDeadLetters(ctx, clampLimit(limit, maxListRows))
}
