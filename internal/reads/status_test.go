// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package reads

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
)

func newStatusReader(store db.Store) *Reader {
	reader := NewReader(store)
	reader.now = func() time.Time { return baseTime }
	return reader
}

func ingestDelivery(t *testing.T, store db.Store, id string, receivedAt time.Time) {
	t.Helper()
	stored, err := store.InsertRawDelivery(context.Background(), db.InsertRawDeliveryParams{
		DeliveryID:     id,
		EventName:      "issues",
		Action:         sql.NullString{String: "opened", Valid: true},
		RepositoryID:   sql.NullInt64{Int64: testRepoID, Valid: true},
		SignatureValid: true,
		Payload:        []byte(`{}`),
		ReceivedAt:     receivedAt,
	})
	require.NoError(t, err)
	require.True(t, stored)
}

func TestGetHealth(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	seedRepo(t, store)

	health, err := newStatusReader(store).GetHealth(context.Background())
	require.NoError(t, err)
	require.True(t, health.OK)
	require.Equal(t, int64(1), health.Tables.Repositories)
}

func TestGetQueueHealth(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	for i := range 2 {
		ingestDelivery(t, store, fmt.Sprintf("pending-%d", i), baseTime.Add(-time.Minute))
	}

	ingestDelivery(t, store, "retrying", baseTime.Add(-time.Minute))
	require.NoError(t, store.MarkDeliveryRetry(ctx, db.MarkDeliveryRetryParams{
		DeliveryID:   "retrying",
		Attempts:     1,
		NextRetryAt:  baseTime.Add(time.Second),
		ProcessError: "transient",
	}))

	ingestDelivery(t, store, "exhausted", baseTime.Add(-time.Minute))
	require.NoError(t, store.MarkDeliveryFailed(ctx, db.MarkDeliveryFailedParams{
		DeliveryID:   "exhausted",
		Attempts:     5,
		ProcessError: "handoff failed",
	}))

	ingestDelivery(t, store, "done", baseTime.Add(-10*time.Minute))
	require.NoError(t, store.MarkDeliveryProcessed(ctx, db.MarkDeliveryProcessedParams{
		DeliveryID: "done",
		Attempts:   1,
	}))

	require.NoError(t, store.InsertDeadLetter(ctx, db.InsertDeadLetterParams{
		ID:         uuid.New(),
		DeliveryID: "poisoned",
		EventName:  "issues",
		Payload:    []byte(`{}`),
		Reason:     "Exhausted 5 attempts: boom",
		CreatedAt:  baseTime,
	}))

	health, err := newStatusReader(store).GetQueueHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), health.Pending)
	require.Equal(t, int64(1), health.Retry)
	require.Equal(t, int64(1), health.Failed)
	require.Equal(t, int64(1), health.DeadLetters)
	require.Equal(t, int64(1), health.RecentProcessedLastHour)
}

func TestGetSystemStatus(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1002, "prauthor")
	seedPullRequest(t, store, 2, "open", baseTime)
	refreshProjections(t, store)

	// Two pending rows at known ages give a deterministic lag.
	ingestDelivery(t, store, "lag-1", baseTime.Add(-2*time.Second))
	ingestDelivery(t, store, "lag-2", baseTime.Add(-4*time.Second))

	// A retry row received over five minutes ago counts as stale.
	ingestDelivery(t, store, "stale", baseTime.Add(-10*time.Minute))
	require.NoError(t, store.MarkDeliveryRetry(ctx, db.MarkDeliveryRetryParams{
		DeliveryID:   "stale",
		Attempts:     2,
		NextRetryAt:  baseTime.Add(time.Second),
		ProcessError: "transient",
	}))

	require.NoError(t, store.InsertWriteOperation(ctx, db.InsertWriteOperationParams{
		CorrelationID: "corr-1",
		Type:          db.WriteOpTypeCreateIssue,
		RepositoryID:  testRepoID,
		OwnerLogin:    "testowner",
		RepoName:      "testrepo",
		Now:           baseTime,
	}))

	status, err := newStatusReader(store).GetSystemStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), status.Queue.Pending)
	require.Equal(t, int64(3000), status.PendingLagAvgMs)
	require.Equal(t, int64(4000), status.PendingLagMaxMs)
	require.Equal(t, int64(1), status.StaleRetries)
	require.Equal(t, int64(1), status.WriteOpsByState["pending"])
	require.Equal(t, int64(1), status.Projections.OverviewCount)
	require.Equal(t, int64(1), status.Projections.RepoCount)
	require.True(t, status.Projections.AllSynced)
	require.Equal(t, baseTime, status.GeneratedAt)
}

func TestListSyncJobsBounded(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	_, err := store.InsertSyncJob(ctx, db.InsertSyncJobParams{
		ID:             uuid.New(),
		LockKey:        "repo-bootstrap:0:12345",
		Kind:           db.SyncJobKindBootstrap,
		RepositoryID:   testRepoID,
		FullName:       "testowner/testrepo",
		InstallationID: 777,
		Now:            baseTime,
	})
	require.NoError(t, err)

	jobs, err := newStatusReader(store).ListSyncJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, db.SyncJobStatePending, jobs[0].State)
}
