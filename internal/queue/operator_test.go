// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events/stubs"
)

func TestReplayDeliveryReprocessesCleanly(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	seedRepo(t, store)

	ing := NewIngestor(store, evt)
	ingest(t, ing, "delivery-1", "issues", "opened",
		issueOpenedPayload(1, "Test issue", "2026-02-18T10:00:00Z"))

	p, _ := newTestProcessor(store, evt)
	outcome, err := p.ProcessDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	op := NewOperator(store, evt)
	require.NoError(t, op.ReplayDelivery(ctx, "delivery-1"))

	delivery, err := store.GetRawDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, db.ProcessStatePending, delivery.ProcessState)

	// The replay processes again without duplicating domain state.
	outcome, err = p.ProcessDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	issue, err := store.GetIssue(ctx, db.GetIssueParams{RepositoryID: testRepoID, Number: 1})
	require.NoError(t, err)
	require.Equal(t, "Test issue", issue.Title)
}

func TestReplayDeliveryUnknownID(t *testing.T) {
	t.Parallel()

	op := NewOperator(db.NewMemStore(), &stubs.StubEventer{})
	err := op.ReplayDelivery(context.Background(), "no-such-delivery")
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestRetryAllFailed(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	seedRepo(t, store)

	ing := NewIngestor(store, evt)
	ingest(t, ing, "delivery-1", "issues", "opened",
		issueOpenedPayload(1, "Test issue", "2026-02-18T10:00:00Z"))

	require.NoError(t, store.MarkDeliveryFailed(ctx, db.MarkDeliveryFailedParams{
		DeliveryID:   "delivery-1",
		Attempts:     5,
		ProcessError: "storage offline",
	}))

	op := NewOperator(store, evt)
	reset, err := op.RetryAllFailed(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, 1, reset)

	delivery, err := store.GetRawDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, db.ProcessStatePending, delivery.ProcessState)
	require.False(t, delivery.ProcessError.Valid)
}

func TestMoveToDeadLetter(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()

	ing := NewIngestor(store, evt)
	ingest(t, ing, "delivery-1", "issues", "opened",
		issueOpenedPayload(1, "Test issue", "2026-02-18T10:00:00Z"))

	op := NewOperator(store, evt)
	require.NoError(t, op.MoveToDeadLetter(ctx, "delivery-1", "operator discard: malformed payload"))

	_, err := store.GetRawDelivery(ctx, "delivery-1")
	require.ErrorIs(t, err, db.ErrNotFound)

	letters, err := store.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, "operator discard: malformed payload", letters[0].Reason)

	err = op.MoveToDeadLetter(ctx, "no-such-delivery", "reason")
	require.ErrorIs(t, err, db.ErrNotFound)
}
