// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package writeops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
)

func submitCompleted(t *testing.T, store db.Store, req Request) {
	t.Helper()

	result, err := NewService(store).Submit(context.Background(), &fakeMutator{issueNumber: 7}, req)
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateCompleted, result.State)
}

func TestMatchWriteOperation(t *testing.T) {
	t.Parallel()

	scenarios := []struct {
		name       string
		eventName  string
		action     string
		payload    string
		wantMatch  bool
		wantType   db.WriteOpType
		wantNumber int64
	}{
		{
			name: "issue opened matches create_issue", eventName: "issues", action: "opened",
			payload:   `{"issue": {"number": 7}}`,
			wantMatch: true, wantType: db.WriteOpTypeCreateIssue, wantNumber: 7,
		},
		{
			name: "issue closed matches update_issue_state", eventName: "issues", action: "closed",
			payload:   `{"issue": {"number": 7}}`,
			wantMatch: true, wantType: db.WriteOpTypeUpdateIssueState, wantNumber: 7,
		},
		{
			name: "issue edited matches nothing", eventName: "issues", action: "edited",
			payload: `{"issue": {"number": 7}}`,
		},
		{
			name: "comment created matches create_comment on the issue number",
			eventName: "issue_comment", action: "created",
			payload:   `{"comment": {"id": 9001}, "issue": {"number": 3}}`,
			wantMatch: true, wantType: db.WriteOpTypeCreateComment, wantNumber: 3,
		},
		{
			name: "merged close prefers merge_pull_request",
			eventName: "pull_request", action: "closed",
			payload:   `{"pull_request": {"number": 9, "merged": true}}`,
			wantMatch: true, wantType: db.WriteOpTypeMergePullRequest, wantNumber: 9,
		},
		{
			name: "unmerged close matches update_issue_state",
			eventName: "pull_request", action: "closed",
			payload:   `{"pull_request": {"number": 9, "merged": false}}`,
			wantMatch: true, wantType: db.WriteOpTypeUpdateIssueState, wantNumber: 9,
		},
		{
			name: "pull request reopened matches update_issue_state",
			eventName: "pull_request", action: "reopened",
			payload:   `{"pull_request": {"number": 9}}`,
			wantMatch: true, wantType: db.WriteOpTypeUpdateIssueState, wantNumber: 9,
		},
		{
			name: "push matches nothing", eventName: "push",
			payload: `{"ref": "refs/heads/main"}`,
		},
		{
			name: "malformed payload matches nothing", eventName: "issues", action: "opened",
			payload: `{not json`,
		},
	}

	for _, scenario := range scenarios {
		scenario := scenario
		t.Run(scenario.name, func(t *testing.T) {
			t.Parallel()

			opType, number, ok := matchWriteOperation(scenario.eventName, scenario.action, []byte(scenario.payload))
			require.Equal(t, scenario.wantMatch, ok)
			if scenario.wantMatch {
				require.Equal(t, scenario.wantType, opType)
				require.Equal(t, scenario.wantNumber, number)
			}
		})
	}
}

func TestReconcileConfirmsCompletedOperation(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	submitCompleted(t, store, createIssueRequest("corr-1"))

	payload := []byte(`{"action": "opened", "issue": {"number": 7, "title": "New issue"}}`)
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "issues", "opened", payload))

	op, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateConfirmed, op.State)
}

func TestReconcileConfirmsAtMostOne(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	// Two completed operations both created issue number 7 in sequence.
	// One webhook confirms only the most recent one.
	submitCompleted(t, store, createIssueRequest("corr-1"))
	submitCompleted(t, store, createIssueRequest("corr-2"))

	payload := []byte(`{"action": "opened", "issue": {"number": 7}}`)
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "issues", "opened", payload))

	first, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	second, err := store.GetWriteOperation(ctx, "corr-2")
	require.NoError(t, err)

	require.Equal(t, db.WriteOpStateConfirmed, second.State)
	require.Equal(t, db.WriteOpStateCompleted, first.State)
}

func TestReconcileConfirmsPendingOperation(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	// A comment operation that crashed after the REST call but before the
	// completion patch. The entity number stamped at insert is what lets
	// the webhook still find it.
	err := store.InsertWriteOperation(ctx, db.InsertWriteOperationParams{
		CorrelationID:      "corr-pending",
		Type:               db.WriteOpTypeCreateComment,
		RepositoryID:       testRepoID,
		OwnerLogin:         "testowner",
		RepoName:           "testrepo",
		GithubEntityNumber: sql.NullInt64{Int64: 3, Valid: true},
		Now:                time.Now().UTC(),
	})
	require.NoError(t, err)

	payload := []byte(`{"comment": {"id": 9001}, "issue": {"number": 3}}`)
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "issue_comment", "created", payload))

	op, err := store.GetWriteOperation(ctx, "corr-pending")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateConfirmed, op.State)
}

func TestReconcileSkipsFailedAndConfirmed(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	submitCompleted(t, store, createIssueRequest("corr-1"))

	payload := []byte(`{"action": "opened", "issue": {"number": 7}}`)
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "issues", "opened", payload))

	// A second webhook for the same number has nothing left to confirm.
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "issues", "opened", payload))

	op, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateConfirmed, op.State)
}

func TestReconcileIgnoresUnrelatedEvents(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	submitCompleted(t, store, createIssueRequest("corr-1"))

	payload := []byte(`{"ref": "refs/heads/main", "after": "sha-1"}`)
	require.NoError(t, NewReconciler().Reconcile(ctx, store, testRepoID, "push", "", payload))

	op, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateCompleted, op.State)
}
