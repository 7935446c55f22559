// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package writeops

import (
	"context"
	"fmt"
	"testing"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/gh"
)

const testRepoID int64 = 12345

// fakeMutator plays the GitHub side of a write operation.
type fakeMutator struct {
	issueNumber int
	err         error
	calls       int
}

func (f *fakeMutator) CreateIssue(_ context.Context, _, _, title, _ string) (*gogithub.Issue, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gogithub.Issue{
		Number: gogithub.Int(f.issueNumber),
		Title:  gogithub.String(title),
	}, nil
}

func (f *fakeMutator) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) (*gogithub.IssueComment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gogithub.IssueComment{
		ID:   gogithub.Int64(9001),
		Body: gogithub.String(body),
	}, nil
}

func (f *fakeMutator) UpdateIssueState(_ context.Context, _, _ string, number int, state string) (*gogithub.Issue, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gogithub.Issue{
		Number: gogithub.Int(number),
		State:  gogithub.String(state),
	}, nil
}

func (f *fakeMutator) MergePullRequest(_ context.Context, _, _ string, _ int, _ string) (*gogithub.PullRequestMergeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gogithub.PullRequestMergeResult{
		Merged: gogithub.Bool(true),
		SHA:    gogithub.String("sha-merge"),
	}, nil
}

func createIssueRequest(correlationID string) Request {
	return Request{
		CorrelationID: correlationID,
		Type:          db.WriteOpTypeCreateIssue,
		RepositoryID:  testRepoID,
		Owner:         "testowner",
		Repo:          "testrepo",
		Title:         "New issue",
		Body:          "Details",
	}
}

func TestSubmitCreateIssueCompletes(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	svc := NewService(store)
	client := &fakeMutator{issueNumber: 42}

	result, err := svc.Submit(ctx, client, createIssueRequest("corr-1"))
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateCompleted, result.State)
	require.Equal(t, int64(42), result.GithubEntityNumber)
	require.Equal(t, 1, client.calls)

	op, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateCompleted, op.State)
	require.Equal(t, int64(42), op.GithubEntityNumber.Int64)
	require.True(t, op.ResultPayload.Valid)
	require.True(t, op.PreviewPayload.Valid)
}

func TestSubmitFailureRecordsErrorAndStatus(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	svc := NewService(store)
	client := &fakeMutator{err: fmt.Errorf("creating issue: %w", gh.ErrInsufficientPermission)}

	result, err := svc.Submit(ctx, client, createIssueRequest("corr-1"))
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateFailed, result.State)
	require.Contains(t, result.ErrorMessage, "insufficient")

	op, err := store.GetWriteOperation(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateFailed, op.State)
	require.Equal(t, int32(403), op.ErrorStatus.Int32)
	require.True(t, op.ErrorMessage.Valid)
}

func TestSubmitStampsEntityNumberAtInsert(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	svc := NewService(store)
	// The mutation fails, so the completion patch never writes the entity
	// number. The insert alone must have stamped it.
	client := &fakeMutator{err: gh.ErrNotFound}

	result, err := svc.Submit(ctx, client, Request{
		CorrelationID: "corr-comment",
		Type:          db.WriteOpTypeCreateComment,
		RepositoryID:  testRepoID,
		Owner:         "testowner",
		Repo:          "testrepo",
		IssueNumber:   3,
		Body:          "on it",
	})
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateFailed, result.State)

	op, err := store.GetWriteOperation(ctx, "corr-comment")
	require.NoError(t, err)
	require.True(t, op.GithubEntityNumber.Valid)
	require.Equal(t, int64(3), op.GithubEntityNumber.Int64)
}

func TestSubmitDuplicateCorrelationIDRejected(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	svc := NewService(store)
	client := &fakeMutator{issueNumber: 42}

	_, err := svc.Submit(ctx, client, createIssueRequest("corr-1"))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, client, createIssueRequest("corr-1"))
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err))
	require.Equal(t, 1, client.calls)
}

func TestSubmitValidatesRequests(t *testing.T) {
	t.Parallel()

	svc := NewService(db.NewMemStore())
	client := &fakeMutator{}

	scenarios := []struct {
		name string
		req  Request
	}{
		{
			name: "missing correlation id",
			req: Request{
				Type: db.WriteOpTypeCreateIssue, Owner: "testowner", Repo: "testrepo", Title: "t"},
		},
		{
			name: "create issue without title",
			req: Request{
				CorrelationID: "c", Type: db.WriteOpTypeCreateIssue,
				Owner: "testowner", Repo: "testrepo"},
		},
		{
			name: "comment without body",
			req: Request{
				CorrelationID: "c", Type: db.WriteOpTypeCreateComment,
				Owner: "testowner", Repo: "testrepo", IssueNumber: 1},
		},
		{
			name: "state change with bogus state",
			req: Request{
				CorrelationID: "c", Type: db.WriteOpTypeUpdateIssueState,
				Owner: "testowner", Repo: "testrepo", IssueNumber: 1, State: "sideways"},
		},
		{
			name: "merge without number",
			req: Request{
				CorrelationID: "c", Type: db.WriteOpTypeMergePullRequest,
				Owner: "testowner", Repo: "testrepo"},
		},
		{
			name: "unknown type",
			req: Request{
				CorrelationID: "c", Type: "delete_repository",
				Owner: "testowner", Repo: "testrepo"},
		},
	}

	for _, scenario := range scenarios {
		scenario := scenario
		t.Run(scenario.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Submit(context.Background(), client, scenario.req)
			require.Error(t, err)
		})
	}
	require.Zero(t, client.calls)
}

func TestSubmitMergePullRequest(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	svc := NewService(store)
	client := &fakeMutator{}

	result, err := svc.Submit(ctx, client, Request{
		CorrelationID: "corr-merge",
		Type:          db.WriteOpTypeMergePullRequest,
		RepositoryID:  testRepoID,
		Owner:         "testowner",
		Repo:          "testrepo",
		IssueNumber:   9,
		CommitMessage: "Merge it",
	})
	require.NoError(t, err)
	require.Equal(t, db.WriteOpStateCompleted, result.State)
	require.Equal(t, int64(9), result.GithubEntityNumber)
}
