// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package reads

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/projections"
)

const testRepoID int64 = 12345

var baseTime = time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

func seedRepo(t *testing.T, store db.Store) {
	t.Helper()
	require.NoError(t, store.UpsertRepository(context.Background(), db.UpsertRepositoryParams{
		ID:            testRepoID,
		OwnerLogin:    "testowner",
		Name:          "testrepo",
		FullName:      "testowner/testrepo",
		Visibility:    "public",
		DefaultBranch: "main",
		Now:           baseTime,
	}))
}

func seedUser(t *testing.T, store db.Store, id int64, login string) {
	t.Helper()
	require.NoError(t, store.UpsertUser(context.Background(), db.UpsertUserParams{
		ID:        id,
		Login:     login,
		AvatarURL: "https://example.com/" + login + ".png",
		Kind:      "User",
		Now:       baseTime,
	}))
}

func seedPullRequest(t *testing.T, store db.Store, number int64, state string, updatedAt time.Time) {
	t.Helper()
	_, err := store.UpsertPullRequest(context.Background(), db.UpsertPullRequestParams{
		RepositoryID:    testRepoID,
		Number:          number,
		GithubPrID:      6000 + number,
		State:           state,
		Title:           "PR title",
		AuthorUserID:    sql.NullInt64{Int64: 1002, Valid: true},
		HeadRef:         "feature",
		HeadSha:         "sha-head",
		BaseRef:         "main",
		GithubUpdatedAt: updatedAt,
	})
	require.NoError(t, err)
}

func refreshProjections(t *testing.T, store db.Store) {
	t.Helper()
	maintainer := projections.NewMaintainer(store)
	require.NoError(t, maintainer.UpdateAllProjections(context.Background(), testRepoID))
}

func TestListReposIncludesOverview(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1002, "prauthor")
	seedPullRequest(t, store, 2, "open", baseTime)
	refreshProjections(t, store)

	reader := NewReader(store)
	repos, err := reader.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	require.Equal(t, "testowner/testrepo", repos[0].Repository.FullName)
	require.Equal(t, int32(1), repos[0].Overview.OpenPrCount)
}

func TestListReposWithoutOverviewIsZeroValued(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	seedRepo(t, store)

	reader := NewReader(store)
	repos, err := reader.ListRepos(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 1)
	require.Zero(t, repos[0].Overview.OpenPrCount)
}

func TestGetRepoUnknown(t *testing.T) {
	t.Parallel()

	reader := NewReader(db.NewMemStore())
	_, err := reader.GetRepo(context.Background(), 999)
	require.ErrorIs(t, err, ErrRepositoryNotFound)
}

func TestListPullRequestsCursorPagination(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1002, "prauthor")
	seedPullRequest(t, store, 1, "open", baseTime.Add(-2*time.Hour))
	seedPullRequest(t, store, 2, "open", baseTime.Add(-time.Hour))
	seedPullRequest(t, store, 3, "open", baseTime)
	refreshProjections(t, store)

	reader := NewReader(store)

	first, err := reader.ListPullRequests(ctx, testRepoID, Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, int64(3), first[0].Number)
	require.Equal(t, int64(2), first[1].Number)
	require.Equal(t, "prauthor", first[0].AuthorLogin.String)

	cursor := first[1].SortUpdated
	second, err := reader.ListPullRequests(ctx, testRepoID, Page{Before: &cursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, int64(1), second[0].Number)
}

func TestGetPullRequestDetail(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1002, "prauthor")
	seedUser(t, store, 1003, "reviewer")
	seedPullRequest(t, store, 2, "open", baseTime)

	require.NoError(t, store.UpsertIssueComment(ctx, db.UpsertIssueCommentParams{
		RepositoryID:    testRepoID,
		GithubCommentID: 9001,
		IssueNumber:     2,
		AuthorUserID:    sql.NullInt64{Int64: 1003, Valid: true},
		Body:            "looks good",
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}))
	require.NoError(t, store.UpsertPullRequestReview(ctx, db.UpsertPullRequestReviewParams{
		RepositoryID:      testRepoID,
		GithubReviewID:    8001,
		PullRequestNumber: 2,
		ReviewerUserID:    sql.NullInt64{Int64: 1003, Valid: true},
		State:             "approved",
		CommitSha:         "sha-head",
		SubmittedAt:       sql.NullTime{Time: baseTime, Valid: true},
	}))
	require.NoError(t, store.UpsertCheckRun(ctx, db.UpsertCheckRunParams{
		RepositoryID:     testRepoID,
		GithubCheckRunID: 7001,
		Name:             "ci/test",
		HeadSha:          "sha-head",
		Status:           "completed",
		Conclusion:       sql.NullString{String: "success", Valid: true},
	}))
	require.NoError(t, store.UpsertPullRequestFile(ctx, db.UpsertPullRequestFileParams{
		RepositoryID:      testRepoID,
		PullRequestNumber: 2,
		Filename:          "main.go",
		Status:            "modified",
		Additions:         3,
		Deletions:         1,
		Changes:           4,
		Patch:             sql.NullString{String: "@@ diff @@", Valid: true},
		HeadSha:           "sha-head",
		CachedAt:          baseTime,
	}))

	reader := NewReader(store)
	detail, err := reader.GetPullRequestDetail(ctx, testRepoID, 2)
	require.NoError(t, err)
	require.Equal(t, "prauthor", detail.AuthorLogin)
	require.Len(t, detail.Comments, 1)
	require.Equal(t, "reviewer", detail.Comments[0].AuthorLogin)
	require.Len(t, detail.Reviews, 1)
	require.Equal(t, "approved", detail.Reviews[0].Review.State)
	require.Len(t, detail.CheckRuns, 1)
	require.Len(t, detail.Files, 1)
	require.Equal(t, "main.go", detail.Files[0].Filename)
}

func TestGetPullRequestDetailMissing(t *testing.T) {
	t.Parallel()

	reader := NewReader(db.NewMemStore())
	_, err := reader.GetPullRequestDetail(context.Background(), testRepoID, 404)
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestGetIssueDetail(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1001, "testowner")

	_, err := store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID:    testRepoID,
		Number:          1,
		GithubIssueID:   5001,
		State:           "open",
		Title:           "Real issue",
		AuthorUserID:    sql.NullInt64{Int64: 1001, Valid: true},
		GithubUpdatedAt: baseTime,
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertIssueComment(ctx, db.UpsertIssueCommentParams{
		RepositoryID:    testRepoID,
		GithubCommentID: 9002,
		IssueNumber:     1,
		AuthorUserID:    sql.NullInt64{Int64: 1001, Valid: true},
		Body:            "first",
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}))

	reader := NewReader(store)
	detail, err := reader.GetIssueDetail(ctx, testRepoID, 1)
	require.NoError(t, err)
	require.Equal(t, "Real issue", detail.Issue.Title)
	require.Equal(t, "testowner", detail.AuthorLogin)
	require.Len(t, detail.Comments, 1)

	_, err = reader.GetIssueDetail(ctx, testRepoID, 404)
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, int32(200), clampLimit(0, 200))
	require.Equal(t, int32(200), clampLimit(-5, 200))
	require.Equal(t, int32(200), clampLimit(999, 200))
	require.Equal(t, int32(25), clampLimit(25, 200))
}
