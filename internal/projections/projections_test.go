// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package projections

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
)

const testRepoID int64 = 12345

func seedRepo(t *testing.T, store db.Store) {
	t.Helper()

	err := store.UpsertRepository(context.Background(), db.UpsertRepositoryParams{
		ID:            testRepoID,
		OwnerLogin:    "testowner",
		Name:          "testrepo",
		FullName:      "testowner/testrepo",
		Visibility:    "public",
		DefaultBranch: "main",
		Now:           time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedUser(t *testing.T, store db.Store, id int64, login string) {
	t.Helper()

	err := store.UpsertUser(context.Background(), db.UpsertUserParams{
		ID:        id,
		Login:     login,
		AvatarURL: "https://example.com/" + login + ".png",
		Kind:      "User",
		Now:       time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestUpdateAllProjectionsOverviewCounts(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1001, "testuser")

	updated := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	_, err := store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 1, GithubIssueID: 5001,
		State: "open", Title: "Open issue",
		AuthorUserID:    sql.NullInt64{Int64: 1001, Valid: true},
		GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	_, err = store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 2, GithubIssueID: 5002,
		State: "closed", Title: "Closed issue",
		GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	// Issues that are really pull requests do not count as open issues.
	_, err = store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 3, GithubIssueID: 5003,
		State: "open", Title: "PR shadow", IsPullRequest: true,
		GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	_, err = store.UpsertPullRequest(ctx, db.UpsertPullRequestParams{
		RepositoryID: testRepoID, Number: 3, GithubPrID: 6001,
		State: "open", Title: "PR shadow", HeadRef: "feature", HeadSha: "sha-1",
		BaseRef: "main", GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpsertCheckRun(ctx, db.UpsertCheckRunParams{
		RepositoryID: testRepoID, GithubCheckRunID: 7001,
		Name: "ci/test", HeadSha: "sha-1", Status: "completed",
		Conclusion: sql.NullString{String: "failure", Valid: true},
	}))

	maintainer := NewMaintainer(store)
	require.NoError(t, maintainer.UpdateAllProjections(ctx, testRepoID))

	overview, err := store.GetRepoOverview(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, int32(1), overview.OpenPrCount)
	require.Equal(t, int32(1), overview.OpenIssueCount)
	require.Equal(t, int32(1), overview.FailingCheckCount)
}

func TestPullRequestListEnrichment(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)
	seedUser(t, store, 1002, "prauthor")

	updated := time.Date(2026, 2, 18, 11, 0, 0, 0, time.UTC)

	_, err := store.UpsertPullRequest(ctx, db.UpsertPullRequestParams{
		RepositoryID: testRepoID, Number: 2, GithubPrID: 6001,
		State: "open", Title: "Add feature",
		AuthorUserID: sql.NullInt64{Int64: 1002, Valid: true},
		HeadRef:      "feature", HeadSha: "sha-head", BaseRef: "main",
		CommentCount: 3, ReviewCount: 1,
		GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpsertCheckRun(ctx, db.UpsertCheckRunParams{
		RepositoryID: testRepoID, GithubCheckRunID: 7001,
		Name: "ci/test", HeadSha: "sha-head", Status: "completed",
		Conclusion: sql.NullString{String: "success", Valid: true},
	}))

	maintainer := NewMaintainer(store)
	require.NoError(t, maintainer.UpdateAllProjections(ctx, testRepoID))

	items, err := store.ListRepoPullRequestList(ctx, db.ListRepoPullRequestListParams{
		RepositoryID: testRepoID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "prauthor", items[0].AuthorLogin.String)
	require.Equal(t, "success", items[0].LastCheckConclusion.String)
	require.Equal(t, int32(3), items[0].CommentCount)
	require.Equal(t, updated, items[0].SortUpdated)
}

func TestIssueListSkipsPullRequestShadows(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)

	updated := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	_, err := store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 1, GithubIssueID: 5001,
		State: "open", Title: "Real issue", GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	_, err = store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 2, GithubIssueID: 5002,
		State: "open", Title: "PR shadow", IsPullRequest: true,
		GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	maintainer := NewMaintainer(store)
	require.NoError(t, maintainer.UpdateAllProjections(ctx, testRepoID))

	items, err := store.ListRepoIssueList(ctx, db.ListRepoIssueListParams{
		RepositoryID: testRepoID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Real issue", items[0].Title)
}

func TestUpdateAllProjectionsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)

	updated := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	_, err := store.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID: testRepoID, Number: 1, GithubIssueID: 5001,
		State: "open", Title: "Test issue", GithubUpdatedAt: updated,
	})
	require.NoError(t, err)

	maintainer := NewMaintainer(store)
	require.NoError(t, maintainer.UpdateAllProjections(ctx, testRepoID))
	require.NoError(t, maintainer.UpdateAllProjections(ctx, testRepoID))

	items, err := store.ListRepoIssueList(ctx, db.ListRepoIssueListParams{
		RepositoryID: testRepoID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)

	overview, err := store.GetRepoOverview(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, int32(1), overview.OpenIssueCount)
}

func TestRepairAllCoversEveryRepository(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	seedRepo(t, store)

	require.NoError(t, store.UpsertRepository(ctx, db.UpsertRepositoryParams{
		ID: 67890, OwnerLogin: "otherowner", Name: "otherrepo",
		FullName: "otherowner/otherrepo", Visibility: "public",
		DefaultBranch: "main", Now: time.Now().UTC(),
	}))

	maintainer := NewMaintainer(store)
	require.NoError(t, maintainer.RepairAll(ctx))

	count, err := store.CountRepoOverviews(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
