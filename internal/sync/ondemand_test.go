// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"testing"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/events/stubs"
	"github.com/mindersec/ghmirror/internal/gh"
)

func testRepository() db.Repository {
	return db.Repository{
		ID:         testRepoID,
		OwnerLogin: "testowner",
		Name:       "testrepo",
		FullName:   "testowner/testrepo",
	}
}

func onDemandFake() *fakeGitHub {
	return &fakeGitHub{
		prByNumber: map[int]*gogithub.PullRequest{
			8: testPR(8, "open", "sha-head"),
		},
		issueByNum: map[int]*gogithub.Issue{
			4: {
				ID: gogithub.Int64(5004), Number: gogithub.Int(4),
				State: gogithub.String("open"), Title: gogithub.String("Missed issue"),
				User: testUser(1001, "testowner"), UpdatedAt: ts(testUpdated),
			},
		},
		comments: []*gogithub.IssueComment{
			{
				ID: gogithub.Int64(9001), User: testUser(1003, "reviewer"),
				Body:      gogithub.String("looks good"),
				CreatedAt: ts(testUpdated), UpdatedAt: ts(testUpdated),
			},
		},
		reviews: []*gogithub.PullRequestReview{
			{
				ID: gogithub.Int64(8001), User: testUser(1003, "reviewer"),
				State: gogithub.String("APPROVED"), CommitID: gogithub.String("sha-head"),
				SubmittedAt: ts(testUpdated),
			},
		},
		checkRuns: []*gogithub.CheckRun{
			{
				ID: gogithub.Int64(7001), Name: gogithub.String("ci/test"),
				HeadSHA: gogithub.String("sha-head"), Status: gogithub.String("completed"),
				Conclusion: gogithub.String("success"),
			},
		},
	}
}

func TestEnsureRepositoryFetchesUnknownRepo(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := onDemandFake()
	fake.repoByID = fullFake().repo
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	repo, client, err := w.EnsureRepository(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, "testowner/testrepo", repo.FullName)
	require.Equal(t, 1, fake.getRepoByIDCalls)
	require.NotNil(t, client)

	stored, err := store.GetRepository(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, "testowner", stored.OwnerLogin)

	// The stored row now answers; no second id fetch happens.
	_, _, err = w.EnsureRepository(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, 1, fake.getRepoByIDCalls)
}

func TestEnsureRepositoryUnknownUpstream(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	fake := &fakeGitHub{repoByIDErr: gh.ErrNotFound}
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	_, _, err := w.EnsureRepository(context.Background(), testRepoID)
	require.ErrorIs(t, err, ErrNotFoundOnGitHub)

	_, err = store.GetRepository(context.Background(), testRepoID)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestSyncPullRequestFetchesAndStores(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	fake := onDemandFake()
	w := newTestWorker(store, fake, evt)

	require.NoError(t, w.SyncPullRequest(ctx, fake, testRepository(), 8))
	require.Equal(t, 1, fake.getPullRequestCalls)

	pr, err := store.GetPullRequest(ctx, db.GetPullRequestParams{
		RepositoryID: testRepoID, Number: 8})
	require.NoError(t, err)
	require.Equal(t, "sha-head", pr.HeadSha)

	comments, err := store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: testRepoID, IssueNumber: 8, Limit: 10})
	require.NoError(t, err)
	require.Len(t, comments, 1)

	reviews, err := store.ListReviewsForPullRequest(ctx, db.ListReviewsForPullRequestParams{
		RepositoryID: testRepoID, PullRequestNumber: 8, Limit: 10})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "approved", reviews[0].State)

	checks, err := store.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
		RepositoryID: testRepoID, HeadSha: "sha-head"})
	require.NoError(t, err)
	require.Len(t, checks, 1)

	require.Contains(t, evt.Topics, events.TopicQueueSyncPullFiles)
}

func TestSyncPullRequestAlreadyCachedSkipsFetch(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := onDemandFake()
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	_, err := store.UpsertPullRequest(ctx, pullRequestParams(testRepoID, testPR(8, "open", "sha-head")))
	require.NoError(t, err)

	require.NoError(t, w.SyncPullRequest(ctx, fake, testRepository(), 8))
	require.Zero(t, fake.getPullRequestCalls)
}

func TestSyncPullRequestNotFoundUpstream(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	fake := &fakeGitHub{prErr: gh.ErrNotFound}
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	err := w.SyncPullRequest(context.Background(), fake, testRepository(), 404)
	require.ErrorIs(t, err, ErrNotFoundOnGitHub)
}

func TestSyncIssueFetchesAndStores(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := onDemandFake()
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	require.NoError(t, w.SyncIssue(ctx, fake, testRepository(), 4))

	issue, err := store.GetIssue(ctx, db.GetIssueParams{RepositoryID: testRepoID, Number: 4})
	require.NoError(t, err)
	require.Equal(t, "Missed issue", issue.Title)
	require.False(t, issue.IsPullRequest)

	comments, err := store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: testRepoID, IssueNumber: 4, Limit: 10})
	require.NoError(t, err)
	require.Len(t, comments, 1)

	// Second call finds the cached issue and never touches the API again.
	require.NoError(t, w.SyncIssue(ctx, fake, testRepository(), 4))
	require.Equal(t, 1, fake.getIssueCalls)
}

func TestSyncIssueNotFoundUpstream(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	fake := &fakeGitHub{issueErr: gh.ErrNotFound}
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	err := w.SyncIssue(context.Background(), fake, testRepository(), 404)
	require.ErrorIs(t, err, ErrNotFoundOnGitHub)
}
