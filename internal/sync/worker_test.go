// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/events/stubs"
	"github.com/mindersec/ghmirror/internal/gh"
)

const (
	testRepoID    int64 = 12345
	testInstallID int64 = 777
)

var testUpdated = time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

func ts(t time.Time) *gogithub.Timestamp {
	return &gogithub.Timestamp{Time: t}
}

func testUser(id int64, login string) *gogithub.User {
	return &gogithub.User{
		ID:        gogithub.Int64(id),
		Login:     gogithub.String(login),
		AvatarURL: gogithub.String("https://example.com/" + login + ".png"),
		Type:      gogithub.String("User"),
	}
}

func testPR(number int, state string, headSha string) *gogithub.PullRequest {
	return &gogithub.PullRequest{
		ID:     gogithub.Int64(6000 + int64(number)),
		Number: gogithub.Int(number),
		State:  gogithub.String(state),
		Title:  gogithub.String("PR title"),
		User:   testUser(1002, "prauthor"),
		Head: &gogithub.PullRequestBranch{
			Ref: gogithub.String("feature"),
			SHA: gogithub.String(headSha),
		},
		Base:      &gogithub.PullRequestBranch{Ref: gogithub.String("main")},
		UpdatedAt: ts(testUpdated),
	}
}

// fakeGitHub plays the GitHub REST API with canned data.
type fakeGitHub struct {
	repo        *gogithub.Repository
	repoErr     error
	repoByID    *gogithub.Repository
	repoByIDErr error
	branches   []*gogithub.Branch
	prs        []*gogithub.PullRequest
	prByNumber map[int]*gogithub.PullRequest
	prErr      error
	issues     []*gogithub.Issue
	issueByNum map[int]*gogithub.Issue
	issueErr   error
	commits    []*gogithub.RepositoryCommit
	comments   []*gogithub.IssueComment
	reviews    []*gogithub.PullRequestReview
	checkRuns  []*gogithub.CheckRun
	runs       []*gogithub.WorkflowRun
	jobs       map[int64][]*gogithub.WorkflowJob
	filePages  [][]*gogithub.CommitFile
	fileErr    error

	getPullRequestCalls int
	getIssueCalls       int
	getRepoByIDCalls    int
}

func (f *fakeGitHub) GetRepository(context.Context, string, string) (*gogithub.Repository, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return f.repo, nil
}

func (f *fakeGitHub) GetRepositoryByID(context.Context, int64) (*gogithub.Repository, error) {
	f.getRepoByIDCalls++
	if f.repoByIDErr != nil {
		return nil, f.repoByIDErr
	}
	return f.repoByID, nil
}

func (f *fakeGitHub) ListBranches(_ context.Context, _, _ string, _ *gogithub.BranchListOptions) ([]*gogithub.Branch, *gogithub.Response, error) {
	return f.branches, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListCommits(_ context.Context, _, _ string, _ *gogithub.CommitsListOptions) ([]*gogithub.RepositoryCommit, *gogithub.Response, error) {
	return f.commits, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListPullRequests(_ context.Context, _, _ string, _ *gogithub.PullRequestListOptions) ([]*gogithub.PullRequest, *gogithub.Response, error) {
	return f.prs, &gogithub.Response{}, nil
}

func (f *fakeGitHub) GetPullRequest(_ context.Context, _, _ string, number int) (*gogithub.PullRequest, error) {
	f.getPullRequestCalls++
	if f.prErr != nil {
		return nil, f.prErr
	}
	pr, ok := f.prByNumber[number]
	if !ok {
		return nil, f.prErr
	}
	return pr, nil
}

func (f *fakeGitHub) ListPullRequestFiles(_ context.Context, _, _ string, _ int, opt *gogithub.ListOptions) ([]*gogithub.CommitFile, *gogithub.Response, error) {
	if f.fileErr != nil {
		return nil, nil, f.fileErr
	}
	page := opt.Page
	if page == 0 {
		page = 1
	}
	if page > len(f.filePages) {
		return nil, &gogithub.Response{}, nil
	}
	resp := &gogithub.Response{}
	if page < len(f.filePages) {
		resp.NextPage = page + 1
	}
	return f.filePages[page-1], resp, nil
}

func (f *fakeGitHub) ListPullRequestReviews(_ context.Context, _, _ string, _ int, _ *gogithub.ListOptions) ([]*gogithub.PullRequestReview, *gogithub.Response, error) {
	return f.reviews, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, _, _ string, _ *gogithub.IssueListByRepoOptions) ([]*gogithub.Issue, *gogithub.Response, error) {
	return f.issues, &gogithub.Response{}, nil
}

func (f *fakeGitHub) GetIssue(_ context.Context, _, _ string, number int) (*gogithub.Issue, error) {
	f.getIssueCalls++
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	issue, ok := f.issueByNum[number]
	if !ok {
		return nil, f.issueErr
	}
	return issue, nil
}

func (f *fakeGitHub) ListIssueComments(_ context.Context, _, _ string, _ int, _ *gogithub.IssueListCommentsOptions) ([]*gogithub.IssueComment, *gogithub.Response, error) {
	return f.comments, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListCheckRunsForRef(_ context.Context, _, _, _ string, _ *gogithub.ListCheckRunsOptions) (*gogithub.ListCheckRunsResults, *gogithub.Response, error) {
	return &gogithub.ListCheckRunsResults{
		Total:     gogithub.Int(len(f.checkRuns)),
		CheckRuns: f.checkRuns,
	}, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListWorkflowRuns(_ context.Context, _, _ string, _ *gogithub.ListWorkflowRunsOptions) (*gogithub.WorkflowRuns, *gogithub.Response, error) {
	return &gogithub.WorkflowRuns{
		TotalCount:   gogithub.Int(len(f.runs)),
		WorkflowRuns: f.runs,
	}, &gogithub.Response{}, nil
}

func (f *fakeGitHub) ListWorkflowJobs(_ context.Context, _, _ string, runID int64, _ *gogithub.ListWorkflowJobsOptions) (*gogithub.Jobs, *gogithub.Response, error) {
	jobs := f.jobs[runID]
	return &gogithub.Jobs{
		TotalCount: gogithub.Int(len(jobs)),
		Jobs:       jobs,
	}, &gogithub.Response{}, nil
}

var _ GitHubFetcher = (*fakeGitHub)(nil)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		MaxFilesPerPr: 300,
		MaxPatchBytes: 100_000,
		ChunkSize:     50,
		PageSize:      100,
	}
}

func newTestWorker(store db.Store, fake *fakeGitHub, evt events.Publisher) *Worker {
	provider := func(context.Context, int64) (GitHubFetcher, error) {
		return fake, nil
	}
	w := NewWorker(store, provider, evt, testSyncConfig())
	// Retries run without delay so failure tests stay fast.
	w.fetchBackoff = func(ctx context.Context) backoff.BackOff {
		return backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, fetchRetries), ctx)
	}
	return w
}

func fullFake() *fakeGitHub {
	return &fakeGitHub{
		repo: &gogithub.Repository{
			ID:            gogithub.Int64(testRepoID),
			Owner:         testUser(1001, "testowner"),
			Name:          gogithub.String("testrepo"),
			FullName:      gogithub.String("testowner/testrepo"),
			Visibility:    gogithub.String("public"),
			DefaultBranch: gogithub.String("main"),
			PushedAt:      ts(testUpdated),
			UpdatedAt:     ts(testUpdated),
		},
		branches: []*gogithub.Branch{
			{Name: gogithub.String("main"),
				Commit: &gogithub.RepositoryCommit{SHA: gogithub.String("sha-main")}},
			{Name: gogithub.String("feature"),
				Commit: &gogithub.RepositoryCommit{SHA: gogithub.String("sha-head")}},
		},
		prs: []*gogithub.PullRequest{
			testPR(2, "open", "sha-head"),
			testPR(3, "closed", "sha-old"),
		},
		issues: []*gogithub.Issue{
			{
				ID: gogithub.Int64(5001), Number: gogithub.Int(1),
				State: gogithub.String("open"), Title: gogithub.String("Real issue"),
				User: testUser(1001, "testowner"), UpdatedAt: ts(testUpdated),
			},
			{
				ID: gogithub.Int64(5002), Number: gogithub.Int(2),
				State: gogithub.String("open"), Title: gogithub.String("PR shadow"),
				PullRequestLinks: &gogithub.PullRequestLinks{URL: gogithub.String("u")},
				UpdatedAt:        ts(testUpdated),
			},
		},
		commits: []*gogithub.RepositoryCommit{
			{
				SHA:    gogithub.String("sha-main"),
				Commit: &gogithub.Commit{Message: gogithub.String("feat: init\n\nbody")},
				Author: testUser(1001, "testowner"),
			},
		},
		checkRuns: []*gogithub.CheckRun{
			{
				ID: gogithub.Int64(7001), Name: gogithub.String("ci/test"),
				HeadSHA: gogithub.String("sha-head"), Status: gogithub.String("completed"),
				Conclusion: gogithub.String("SUCCESS"),
			},
		},
		runs: []*gogithub.WorkflowRun{
			{
				ID: gogithub.Int64(9101), Name: gogithub.String("CI"),
				HeadBranch: gogithub.String("feature"), HeadSHA: gogithub.String("sha-head"),
				Status: gogithub.String("completed"), Conclusion: gogithub.String("success"),
				RunNumber: gogithub.Int(12), UpdatedAt: ts(testUpdated),
			},
		},
		jobs: map[int64][]*gogithub.WorkflowJob{
			9101: {
				{
					ID: gogithub.Int64(9201), RunID: gogithub.Int64(9101),
					Name: gogithub.String("build"), Status: gogithub.String("completed"),
					Conclusion: gogithub.String("success"),
				},
			},
		},
	}
}

func TestRunFullSyncBootstrap(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	fake := fullFake()
	w := newTestWorker(store, fake, evt)

	result, err := w.ScheduleBootstrap(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.True(t, result.Scheduled)
	require.Equal(t, "repo-bootstrap:0:12345", result.LockKey)

	job, err := store.AcquireSyncJob(ctx, result.LockKey)
	require.NoError(t, err)
	require.NoError(t, w.RunSyncJob(ctx, job))

	repo, err := store.GetRepository(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, "testowner/testrepo", repo.FullName)
	require.Equal(t, testInstallID, repo.InstallationID.Int64)

	branches, err := store.ListBranches(ctx, testRepoID)
	require.NoError(t, err)
	require.Len(t, branches, 2)

	prs, err := store.ListPullRequests(ctx, testRepoID)
	require.NoError(t, err)
	require.Len(t, prs, 2)

	issues, err := store.ListIssues(ctx, testRepoID)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	shadow, err := store.GetIssue(ctx, db.GetIssueParams{RepositoryID: testRepoID, Number: 2})
	require.NoError(t, err)
	require.True(t, shadow.IsPullRequest)

	_, err = store.GetCommit(ctx, db.GetCommitParams{RepositoryID: testRepoID, Sha: "sha-main"})
	require.NoError(t, err)

	checks, err := store.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
		RepositoryID: testRepoID, HeadSha: "sha-head"})
	require.NoError(t, err)
	require.Len(t, checks, 1)
	require.Equal(t, "success", checks[0].Conclusion.String)

	workflowRuns, err := store.ListWorkflowRuns(ctx, db.ListWorkflowRunsParams{
		RepositoryID: testRepoID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, workflowRuns, 1)

	author, err := store.GetUser(ctx, 1002)
	require.NoError(t, err)
	require.Equal(t, "prauthor", author.Login)

	// One file sync message for the single open pull request.
	require.Contains(t, evt.Topics, events.TopicQueueSyncPullFiles)

	overview, err := store.GetRepoOverview(ctx, testRepoID)
	require.NoError(t, err)
	require.Equal(t, int32(1), overview.OpenPrCount)
	require.Equal(t, int32(1), overview.OpenIssueCount)

	stored, err := store.GetSyncJobByLockKey(ctx, result.LockKey)
	require.NoError(t, err)
	require.Equal(t, db.SyncJobStateDone, stored.State)
}

func TestScheduleBootstrapSerializedByLockKey(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	w := newTestWorker(store, fullFake(), evt)

	first, err := w.ScheduleBootstrap(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.True(t, first.Scheduled)

	second, err := w.ScheduleBootstrap(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.False(t, second.Scheduled)
	require.Equal(t, first.LockKey, second.LockKey)

	require.Len(t, evt.Sent, 1)
}

func TestRunSyncJobRecordsFailure(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := fullFake()
	fake.repoErr = context.DeadlineExceeded
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	result, err := w.ScheduleReconcile(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.Equal(t, "repo-reconcile:0:12345", result.LockKey)

	job, err := store.AcquireSyncJob(ctx, result.LockKey)
	require.NoError(t, err)
	require.Error(t, w.RunSyncJob(ctx, job))

	stored, err := store.GetSyncJobByLockKey(ctx, result.LockKey)
	require.NoError(t, err)
	require.Equal(t, db.SyncJobStateFailed, stored.State)
	require.Contains(t, stored.LastError.String, "fetching repository")
}

func TestScheduleReconcileAgainAfterJobFinished(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	evt := &stubs.StubEventer{}
	ctx := context.Background()
	w := newTestWorker(store, fullFake(), evt)

	first, err := w.ScheduleReconcile(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.True(t, first.Scheduled)

	job, err := store.AcquireSyncJob(ctx, first.LockKey)
	require.NoError(t, err)
	require.NoError(t, w.RunSyncJob(ctx, job))

	// The finished row no longer holds the lock; a fresh reconcile of the
	// same repository must schedule again.
	second, err := w.ScheduleReconcile(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.True(t, second.Scheduled)
	require.Equal(t, first.LockKey, second.LockKey)

	stored, err := store.GetSyncJobByLockKey(ctx, second.LockKey)
	require.NoError(t, err)
	require.Equal(t, db.SyncJobStatePending, stored.State)
	require.Len(t, evt.Sent, 2)
}

func TestScheduleBootstrapAgainAfterFailure(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()
	fake := fullFake()
	fake.repoErr = context.DeadlineExceeded
	w := newTestWorker(store, fake, &stubs.StubEventer{})

	result, err := w.ScheduleBootstrap(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)

	job, err := store.AcquireSyncJob(ctx, result.LockKey)
	require.NoError(t, err)
	require.Error(t, w.RunSyncJob(ctx, job))

	fake.repoErr = nil
	retried, err := w.ScheduleBootstrap(ctx, testRepoID, "testowner/testrepo", testInstallID)
	require.NoError(t, err)
	require.True(t, retried.Scheduled)
}

func TestFetchRetryRecoversAfterTransientError(t *testing.T) {
	t.Parallel()

	w := newTestWorker(db.NewMemStore(), fullFake(), &stubs.StubEventer{})

	calls := 0
	err := w.withFetchRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestFetchRetryStopsOnNotFound(t *testing.T) {
	t.Parallel()

	w := newTestWorker(db.NewMemStore(), fullFake(), &stubs.StubEventer{})

	calls := 0
	err := w.withFetchRetry(context.Background(), func() error {
		calls++
		return gh.ErrNotFound
	})
	require.ErrorIs(t, err, gh.ErrNotFound)
	require.Equal(t, 1, calls)
}

func TestSplitFullName(t *testing.T) {
	t.Parallel()

	owner, name, err := splitFullName("testowner/testrepo")
	require.NoError(t, err)
	require.Equal(t, "testowner", owner)
	require.Equal(t, "testrepo", name)

	_, _, err = splitFullName("no-slash")
	require.Error(t, err)
}

func TestNormalizeState(t *testing.T) {
	t.Parallel()

	require.Equal(t, "approved", normalizeState("APPROVED"))
	require.Equal(t, "success", normalizeState("success"))
}

func TestMessageHeadline(t *testing.T) {
	t.Parallel()

	require.Equal(t, "feat: init", messageHeadline("feat: init\n\nbody"))
	require.Equal(t, "fix", messageHeadline("fix"))
	require.Equal(t, strings.Repeat("x", 10), messageHeadline(strings.Repeat("x", 10)))
}
