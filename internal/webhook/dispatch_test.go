// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindersec/ghmirror/internal/db"
)

const testRepoID int64 = 12345

func TestDispatchIssueOpened(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	payload := []byte(`{
		"action": "opened",
		"issue": {
			"id": 5001, "number": 1, "state": "open", "title": "Test issue",
			"user": {"id": 1001, "login": "testuser", "avatar_url": "https://example.com/a.png"},
			"updated_at": "2026-02-18T10:00:00Z",
			"labels": [{"name": "bug"}],
			"comments": 0
		}
	}`)

	require.NoError(t, Dispatch(ctx, store, testRepoID, "issues", payload))

	issue, err := store.GetIssue(ctx, db.GetIssueParams{RepositoryID: testRepoID, Number: 1})
	require.NoError(t, err)
	require.Equal(t, "open", issue.State)
	require.Equal(t, "Test issue", issue.Title)
	require.Equal(t, []string{"bug"}, []string(issue.LabelNames))
	require.False(t, issue.IsPullRequest)

	user, err := store.GetUser(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, "testuser", user.Login)
}

func TestDispatchIssueOutOfOrderCollapse(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	closed := []byte(`{
		"action": "closed",
		"issue": {"id": 5001, "number": 1, "state": "closed", "title": "Newer title",
			"updated_at": "2026-02-18T12:00:00Z"}
	}`)
	opened := []byte(`{
		"action": "opened",
		"issue": {"id": 5001, "number": 1, "state": "open", "title": "Older title",
			"updated_at": "2026-02-18T10:00:00Z"}
	}`)

	require.NoError(t, Dispatch(ctx, store, testRepoID, "issues", closed))
	require.NoError(t, Dispatch(ctx, store, testRepoID, "issues", opened))

	issue, err := store.GetIssue(ctx, db.GetIssueParams{RepositoryID: testRepoID, Number: 1})
	require.NoError(t, err)
	require.Equal(t, "closed", issue.State)
	require.Equal(t, "Newer title", issue.Title)
}

func TestDispatchPushWithCommits(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	payload := []byte(`{
		"ref": "refs/heads/main",
		"after": "sha-new",
		"commits": [
			{"id": "c1", "message": "feat: init\n\nlong body", "timestamp": "2026-02-18T10:00:00Z"},
			{"id": "c2", "message": "fix", "timestamp": "2026-02-18T10:01:00Z"}
		],
		"sender": {"id": 1001, "login": "testuser"}
	}`)

	require.NoError(t, Dispatch(ctx, store, testRepoID, "push", payload))

	branch, err := store.GetBranch(ctx, db.GetBranchParams{RepositoryID: testRepoID, Name: "main"})
	require.NoError(t, err)
	require.Equal(t, "sha-new", branch.HeadSha)

	c1, err := store.GetCommit(ctx, db.GetCommitParams{RepositoryID: testRepoID, Sha: "c1"})
	require.NoError(t, err)
	require.Equal(t, "feat: init", c1.MessageHeadline)

	_, err = store.GetCommit(ctx, db.GetCommitParams{RepositoryID: testRepoID, Sha: "c2"})
	require.NoError(t, err)
}

func TestDispatchPushIgnoresTags(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	payload := []byte(`{"ref": "refs/tags/v1.0.0", "after": "sha-tag"}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "push", payload))

	_, err := store.GetBranch(ctx, db.GetBranchParams{RepositoryID: testRepoID, Name: "v1.0.0"})
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestDispatchBranchCreateThenPush(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	create := []byte(`{"ref": "feature", "ref_type": "branch"}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "create", create))

	branch, err := store.GetBranch(ctx, db.GetBranchParams{RepositoryID: testRepoID, Name: "feature"})
	require.NoError(t, err)
	require.Empty(t, branch.HeadSha)

	push := []byte(`{"ref": "refs/heads/feature", "after": "sha-1", "commits": []}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "push", push))

	branch, err = store.GetBranch(ctx, db.GetBranchParams{RepositoryID: testRepoID, Name: "feature"})
	require.NoError(t, err)
	require.Equal(t, "sha-1", branch.HeadSha)
}

func TestDispatchBranchDelete(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	require.NoError(t, Dispatch(ctx, store, testRepoID, "create",
		[]byte(`{"ref": "gone", "ref_type": "branch"}`)))
	require.NoError(t, Dispatch(ctx, store, testRepoID, "delete",
		[]byte(`{"ref": "gone", "ref_type": "branch"}`)))

	_, err := store.GetBranch(ctx, db.GetBranchParams{RepositoryID: testRepoID, Name: "gone"})
	require.ErrorIs(t, err, db.ErrNotFound)

	// Tag deletions are ignored.
	require.NoError(t, Dispatch(ctx, store, testRepoID, "delete",
		[]byte(`{"ref": "v1.0.0", "ref_type": "tag"}`)))
}

func TestDispatchIssueCommentLifecycle(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	created := []byte(`{
		"action": "created",
		"comment": {"id": 9001, "body": "looks good",
			"user": {"id": 1001, "login": "testuser"},
			"created_at": "2026-02-18T10:00:00Z", "updated_at": "2026-02-18T10:00:00Z"},
		"issue": {"id": 5001, "number": 1, "title": "Test issue",
			"updated_at": "2026-02-18T10:00:00Z"}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "issue_comment", created))

	comments, err := store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: testRepoID, IssueNumber: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "looks good", comments[0].Body)

	deleted := []byte(`{
		"action": "deleted",
		"comment": {"id": 9001},
		"issue": {"number": 1}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "issue_comment", deleted))

	comments, err = store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: testRepoID, IssueNumber: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, comments)
}

func TestDispatchCheckRunRequiresNameAndSha(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	missing := []byte(`{"action": "completed", "check_run": {"id": 7001, "name": "", "head_sha": ""}}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "check_run", missing))

	runs, err := store.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
		RepositoryID: testRepoID, HeadSha: ""})
	require.NoError(t, err)
	require.Empty(t, runs)

	valid := []byte(`{
		"action": "completed",
		"check_run": {"id": 7001, "name": "ci/test", "head_sha": "sha-1",
			"status": "completed", "conclusion": "failure"}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "check_run", valid))

	runs, err = store.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
		RepositoryID: testRepoID, HeadSha: "sha-1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "failure", runs[0].Conclusion.String)
}

func TestDispatchUnknownEventIsNoOp(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	require.NoError(t, Dispatch(context.Background(), store, testRepoID, "watch", []byte(`{}`)))
}

func TestDispatchMalformedPayloadIsNoOp(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	require.NoError(t, Dispatch(context.Background(), store, testRepoID, "issues", []byte(`{not json`)))
}

func TestDispatchPullRequestUpsert(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	payload := []byte(`{
		"action": "opened",
		"pull_request": {
			"id": 6001, "number": 2, "state": "open", "draft": false,
			"title": "Add feature",
			"user": {"id": 1002, "login": "prauthor"},
			"head": {"ref": "feature", "sha": "sha-head"},
			"base": {"ref": "main"},
			"requested_reviewers": [{"id": 1003, "login": "reviewer"}],
			"updated_at": "2026-02-18T11:00:00Z"
		}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "pull_request", payload))

	pr, err := store.GetPullRequest(ctx, db.GetPullRequestParams{RepositoryID: testRepoID, Number: 2})
	require.NoError(t, err)
	require.Equal(t, "open", pr.State)
	require.Equal(t, "sha-head", pr.HeadSha)
	require.Equal(t, []string{"reviewer"}, []string(pr.RequestedReviewerLogins))
}

func TestDispatchReviewReplaceOnExists(t *testing.T) {
	t.Parallel()

	store := db.NewMemStore()
	ctx := context.Background()

	submitted := []byte(`{
		"action": "submitted",
		"review": {"id": 8001, "state": "changes_requested", "commit_id": "sha-1",
			"user": {"id": 1003, "login": "reviewer"},
			"submitted_at": "2026-02-18T10:00:00Z"},
		"pull_request": {"id": 6001, "number": 2, "title": "Add feature",
			"updated_at": "2026-02-18T10:00:00Z"}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "pull_request_review", submitted))

	edited := []byte(`{
		"action": "edited",
		"review": {"id": 8001, "state": "approved", "commit_id": "sha-1",
			"user": {"id": 1003, "login": "reviewer"},
			"submitted_at": "2026-02-18T10:05:00Z"},
		"pull_request": {"id": 6001, "number": 2, "title": "Add feature",
			"updated_at": "2026-02-18T10:05:00Z"}
	}`)
	require.NoError(t, Dispatch(ctx, store, testRepoID, "pull_request_review", edited))

	reviews, err := store.ListReviewsForPullRequest(ctx, db.ListReviewsForPullRequestParams{
		RepositoryID: testRepoID, PullRequestNumber: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "approved", reviews[0].State)
}
