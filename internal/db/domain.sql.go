// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const upsertUser = `
INSERT INTO users (id, login, avatar_url, kind, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET login = EXCLUDED.login,
    avatar_url = EXCLUDED.avatar_url,
    kind = EXCLUDED.kind,
    updated_at = EXCLUDED.updated_at
`

// UpsertUserParams are the parameters for UpsertUser.
type UpsertUserParams struct {
	ID        int64
	Login     string
	AvatarURL string
	Kind      string
	Now       time.Time
}

// UpsertUser inserts or refreshes a GitHub user.
func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) error {
	_, err := q.db.ExecContext(ctx, upsertUser,
		arg.ID, arg.Login, arg.AvatarURL, arg.Kind, arg.Now)
	return err
}

const getUser = `
SELECT id, login, avatar_url, kind, updated_at FROM users WHERE id = $1
`

// GetUser fetches a user by its GitHub user id.
func (q *Queries) GetUser(ctx context.Context, userID int64) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUser, userID).Scan(
		&u.ID, &u.Login, &u.AvatarURL, &u.Kind, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const upsertBranch = `
INSERT INTO branches (repository_id, name, head_sha, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (repository_id, name) DO UPDATE
SET head_sha = EXCLUDED.head_sha,
    updated_at = EXCLUDED.updated_at
`

// UpsertBranchParams are the parameters for UpsertBranch.
type UpsertBranchParams struct {
	RepositoryID int64
	Name         string
	HeadSha      string
	Now          time.Time
}

// UpsertBranch inserts or moves a branch head.
func (q *Queries) UpsertBranch(ctx context.Context, arg UpsertBranchParams) error {
	_, err := q.db.ExecContext(ctx, upsertBranch,
		arg.RepositoryID, arg.Name, arg.HeadSha, arg.Now)
	return err
}

const insertBranchIfAbsent = `
INSERT INTO branches (repository_id, name, head_sha, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (repository_id, name) DO NOTHING
`

// InsertBranchIfAbsentParams are the parameters for InsertBranchIfAbsent.
type InsertBranchIfAbsentParams struct {
	RepositoryID int64
	Name         string
	HeadSha      string
	Now          time.Time
}

// InsertBranchIfAbsent creates a branch only when no row exists. Used by the
// create event, whose payload has no head SHA; the next push fills it.
func (q *Queries) InsertBranchIfAbsent(ctx context.Context, arg InsertBranchIfAbsentParams) error {
	_, err := q.db.ExecContext(ctx, insertBranchIfAbsent,
		arg.RepositoryID, arg.Name, arg.HeadSha, arg.Now)
	return err
}

const getBranch = `
SELECT repository_id, name, head_sha, updated_at
FROM branches WHERE repository_id = $1 AND name = $2
`

// GetBranchParams are the parameters for GetBranch.
type GetBranchParams struct {
	RepositoryID int64
	Name         string
}

// GetBranch fetches a branch by name.
func (q *Queries) GetBranch(ctx context.Context, arg GetBranchParams) (Branch, error) {
	var b Branch
	err := q.db.QueryRowContext(ctx, getBranch, arg.RepositoryID, arg.Name).Scan(
		&b.RepositoryID, &b.Name, &b.HeadSha, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Branch{}, ErrNotFound
	}
	return b, err
}

const deleteBranch = `
DELETE FROM branches WHERE repository_id = $1 AND name = $2
`

// DeleteBranchParams are the parameters for DeleteBranch.
type DeleteBranchParams struct {
	RepositoryID int64
	Name         string
}

// DeleteBranch removes a branch row if present.
func (q *Queries) DeleteBranch(ctx context.Context, arg DeleteBranchParams) error {
	_, err := q.db.ExecContext(ctx, deleteBranch, arg.RepositoryID, arg.Name)
	return err
}

const listBranches = `
SELECT repository_id, name, head_sha, updated_at
FROM branches WHERE repository_id = $1
ORDER BY name
`

// ListBranches returns all branches of a repository.
func (q *Queries) ListBranches(ctx context.Context, repositoryID int64) ([]Branch, error) {
	rows, err := q.db.QueryContext(ctx, listBranches, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.RepositoryID, &b.Name, &b.HeadSha, &b.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const insertCommitIfAbsent = `
INSERT INTO commits (
    repository_id, sha, message_headline, author_user_id, committer_user_id,
    authored_at, committed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (repository_id, sha) DO NOTHING
`

// InsertCommitIfAbsentParams are the parameters for InsertCommitIfAbsent.
type InsertCommitIfAbsentParams struct {
	RepositoryID    int64
	Sha             string
	MessageHeadline string
	AuthorUserID    sql.NullInt64
	CommitterUserID sql.NullInt64
	AuthoredAt      sql.NullTime
	CommittedAt     sql.NullTime
}

// InsertCommitIfAbsent records a commit; commits are immutable so existing
// rows are never touched.
func (q *Queries) InsertCommitIfAbsent(ctx context.Context, arg InsertCommitIfAbsentParams) error {
	_, err := q.db.ExecContext(ctx, insertCommitIfAbsent,
		arg.RepositoryID, arg.Sha, arg.MessageHeadline, arg.AuthorUserID,
		arg.CommitterUserID, arg.AuthoredAt, arg.CommittedAt)
	return err
}

const getCommit = `
SELECT repository_id, sha, message_headline, author_user_id, committer_user_id,
       authored_at, committed_at
FROM commits WHERE repository_id = $1 AND sha = $2
`

// GetCommitParams are the parameters for GetCommit.
type GetCommitParams struct {
	RepositoryID int64
	Sha          string
}

// GetCommit fetches a commit by SHA.
func (q *Queries) GetCommit(ctx context.Context, arg GetCommitParams) (Commit, error) {
	var c Commit
	err := q.db.QueryRowContext(ctx, getCommit, arg.RepositoryID, arg.Sha).Scan(
		&c.RepositoryID, &c.Sha, &c.MessageHeadline, &c.AuthorUserID,
		&c.CommitterUserID, &c.AuthoredAt, &c.CommittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Commit{}, ErrNotFound
	}
	return c, err
}

const upsertPullRequest = `
INSERT INTO pull_requests (
    repository_id, number, github_pr_id, state, is_draft, title, body,
    author_user_id, head_ref, head_sha, base_ref, assignee_logins,
    requested_reviewer_logins, mergeable_state, comment_count, review_count,
    merged_at, closed_at, github_updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (repository_id, number) DO UPDATE
SET github_pr_id = EXCLUDED.github_pr_id,
    state = EXCLUDED.state,
    is_draft = EXCLUDED.is_draft,
    title = EXCLUDED.title,
    body = EXCLUDED.body,
    author_user_id = EXCLUDED.author_user_id,
    head_ref = EXCLUDED.head_ref,
    head_sha = EXCLUDED.head_sha,
    base_ref = EXCLUDED.base_ref,
    assignee_logins = EXCLUDED.assignee_logins,
    requested_reviewer_logins = EXCLUDED.requested_reviewer_logins,
    mergeable_state = EXCLUDED.mergeable_state,
    comment_count = EXCLUDED.comment_count,
    review_count = EXCLUDED.review_count,
    merged_at = EXCLUDED.merged_at,
    closed_at = EXCLUDED.closed_at,
    github_updated_at = EXCLUDED.github_updated_at
WHERE pull_requests.github_updated_at <= EXCLUDED.github_updated_at
`

// UpsertPullRequestParams are the parameters for UpsertPullRequest.
type UpsertPullRequestParams struct {
	RepositoryID            int64
	Number                  int64
	GithubPrID              int64
	State                   string
	IsDraft                 bool
	Title                   string
	Body                    sql.NullString
	AuthorUserID            sql.NullInt64
	HeadRef                 string
	HeadSha                 string
	BaseRef                 string
	AssigneeLogins          []string
	RequestedReviewerLogins []string
	MergeableState          sql.NullString
	CommentCount            int32
	ReviewCount             int32
	MergedAt                sql.NullTime
	ClosedAt                sql.NullTime
	GithubUpdatedAt         time.Time
}

// UpsertPullRequest inserts or replaces a pull request. The WHERE clause on
// the conflict update is the out-of-order guard: an event older than the
// stored github_updated_at is dropped. The bool reports whether the write
// was applied.
func (q *Queries) UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, upsertPullRequest,
		arg.RepositoryID, arg.Number, arg.GithubPrID, arg.State, arg.IsDraft,
		arg.Title, arg.Body, arg.AuthorUserID, arg.HeadRef, arg.HeadSha,
		arg.BaseRef, pq.StringArray(arg.AssigneeLogins),
		pq.StringArray(arg.RequestedReviewerLogins), arg.MergeableState,
		arg.CommentCount, arg.ReviewCount, arg.MergedAt, arg.ClosedAt,
		arg.GithubUpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const getPullRequest = `
SELECT repository_id, number, github_pr_id, state, is_draft, title, body,
       author_user_id, head_ref, head_sha, base_ref, assignee_logins,
       requested_reviewer_logins, mergeable_state, comment_count, review_count,
       merged_at, closed_at, github_updated_at
FROM pull_requests WHERE repository_id = $1 AND number = $2
`

// GetPullRequestParams are the parameters for GetPullRequest.
type GetPullRequestParams struct {
	RepositoryID int64
	Number       int64
}

// GetPullRequest fetches a pull request by number.
func (q *Queries) GetPullRequest(ctx context.Context, arg GetPullRequestParams) (PullRequest, error) {
	row := q.db.QueryRowContext(ctx, getPullRequest, arg.RepositoryID, arg.Number)
	var p PullRequest
	err := row.Scan(
		&p.RepositoryID, &p.Number, &p.GithubPrID, &p.State, &p.IsDraft, &p.Title,
		&p.Body, &p.AuthorUserID, &p.HeadRef, &p.HeadSha, &p.BaseRef,
		&p.AssigneeLogins, &p.RequestedReviewerLogins, &p.MergeableState,
		&p.CommentCount, &p.ReviewCount, &p.MergedAt, &p.ClosedAt, &p.GithubUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PullRequest{}, ErrNotFound
	}
	return p, err
}

const listPullRequests = `
SELECT repository_id, number, github_pr_id, state, is_draft, title, body,
       author_user_id, head_ref, head_sha, base_ref, assignee_logins,
       requested_reviewer_logins, mergeable_state, comment_count, review_count,
       merged_at, closed_at, github_updated_at
FROM pull_requests WHERE repository_id = $1
ORDER BY github_updated_at DESC
`

// ListPullRequests returns all pull requests of a repository, newest first.
func (q *Queries) ListPullRequests(ctx context.Context, repositoryID int64) ([]PullRequest, error) {
	rows, err := q.db.QueryContext(ctx, listPullRequests, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPullRequests(rows)
}

const listOpenPullRequests = `
SELECT repository_id, number, github_pr_id, state, is_draft, title, body,
       author_user_id, head_ref, head_sha, base_ref, assignee_logins,
       requested_reviewer_logins, mergeable_state, comment_count, review_count,
       merged_at, closed_at, github_updated_at
FROM pull_requests WHERE repository_id = $1 AND state = 'open'
ORDER BY github_updated_at DESC
`

// ListOpenPullRequests returns the open pull requests of a repository.
func (q *Queries) ListOpenPullRequests(ctx context.Context, repositoryID int64) ([]PullRequest, error) {
	rows, err := q.db.QueryContext(ctx, listOpenPullRequests, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPullRequests(rows)
}

func scanPullRequests(rows *sql.Rows) ([]PullRequest, error) {
	var items []PullRequest
	for rows.Next() {
		var p PullRequest
		if err := rows.Scan(
			&p.RepositoryID, &p.Number, &p.GithubPrID, &p.State, &p.IsDraft, &p.Title,
			&p.Body, &p.AuthorUserID, &p.HeadRef, &p.HeadSha, &p.BaseRef,
			&p.AssigneeLogins, &p.RequestedReviewerLogins, &p.MergeableState,
			&p.CommentCount, &p.ReviewCount, &p.MergedAt, &p.ClosedAt, &p.GithubUpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const upsertPullRequestReview = `
INSERT INTO pull_request_reviews (
    repository_id, github_review_id, pull_request_number, reviewer_user_id,
    state, commit_sha, submitted_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (repository_id, github_review_id) DO UPDATE
SET pull_request_number = EXCLUDED.pull_request_number,
    reviewer_user_id = EXCLUDED.reviewer_user_id,
    state = EXCLUDED.state,
    commit_sha = EXCLUDED.commit_sha,
    submitted_at = EXCLUDED.submitted_at
`

// UpsertPullRequestReviewParams are the parameters for UpsertPullRequestReview.
type UpsertPullRequestReviewParams struct {
	RepositoryID      int64
	GithubReviewID    int64
	PullRequestNumber int64
	ReviewerUserID    sql.NullInt64
	State             string
	CommitSha         string
	SubmittedAt       sql.NullTime
}

// UpsertPullRequestReview replaces a review keyed by its immutable review id.
func (q *Queries) UpsertPullRequestReview(ctx context.Context, arg UpsertPullRequestReviewParams) error {
	_, err := q.db.ExecContext(ctx, upsertPullRequestReview,
		arg.RepositoryID, arg.GithubReviewID, arg.PullRequestNumber,
		arg.ReviewerUserID, arg.State, arg.CommitSha, arg.SubmittedAt)
	return err
}

const listReviewsForPullRequest = `
SELECT repository_id, github_review_id, pull_request_number, reviewer_user_id,
       state, commit_sha, submitted_at
FROM pull_request_reviews
WHERE repository_id = $1 AND pull_request_number = $2
ORDER BY submitted_at
LIMIT $3
`

// ListReviewsForPullRequestParams are the parameters for ListReviewsForPullRequest.
type ListReviewsForPullRequestParams struct {
	RepositoryID      int64
	PullRequestNumber int64
	Limit             int32
}

// ListReviewsForPullRequest returns the reviews of a pull request.
func (q *Queries) ListReviewsForPullRequest(ctx context.Context, arg ListReviewsForPullRequestParams) ([]PullRequestReview, error) {
	rows, err := q.db.QueryContext(ctx, listReviewsForPullRequest,
		arg.RepositoryID, arg.PullRequestNumber, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PullRequestReview
	for rows.Next() {
		var r PullRequestReview
		if err := rows.Scan(
			&r.RepositoryID, &r.GithubReviewID, &r.PullRequestNumber,
			&r.ReviewerUserID, &r.State, &r.CommitSha, &r.SubmittedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countReviewsForPullRequest = `
SELECT COUNT(*) FROM pull_request_reviews
WHERE repository_id = $1 AND pull_request_number = $2
`

// CountReviewsForPullRequestParams are the parameters for CountReviewsForPullRequest.
type CountReviewsForPullRequestParams struct {
	RepositoryID      int64
	PullRequestNumber int64
}

// CountReviewsForPullRequest counts the reviews of a pull request.
func (q *Queries) CountReviewsForPullRequest(ctx context.Context, arg CountReviewsForPullRequestParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReviewsForPullRequest,
		arg.RepositoryID, arg.PullRequestNumber).Scan(&n)
	return n, err
}

const upsertIssue = `
INSERT INTO issues (
    repository_id, number, github_issue_id, state, title, body, label_names,
    assignee_logins, author_user_id, is_pull_request, comment_count,
    closed_at, github_updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (repository_id, number) DO UPDATE
SET github_issue_id = EXCLUDED.github_issue_id,
    state = EXCLUDED.state,
    title = EXCLUDED.title,
    body = EXCLUDED.body,
    label_names = EXCLUDED.label_names,
    assignee_logins = EXCLUDED.assignee_logins,
    author_user_id = EXCLUDED.author_user_id,
    is_pull_request = EXCLUDED.is_pull_request,
    comment_count = EXCLUDED.comment_count,
    closed_at = EXCLUDED.closed_at,
    github_updated_at = EXCLUDED.github_updated_at
WHERE issues.github_updated_at <= EXCLUDED.github_updated_at
`

// UpsertIssueParams are the parameters for UpsertIssue.
type UpsertIssueParams struct {
	RepositoryID    int64
	Number          int64
	GithubIssueID   int64
	State           string
	Title           string
	Body            sql.NullString
	LabelNames      []string
	AssigneeLogins  []string
	AuthorUserID    sql.NullInt64
	IsPullRequest   bool
	CommentCount    int32
	ClosedAt        sql.NullTime
	GithubUpdatedAt time.Time
}

// UpsertIssue inserts or replaces an issue under the out-of-order guard,
// mirroring UpsertPullRequest.
func (q *Queries) UpsertIssue(ctx context.Context, arg UpsertIssueParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, upsertIssue,
		arg.RepositoryID, arg.Number, arg.GithubIssueID, arg.State, arg.Title,
		arg.Body, pq.StringArray(arg.LabelNames), pq.StringArray(arg.AssigneeLogins),
		arg.AuthorUserID, arg.IsPullRequest, arg.CommentCount, arg.ClosedAt,
		arg.GithubUpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const getIssue = `
SELECT repository_id, number, github_issue_id, state, title, body, label_names,
       assignee_logins, author_user_id, is_pull_request, comment_count,
       closed_at, github_updated_at
FROM issues WHERE repository_id = $1 AND number = $2
`

// GetIssueParams are the parameters for GetIssue.
type GetIssueParams struct {
	RepositoryID int64
	Number       int64
}

// GetIssue fetches an issue by number.
func (q *Queries) GetIssue(ctx context.Context, arg GetIssueParams) (Issue, error) {
	row := q.db.QueryRowContext(ctx, getIssue, arg.RepositoryID, arg.Number)
	var i Issue
	err := row.Scan(
		&i.RepositoryID, &i.Number, &i.GithubIssueID, &i.State, &i.Title, &i.Body,
		&i.LabelNames, &i.AssigneeLogins, &i.AuthorUserID, &i.IsPullRequest,
		&i.CommentCount, &i.ClosedAt, &i.GithubUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Issue{}, ErrNotFound
	}
	return i, err
}

const listIssues = `
SELECT repository_id, number, github_issue_id, state, title, body, label_names,
       assignee_logins, author_user_id, is_pull_request, comment_count,
       closed_at, github_updated_at
FROM issues WHERE repository_id = $1
ORDER BY github_updated_at DESC
`

// ListIssues returns all issues of a repository, newest first.
func (q *Queries) ListIssues(ctx context.Context, repositoryID int64) ([]Issue, error) {
	rows, err := q.db.QueryContext(ctx, listIssues, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Issue
	for rows.Next() {
		var i Issue
		if err := rows.Scan(
			&i.RepositoryID, &i.Number, &i.GithubIssueID, &i.State, &i.Title, &i.Body,
			&i.LabelNames, &i.AssigneeLogins, &i.AuthorUserID, &i.IsPullRequest,
			&i.CommentCount, &i.ClosedAt, &i.GithubUpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertIssueComment = `
INSERT INTO issue_comments (
    repository_id, github_comment_id, issue_number, author_user_id, body,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (repository_id, github_comment_id) DO UPDATE
SET issue_number = EXCLUDED.issue_number,
    author_user_id = EXCLUDED.author_user_id,
    body = EXCLUDED.body,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at
`

// UpsertIssueCommentParams are the parameters for UpsertIssueComment.
type UpsertIssueCommentParams struct {
	RepositoryID    int64
	GithubCommentID int64
	IssueNumber     int64
	AuthorUserID    sql.NullInt64
	Body            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpsertIssueComment replaces a comment keyed by its immutable comment id.
func (q *Queries) UpsertIssueComment(ctx context.Context, arg UpsertIssueCommentParams) error {
	_, err := q.db.ExecContext(ctx, upsertIssueComment,
		arg.RepositoryID, arg.GithubCommentID, arg.IssueNumber, arg.AuthorUserID,
		arg.Body, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const deleteIssueComment = `
DELETE FROM issue_comments WHERE repository_id = $1 AND github_comment_id = $2
`

// DeleteIssueCommentParams are the parameters for DeleteIssueComment.
type DeleteIssueCommentParams struct {
	RepositoryID    int64
	GithubCommentID int64
}

// DeleteIssueComment removes a comment row if present.
func (q *Queries) DeleteIssueComment(ctx context.Context, arg DeleteIssueCommentParams) error {
	_, err := q.db.ExecContext(ctx, deleteIssueComment,
		arg.RepositoryID, arg.GithubCommentID)
	return err
}

const listCommentsForIssue = `
SELECT repository_id, github_comment_id, issue_number, author_user_id, body,
       created_at, updated_at
FROM issue_comments
WHERE repository_id = $1 AND issue_number = $2
ORDER BY created_at
LIMIT $3
`

// ListCommentsForIssueParams are the parameters for ListCommentsForIssue.
type ListCommentsForIssueParams struct {
	RepositoryID int64
	IssueNumber  int64
	Limit        int32
}

// ListCommentsForIssue returns the comments of an issue in creation order.
func (q *Queries) ListCommentsForIssue(ctx context.Context, arg ListCommentsForIssueParams) ([]IssueComment, error) {
	rows, err := q.db.QueryContext(ctx, listCommentsForIssue,
		arg.RepositoryID, arg.IssueNumber, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []IssueComment
	for rows.Next() {
		var c IssueComment
		if err := rows.Scan(
			&c.RepositoryID, &c.GithubCommentID, &c.IssueNumber, &c.AuthorUserID,
			&c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countCommentsForIssue = `
SELECT COUNT(*) FROM issue_comments
WHERE repository_id = $1 AND issue_number = $2
`

// CountCommentsForIssueParams are the parameters for CountCommentsForIssue.
type CountCommentsForIssueParams struct {
	RepositoryID int64
	IssueNumber  int64
}

// CountCommentsForIssue counts the comments of an issue.
func (q *Queries) CountCommentsForIssue(ctx context.Context, arg CountCommentsForIssueParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCommentsForIssue,
		arg.RepositoryID, arg.IssueNumber).Scan(&n)
	return n, err
}

const upsertCheckRun = `
INSERT INTO check_runs (
    repository_id, github_check_run_id, name, head_sha, status, conclusion,
    started_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (repository_id, github_check_run_id) DO UPDATE
SET name = EXCLUDED.name,
    head_sha = EXCLUDED.head_sha,
    status = EXCLUDED.status,
    conclusion = EXCLUDED.conclusion,
    started_at = EXCLUDED.started_at,
    completed_at = EXCLUDED.completed_at
`

// UpsertCheckRunParams are the parameters for UpsertCheckRun.
type UpsertCheckRunParams struct {
	RepositoryID     int64
	GithubCheckRunID int64
	Name             string
	HeadSha          string
	Status           string
	Conclusion       sql.NullString
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
}

// UpsertCheckRun replaces a check run keyed by its immutable check run id.
func (q *Queries) UpsertCheckRun(ctx context.Context, arg UpsertCheckRunParams) error {
	_, err := q.db.ExecContext(ctx, upsertCheckRun,
		arg.RepositoryID, arg.GithubCheckRunID, arg.Name, arg.HeadSha,
		arg.Status, arg.Conclusion, arg.StartedAt, arg.CompletedAt)
	return err
}

const listCheckRunsForSha = `
SELECT repository_id, github_check_run_id, name, head_sha, status, conclusion,
       started_at, completed_at
FROM check_runs
WHERE repository_id = $1 AND head_sha = $2
ORDER BY started_at DESC NULLS LAST
`

// ListCheckRunsForShaParams are the parameters for ListCheckRunsForSha.
type ListCheckRunsForShaParams struct {
	RepositoryID int64
	HeadSha      string
}

// ListCheckRunsForSha returns the check runs attached to a SHA, most recent
// first.
func (q *Queries) ListCheckRunsForSha(ctx context.Context, arg ListCheckRunsForShaParams) ([]CheckRun, error) {
	rows, err := q.db.QueryContext(ctx, listCheckRunsForSha, arg.RepositoryID, arg.HeadSha)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CheckRun
	for rows.Next() {
		var c CheckRun
		if err := rows.Scan(
			&c.RepositoryID, &c.GithubCheckRunID, &c.Name, &c.HeadSha,
			&c.Status, &c.Conclusion, &c.StartedAt, &c.CompletedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countFailingCheckRuns = `
SELECT COUNT(*) FROM check_runs
WHERE repository_id = $1 AND conclusion = 'failure'
`

// CountFailingCheckRuns counts check runs that concluded with failure.
func (q *Queries) CountFailingCheckRuns(ctx context.Context, repositoryID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countFailingCheckRuns, repositoryID).Scan(&n)
	return n, err
}

const upsertPullRequestFile = `
INSERT INTO pull_request_files (
    repository_id, pull_request_number, filename, status, additions,
    deletions, changes, patch, head_sha, cached_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (repository_id, pull_request_number, filename) DO UPDATE
SET status = EXCLUDED.status,
    additions = EXCLUDED.additions,
    deletions = EXCLUDED.deletions,
    changes = EXCLUDED.changes,
    patch = EXCLUDED.patch,
    head_sha = EXCLUDED.head_sha,
    cached_at = EXCLUDED.cached_at
`

// UpsertPullRequestFileParams are the parameters for UpsertPullRequestFile.
type UpsertPullRequestFileParams struct {
	RepositoryID      int64
	PullRequestNumber int64
	Filename          string
	Status            string
	Additions         int32
	Deletions         int32
	Changes           int32
	Patch             sql.NullString
	HeadSha           string
	CachedAt          time.Time
}

// UpsertPullRequestFile replaces one file of a pull request diff, stamping
// the head SHA it was fetched at.
func (q *Queries) UpsertPullRequestFile(ctx context.Context, arg UpsertPullRequestFileParams) error {
	_, err := q.db.ExecContext(ctx, upsertPullRequestFile,
		arg.RepositoryID, arg.PullRequestNumber, arg.Filename, arg.Status,
		arg.Additions, arg.Deletions, arg.Changes, arg.Patch, arg.HeadSha,
		arg.CachedAt)
	return err
}

const listPullRequestFiles = `
SELECT repository_id, pull_request_number, filename, status, additions,
       deletions, changes, patch, head_sha, cached_at
FROM pull_request_files
WHERE repository_id = $1 AND pull_request_number = $2
ORDER BY filename
LIMIT $3
`

// ListPullRequestFilesParams are the parameters for ListPullRequestFiles.
type ListPullRequestFilesParams struct {
	RepositoryID      int64
	PullRequestNumber int64
	Limit             int32
}

// ListPullRequestFiles returns the cached diff files of a pull request.
func (q *Queries) ListPullRequestFiles(ctx context.Context, arg ListPullRequestFilesParams) ([]PullRequestFile, error) {
	rows, err := q.db.QueryContext(ctx, listPullRequestFiles,
		arg.RepositoryID, arg.PullRequestNumber, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PullRequestFile
	for rows.Next() {
		var f PullRequestFile
		if err := rows.Scan(
			&f.RepositoryID, &f.PullRequestNumber, &f.Filename, &f.Status,
			&f.Additions, &f.Deletions, &f.Changes, &f.Patch, &f.HeadSha,
			&f.CachedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

const upsertWorkflowRun = `
INSERT INTO workflow_runs (
    repository_id, github_run_id, name, head_branch, head_sha, status,
    conclusion, run_number, github_updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (repository_id, github_run_id) DO UPDATE
SET name = EXCLUDED.name,
    head_branch = EXCLUDED.head_branch,
    head_sha = EXCLUDED.head_sha,
    status = EXCLUDED.status,
    conclusion = EXCLUDED.conclusion,
    run_number = EXCLUDED.run_number,
    github_updated_at = EXCLUDED.github_updated_at
`

// UpsertWorkflowRunParams are the parameters for UpsertWorkflowRun.
type UpsertWorkflowRunParams struct {
	RepositoryID    int64
	GithubRunID     int64
	Name            string
	HeadBranch      string
	HeadSha         string
	Status          string
	Conclusion      sql.NullString
	RunNumber       int32
	GithubUpdatedAt sql.NullTime
}

// UpsertWorkflowRun replaces a workflow run keyed by its immutable run id.
func (q *Queries) UpsertWorkflowRun(ctx context.Context, arg UpsertWorkflowRunParams) error {
	_, err := q.db.ExecContext(ctx, upsertWorkflowRun,
		arg.RepositoryID, arg.GithubRunID, arg.Name, arg.HeadBranch, arg.HeadSha,
		arg.Status, arg.Conclusion, arg.RunNumber, arg.GithubUpdatedAt)
	return err
}

const upsertWorkflowJob = `
INSERT INTO workflow_jobs (
    repository_id, github_job_id, github_run_id, name, status, conclusion,
    started_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (repository_id, github_job_id) DO UPDATE
SET github_run_id = EXCLUDED.github_run_id,
    name = EXCLUDED.name,
    status = EXCLUDED.status,
    conclusion = EXCLUDED.conclusion,
    started_at = EXCLUDED.started_at,
    completed_at = EXCLUDED.completed_at
`

// UpsertWorkflowJobParams are the parameters for UpsertWorkflowJob.
type UpsertWorkflowJobParams struct {
	RepositoryID int64
	GithubJobID  int64
	GithubRunID  int64
	Name         string
	Status       string
	Conclusion   sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// UpsertWorkflowJob replaces a workflow job keyed by its immutable job id.
func (q *Queries) UpsertWorkflowJob(ctx context.Context, arg UpsertWorkflowJobParams) error {
	_, err := q.db.ExecContext(ctx, upsertWorkflowJob,
		arg.RepositoryID, arg.GithubJobID, arg.GithubRunID, arg.Name,
		arg.Status, arg.Conclusion, arg.StartedAt, arg.CompletedAt)
	return err
}

const listWorkflowRuns = `
SELECT repository_id, github_run_id, name, head_branch, head_sha, status,
       conclusion, run_number, github_updated_at
FROM workflow_runs
WHERE repository_id = $1
ORDER BY github_run_id DESC
LIMIT $2
`

// ListWorkflowRunsParams are the parameters for ListWorkflowRuns.
type ListWorkflowRunsParams struct {
	RepositoryID int64
	Limit        int32
}

// ListWorkflowRuns returns the most recent workflow runs of a repository.
func (q *Queries) ListWorkflowRuns(ctx context.Context, arg ListWorkflowRunsParams) ([]WorkflowRun, error) {
	rows, err := q.db.QueryContext(ctx, listWorkflowRuns, arg.RepositoryID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkflowRun
	for rows.Next() {
		var w WorkflowRun
		if err := rows.Scan(
			&w.RepositoryID, &w.GithubRunID, &w.Name, &w.HeadBranch, &w.HeadSha,
			&w.Status, &w.Conclusion, &w.RunNumber, &w.GithubUpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}
