// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const upsertRepoOverview = `
INSERT INTO repo_overviews (
    repository_id, open_pr_count, open_issue_count, failing_check_count,
    last_push_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (repository_id) DO UPDATE
SET open_pr_count = EXCLUDED.open_pr_count,
    open_issue_count = EXCLUDED.open_issue_count,
    failing_check_count = EXCLUDED.failing_check_count,
    last_push_at = EXCLUDED.last_push_at,
    updated_at = EXCLUDED.updated_at
`

// UpsertRepoOverviewParams are the parameters for UpsertRepoOverview.
type UpsertRepoOverviewParams struct {
	RepositoryID      int64
	OpenPrCount       int32
	OpenIssueCount    int32
	FailingCheckCount int32
	LastPushAt        sql.NullTime
	Now               time.Time
}

// UpsertRepoOverview replaces the overview projection row of a repository.
func (q *Queries) UpsertRepoOverview(ctx context.Context, arg UpsertRepoOverviewParams) error {
	_, err := q.db.ExecContext(ctx, upsertRepoOverview,
		arg.RepositoryID, arg.OpenPrCount, arg.OpenIssueCount,
		arg.FailingCheckCount, arg.LastPushAt, arg.Now)
	return err
}

const getRepoOverview = `
SELECT repository_id, open_pr_count, open_issue_count, failing_check_count,
       last_push_at, updated_at
FROM repo_overviews WHERE repository_id = $1
`

// GetRepoOverview fetches the overview projection of a repository.
func (q *Queries) GetRepoOverview(ctx context.Context, repositoryID int64) (RepoOverview, error) {
	var o RepoOverview
	err := q.db.QueryRowContext(ctx, getRepoOverview, repositoryID).Scan(
		&o.RepositoryID, &o.OpenPrCount, &o.OpenIssueCount, &o.FailingCheckCount,
		&o.LastPushAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RepoOverview{}, ErrNotFound
	}
	return o, err
}

const listRepoOverviews = `
SELECT repository_id, open_pr_count, open_issue_count, failing_check_count,
       last_push_at, updated_at
FROM repo_overviews
ORDER BY last_push_at DESC NULLS LAST
LIMIT $1
`

// ListRepoOverviews returns overview rows ordered by most recent push.
func (q *Queries) ListRepoOverviews(ctx context.Context, limit int32) ([]RepoOverview, error) {
	rows, err := q.db.QueryContext(ctx, listRepoOverviews, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RepoOverview
	for rows.Next() {
		var o RepoOverview
		if err := rows.Scan(
			&o.RepositoryID, &o.OpenPrCount, &o.OpenIssueCount,
			&o.FailingCheckCount, &o.LastPushAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const countRepoOverviews = `
SELECT COUNT(*) FROM repo_overviews
`

// CountRepoOverviews counts overview projection rows.
func (q *Queries) CountRepoOverviews(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRepoOverviews).Scan(&n)
	return n, err
}

const deleteRepoPullRequestList = `
DELETE FROM repo_pull_request_list WHERE repository_id = $1
`

// DeleteRepoPullRequestList clears the pull request list projection of a
// repository ahead of a full rewrite.
func (q *Queries) DeleteRepoPullRequestList(ctx context.Context, repositoryID int64) error {
	_, err := q.db.ExecContext(ctx, deleteRepoPullRequestList, repositoryID)
	return err
}

const insertRepoPullRequestListItem = `
INSERT INTO repo_pull_request_list (
    repository_id, number, title, state, is_draft, author_login,
    author_avatar_url, comment_count, review_count, last_check_conclusion,
    sort_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// InsertRepoPullRequestListItemParams are the parameters for InsertRepoPullRequestListItem.
type InsertRepoPullRequestListItemParams struct {
	RepositoryID        int64
	Number              int64
	Title               string
	State               string
	IsDraft             bool
	AuthorLogin         sql.NullString
	AuthorAvatarURL     sql.NullString
	CommentCount        int32
	ReviewCount         int32
	LastCheckConclusion sql.NullString
	SortUpdated         time.Time
}

// InsertRepoPullRequestListItem writes one denormalized pull request row.
func (q *Queries) InsertRepoPullRequestListItem(ctx context.Context, arg InsertRepoPullRequestListItemParams) error {
	_, err := q.db.ExecContext(ctx, insertRepoPullRequestListItem,
		arg.RepositoryID, arg.Number, arg.Title, arg.State, arg.IsDraft,
		arg.AuthorLogin, arg.AuthorAvatarURL, arg.CommentCount, arg.ReviewCount,
		arg.LastCheckConclusion, arg.SortUpdated)
	return err
}

const listRepoPullRequestList = `
SELECT repository_id, number, title, state, is_draft, author_login,
       author_avatar_url, comment_count, review_count, last_check_conclusion,
       sort_updated
FROM repo_pull_request_list
WHERE repository_id = $1 AND ($2::timestamptz IS NULL OR sort_updated < $2)
ORDER BY sort_updated DESC
LIMIT $3
`

// ListRepoPullRequestListParams are the parameters for ListRepoPullRequestList.
// Before is an exclusive cursor on sort_updated; a null cursor starts from
// the newest row.
type ListRepoPullRequestListParams struct {
	RepositoryID int64
	Before       sql.NullTime
	Limit        int32
}

// ListRepoPullRequestList returns a page of the pull request list projection.
func (q *Queries) ListRepoPullRequestList(ctx context.Context, arg ListRepoPullRequestListParams) ([]RepoPullRequestListItem, error) {
	rows, err := q.db.QueryContext(ctx, listRepoPullRequestList,
		arg.RepositoryID, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RepoPullRequestListItem
	for rows.Next() {
		var it RepoPullRequestListItem
		if err := rows.Scan(
			&it.RepositoryID, &it.Number, &it.Title, &it.State, &it.IsDraft,
			&it.AuthorLogin, &it.AuthorAvatarURL, &it.CommentCount, &it.ReviewCount,
			&it.LastCheckConclusion, &it.SortUpdated); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteRepoIssueList = `
DELETE FROM repo_issue_list WHERE repository_id = $1
`

// DeleteRepoIssueList clears the issue list projection of a repository.
func (q *Queries) DeleteRepoIssueList(ctx context.Context, repositoryID int64) error {
	_, err := q.db.ExecContext(ctx, deleteRepoIssueList, repositoryID)
	return err
}

const insertRepoIssueListItem = `
INSERT INTO repo_issue_list (
    repository_id, number, title, state, author_login, author_avatar_url,
    comment_count, label_names, sort_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// InsertRepoIssueListItemParams are the parameters for InsertRepoIssueListItem.
type InsertRepoIssueListItemParams struct {
	RepositoryID    int64
	Number          int64
	Title           string
	State           string
	AuthorLogin     sql.NullString
	AuthorAvatarURL sql.NullString
	CommentCount    int32
	LabelNames      []string
	SortUpdated     time.Time
}

// InsertRepoIssueListItem writes one denormalized issue row.
func (q *Queries) InsertRepoIssueListItem(ctx context.Context, arg InsertRepoIssueListItemParams) error {
	_, err := q.db.ExecContext(ctx, insertRepoIssueListItem,
		arg.RepositoryID, arg.Number, arg.Title, arg.State, arg.AuthorLogin,
		arg.AuthorAvatarURL, arg.CommentCount, pq.StringArray(arg.LabelNames),
		arg.SortUpdated)
	return err
}

const listRepoIssueList = `
SELECT repository_id, number, title, state, author_login, author_avatar_url,
       comment_count, label_names, sort_updated
FROM repo_issue_list
WHERE repository_id = $1 AND ($2::timestamptz IS NULL OR sort_updated < $2)
ORDER BY sort_updated DESC
LIMIT $3
`

// ListRepoIssueListParams are the parameters for ListRepoIssueList.
type ListRepoIssueListParams struct {
	RepositoryID int64
	Before       sql.NullTime
	Limit        int32
}

// ListRepoIssueList returns a page of the issue list projection.
func (q *Queries) ListRepoIssueList(ctx context.Context, arg ListRepoIssueListParams) ([]RepoIssueListItem, error) {
	rows, err := q.db.QueryContext(ctx, listRepoIssueList,
		arg.RepositoryID, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RepoIssueListItem
	for rows.Next() {
		var it RepoIssueListItem
		if err := rows.Scan(
			&it.RepositoryID, &it.Number, &it.Title, &it.State, &it.AuthorLogin,
			&it.AuthorAvatarURL, &it.CommentCount, &it.LabelNames, &it.SortUpdated); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const insertActivityFeedEntry = `
INSERT INTO activity_feed (
    id, repository_id, activity_type, title, description, actor_login,
    actor_avatar_url, entity_number, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// InsertActivityFeedEntryParams are the parameters for InsertActivityFeedEntry.
type InsertActivityFeedEntryParams struct {
	ID             uuid.UUID
	RepositoryID   int64
	ActivityType   string
	Title          string
	Description    sql.NullString
	ActorLogin     sql.NullString
	ActorAvatarURL sql.NullString
	EntityNumber   sql.NullInt64
	CreatedAt      time.Time
}

// InsertActivityFeedEntry appends one row to the activity feed.
func (q *Queries) InsertActivityFeedEntry(ctx context.Context, arg InsertActivityFeedEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertActivityFeedEntry,
		arg.ID, arg.RepositoryID, arg.ActivityType, arg.Title, arg.Description,
		arg.ActorLogin, arg.ActorAvatarURL, arg.EntityNumber, arg.CreatedAt)
	return err
}

const listActivityFeed = `
SELECT id, repository_id, activity_type, title, description, actor_login,
       actor_avatar_url, entity_number, created_at
FROM activity_feed
WHERE repository_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
ORDER BY created_at DESC
LIMIT $3
`

// ListActivityFeedParams are the parameters for ListActivityFeed.
type ListActivityFeedParams struct {
	RepositoryID int64
	Before       sql.NullTime
	Limit        int32
}

// ListActivityFeed returns a page of the activity feed, newest first.
func (q *Queries) ListActivityFeed(ctx context.Context, arg ListActivityFeedParams) ([]ActivityFeedEntry, error) {
	rows, err := q.db.QueryContext(ctx, listActivityFeed,
		arg.RepositoryID, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityFeedEntry
	for rows.Next() {
		var e ActivityFeedEntry
		if err := rows.Scan(
			&e.ID, &e.RepositoryID, &e.ActivityType, &e.Title, &e.Description,
			&e.ActorLogin, &e.ActorAvatarURL, &e.EntityNumber, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
