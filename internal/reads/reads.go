// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package reads is the bounded query surface over the mirrored state.
// Every read clamps its row count; nothing here can scan unbounded.
package reads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mindersec/ghmirror/internal/db"
)

const (
	// maxRepoList caps the repository overview listing.
	maxRepoList = 100
	// maxListRows caps per-repository list pages.
	maxListRows = 200
	// maxDetailComments caps comments returned on a detail read.
	maxDetailComments = 500
	// maxDetailReviews caps reviews returned on a detail read.
	maxDetailReviews = 200
	// maxDetailFiles caps cached diff files returned on a detail read.
	maxDetailFiles = 300
)

// ErrRepositoryNotFound is returned when a read names an unknown repository.
var ErrRepositoryNotFound = errors.New("repository not found")

// ErrEntityNotFound is returned when a detail read misses. Callers may
// trigger an on-demand sync and retry.
var ErrEntityNotFound = errors.New("entity not found")

// Reader serves the bounded read queries.
type Reader struct {
	store db.Store

	now func() time.Time
}

// NewReader creates a read query surface over the store.
func NewReader(store db.Store) *Reader {
	return &Reader{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Page is a cursor request for list reads. A nil Before starts from the
// newest row; Limit is clamped to the per-list bound.
type Page struct {
	Before *time.Time
	Limit  int32
}

func (p Page) cursor() sql.NullTime {
	if p.Before == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p.Before, Valid: true}
}

func clampLimit(limit, bound int32) int32 {
	if limit <= 0 || limit > bound {
		return bound
	}
	return limit
}

// RepoSummary pairs a repository with its overview projection. Overview
// is zero-valued until the first projection pass runs.
type RepoSummary struct {
	Repository db.Repository
	Overview   db.RepoOverview
}

// ListRepos returns up to 100 repositories with their overviews.
func (r *Reader) ListRepos(ctx context.Context) ([]RepoSummary, error) {
	repos, err := r.store.ListRepositories(ctx, maxRepoList)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	out := make([]RepoSummary, 0, len(repos))
	for _, repo := range repos {
		summary := RepoSummary{Repository: repo}
		overview, err := r.store.GetRepoOverview(ctx, repo.ID)
		if err == nil {
			summary.Overview = overview
		} else if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("loading overview for %d: %w", repo.ID, err)
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetRepo returns one repository with its overview.
func (r *Reader) GetRepo(ctx context.Context, repositoryID int64) (RepoSummary, error) {
	repo, err := r.store.GetRepository(ctx, repositoryID)
	if errors.Is(err, db.ErrNotFound) {
		return RepoSummary{}, ErrRepositoryNotFound
	}
	if err != nil {
		return RepoSummary{}, fmt.Errorf("loading repository: %w", err)
	}

	summary := RepoSummary{Repository: repo}
	overview, err := r.store.GetRepoOverview(ctx, repositoryID)
	if err == nil {
		summary.Overview = overview
	} else if !errors.Is(err, db.ErrNotFound) {
		return RepoSummary{}, fmt.Errorf("loading overview: %w", err)
	}
	return summary, nil
}

// ListPullRequests returns a page of the pull request list projection,
// newest activity first.
func (r *Reader) ListPullRequests(ctx context.Context, repositoryID int64, page Page) ([]db.RepoPullRequestListItem, error) {
	return r.store.ListRepoPullRequestList(ctx, db.ListRepoPullRequestListParams{
		RepositoryID: repositoryID,
		Before:       page.cursor(),
		Limit:        clampLimit(page.Limit, maxListRows),
	})
}

// ListIssues returns a page of the issue list projection.
func (r *Reader) ListIssues(ctx context.Context, repositoryID int64, page Page) ([]db.RepoIssueListItem, error) {
	return r.store.ListRepoIssueList(ctx, db.ListRepoIssueListParams{
		RepositoryID: repositoryID,
		Before:       page.cursor(),
		Limit:        clampLimit(page.Limit, maxListRows),
	})
}

// ListActivity returns a page of the activity feed, newest first.
func (r *Reader) ListActivity(ctx context.Context, repositoryID int64, page Page) ([]db.ActivityFeedEntry, error) {
	return r.store.ListActivityFeed(ctx, db.ListActivityFeedParams{
		RepositoryID: repositoryID,
		Before:       page.cursor(),
		Limit:        clampLimit(page.Limit, maxListRows),
	})
}

// ListBranches returns the branch heads of a repository.
func (r *Reader) ListBranches(ctx context.Context, repositoryID int64) ([]db.Branch, error) {
	return r.store.ListBranches(ctx, repositoryID)
}

// ListWorkflowRuns returns recent workflow runs for a repository.
func (r *Reader) ListWorkflowRuns(ctx context.Context, repositoryID int64, limit int32) ([]db.WorkflowRun, error) {
	return r.store.ListWorkflowRuns(ctx, db.ListWorkflowRunsParams{
		RepositoryID: repositoryID,
		Limit:        clampLimit(limit, maxListRows),
	})
}

// CommentView is a comment joined with its author.
type CommentView struct {
	Comment         db.IssueComment
	AuthorLogin     string
	AuthorAvatarURL string
}

// ReviewView is a review joined with its reviewer.
type ReviewView struct {
	Review            db.PullRequestReview
	ReviewerLogin     string
	ReviewerAvatarURL string
}

// PullRequestDetail is the full single-PR read shape.
type PullRequestDetail struct {
	PullRequest     db.PullRequest
	AuthorLogin     string
	AuthorAvatarURL string
	Comments        []CommentView
	Reviews         []ReviewView
	CheckRuns       []db.CheckRun
	Files           []db.PullRequestFile
}

// GetPullRequestDetail returns one pull request with comments, reviews,
// head check runs and the cached diff.
func (r *Reader) GetPullRequestDetail(ctx context.Context, repositoryID, number int64) (PullRequestDetail, error) {
	pr, err := r.store.GetPullRequest(ctx, db.GetPullRequestParams{
		RepositoryID: repositoryID,
		Number:       number,
	})
	if errors.Is(err, db.ErrNotFound) {
		return PullRequestDetail{}, fmt.Errorf("pull request %d: %w", number, ErrEntityNotFound)
	}
	if err != nil {
		return PullRequestDetail{}, fmt.Errorf("loading pull request: %w", err)
	}

	detail := PullRequestDetail{PullRequest: pr}
	detail.AuthorLogin, detail.AuthorAvatarURL = r.userRef(ctx, pr.AuthorUserID)

	comments, err := r.store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: repositoryID,
		IssueNumber:  number,
		Limit:        maxDetailComments,
	})
	if err != nil {
		return PullRequestDetail{}, fmt.Errorf("loading comments: %w", err)
	}
	detail.Comments = r.commentViews(ctx, comments)

	reviews, err := r.store.ListReviewsForPullRequest(ctx, db.ListReviewsForPullRequestParams{
		RepositoryID:      repositoryID,
		PullRequestNumber: number,
		Limit:             maxDetailReviews,
	})
	if err != nil {
		return PullRequestDetail{}, fmt.Errorf("loading reviews: %w", err)
	}
	for _, review := range reviews {
		view := ReviewView{Review: review}
		view.ReviewerLogin, view.ReviewerAvatarURL = r.userRef(ctx, review.ReviewerUserID)
		detail.Reviews = append(detail.Reviews, view)
	}

	if pr.HeadSha != "" {
		detail.CheckRuns, err = r.store.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
			RepositoryID: repositoryID,
			HeadSha:      pr.HeadSha,
		})
		if err != nil {
			return PullRequestDetail{}, fmt.Errorf("loading check runs: %w", err)
		}
	}

	detail.Files, err = r.store.ListPullRequestFiles(ctx, db.ListPullRequestFilesParams{
		RepositoryID:      repositoryID,
		PullRequestNumber: number,
		Limit:             maxDetailFiles,
	})
	if err != nil {
		return PullRequestDetail{}, fmt.Errorf("loading files: %w", err)
	}
	return detail, nil
}

// IssueDetail is the full single-issue read shape.
type IssueDetail struct {
	Issue           db.Issue
	AuthorLogin     string
	AuthorAvatarURL string
	Comments        []CommentView
}

// GetIssueDetail returns one issue with its comments.
func (r *Reader) GetIssueDetail(ctx context.Context, repositoryID, number int64) (IssueDetail, error) {
	issue, err := r.store.GetIssue(ctx, db.GetIssueParams{
		RepositoryID: repositoryID,
		Number:       number,
	})
	if errors.Is(err, db.ErrNotFound) {
		return IssueDetail{}, fmt.Errorf("issue %d: %w", number, ErrEntityNotFound)
	}
	if err != nil {
		return IssueDetail{}, fmt.Errorf("loading issue: %w", err)
	}

	detail := IssueDetail{Issue: issue}
	detail.AuthorLogin, detail.AuthorAvatarURL = r.userRef(ctx, issue.AuthorUserID)

	comments, err := r.store.ListCommentsForIssue(ctx, db.ListCommentsForIssueParams{
		RepositoryID: repositoryID,
		IssueNumber:  number,
		Limit:        maxDetailComments,
	})
	if err != nil {
		return IssueDetail{}, fmt.Errorf("loading comments: %w", err)
	}
	detail.Comments = r.commentViews(ctx, comments)
	return detail, nil
}

func (r *Reader) commentViews(ctx context.Context, comments []db.IssueComment) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		view := CommentView{Comment: comment}
		view.AuthorLogin, view.AuthorAvatarURL = r.userRef(ctx, comment.AuthorUserID)
		out = append(out, view)
	}
	return out
}

// userRef resolves a user id to login and avatar, empty when the user is
// unknown or the id is null.
func (r *Reader) userRef(ctx context.Context, userID sql.NullInt64) (string, string) {
	if !userID.Valid {
		return "", ""
	}
	user, err := r.store.GetUser(ctx, userID.Int64)
	if err != nil {
		return "", ""
	}
	return user.Login, user.AvatarURL
}
