// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package projections maintains the denormalized read views. Every
// projection row is a pure function of the normalized domain state, so
// recomputation is idempotent and converges no matter how often it runs.
package projections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
)

// Maintainer recomputes projection rows from normalized state.
type Maintainer struct {
	store db.Store
}

// NewMaintainer creates a projection maintainer over the given store.
func NewMaintainer(store db.Store) *Maintainer {
	return &Maintainer{store: store}
}

// UpdateAllProjections recomputes the overview, pull request list and
// issue list projections of one repository. The list projections are a
// full delete and rewrite inside one transaction.
func (m *Maintainer) UpdateAllProjections(ctx context.Context, repositoryID int64) error {
	return m.store.WithTransaction(ctx, func(qtx db.Querier) error {
		if err := updateOverview(ctx, qtx, repositoryID); err != nil {
			return fmt.Errorf("updating overview: %w", err)
		}
		if err := rewritePullRequestList(ctx, qtx, repositoryID); err != nil {
			return fmt.Errorf("rewriting pull request list: %w", err)
		}
		if err := rewriteIssueList(ctx, qtx, repositoryID); err != nil {
			return fmt.Errorf("rewriting issue list: %w", err)
		}
		return nil
	})
}

// RepairAll recomputes projections for every known repository. It backs
// the slow-cadence repair schedule that heals drift.
func (m *Maintainer) RepairAll(ctx context.Context) error {
	repos, err := m.store.ListRepositories(ctx, 100)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}

	for _, repo := range repos {
		if err := m.UpdateAllProjections(ctx, repo.ID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Int64("repository", repo.ID).
				Msg("projection repair failed for repository")
		}
	}
	return nil
}

func updateOverview(ctx context.Context, qtx db.Querier, repositoryID int64) error {
	openPrs, err := qtx.ListOpenPullRequests(ctx, repositoryID)
	if err != nil {
		return err
	}

	issues, err := qtx.ListIssues(ctx, repositoryID)
	if err != nil {
		return err
	}
	var openIssues int32
	for _, issue := range issues {
		if issue.State == "open" && !issue.IsPullRequest {
			openIssues++
		}
	}

	failing, err := qtx.CountFailingCheckRuns(ctx, repositoryID)
	if err != nil {
		return err
	}

	lastPush, err := lastPushAt(ctx, qtx, repositoryID)
	if err != nil {
		return err
	}

	return qtx.UpsertRepoOverview(ctx, db.UpsertRepoOverviewParams{
		RepositoryID:      repositoryID,
		OpenPrCount:       int32(len(openPrs)),
		OpenIssueCount:    openIssues,
		FailingCheckCount: int32(failing),
		LastPushAt:        lastPush,
		Now:               time.Now().UTC(),
	})
}

// lastPushAt is the most recent branch movement, falling back to the
// repository's own pushed_at from bootstrap.
func lastPushAt(ctx context.Context, qtx db.Querier, repositoryID int64) (sql.NullTime, error) {
	var last sql.NullTime

	repo, err := qtx.GetRepository(ctx, repositoryID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return sql.NullTime{}, err
	}
	if err == nil && repo.PushedAt.Valid {
		last = repo.PushedAt
	}

	branches, err := qtx.ListBranches(ctx, repositoryID)
	if err != nil {
		return sql.NullTime{}, err
	}
	for _, branch := range branches {
		if !last.Valid || branch.UpdatedAt.After(last.Time) {
			last = sql.NullTime{Time: branch.UpdatedAt, Valid: true}
		}
	}
	return last, nil
}

func rewritePullRequestList(ctx context.Context, qtx db.Querier, repositoryID int64) error {
	prs, err := qtx.ListPullRequests(ctx, repositoryID)
	if err != nil {
		return err
	}

	if err := qtx.DeleteRepoPullRequestList(ctx, repositoryID); err != nil {
		return err
	}

	for _, pr := range prs {
		authorLogin, authorAvatar, err := authorInfo(ctx, qtx, pr.AuthorUserID)
		if err != nil {
			return err
		}

		lastCheck, err := lastCheckConclusion(ctx, qtx, repositoryID, pr.HeadSha)
		if err != nil {
			return err
		}

		err = qtx.InsertRepoPullRequestListItem(ctx, db.InsertRepoPullRequestListItemParams{
			RepositoryID:        repositoryID,
			Number:              pr.Number,
			Title:               pr.Title,
			State:               pr.State,
			IsDraft:             pr.IsDraft,
			AuthorLogin:         authorLogin,
			AuthorAvatarURL:     authorAvatar,
			CommentCount:        pr.CommentCount,
			ReviewCount:         pr.ReviewCount,
			LastCheckConclusion: lastCheck,
			SortUpdated:         pr.GithubUpdatedAt,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func rewriteIssueList(ctx context.Context, qtx db.Querier, repositoryID int64) error {
	issues, err := qtx.ListIssues(ctx, repositoryID)
	if err != nil {
		return err
	}

	if err := qtx.DeleteRepoIssueList(ctx, repositoryID); err != nil {
		return err
	}

	for _, issue := range issues {
		if issue.IsPullRequest {
			continue
		}

		authorLogin, authorAvatar, err := authorInfo(ctx, qtx, issue.AuthorUserID)
		if err != nil {
			return err
		}

		err = qtx.InsertRepoIssueListItem(ctx, db.InsertRepoIssueListItemParams{
			RepositoryID:    repositoryID,
			Number:          issue.Number,
			Title:           issue.Title,
			State:           issue.State,
			AuthorLogin:     authorLogin,
			AuthorAvatarURL: authorAvatar,
			CommentCount:    issue.CommentCount,
			LabelNames:      issue.LabelNames,
			SortUpdated:     issue.GithubUpdatedAt,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func authorInfo(ctx context.Context, qtx db.Querier, userID sql.NullInt64) (sql.NullString, sql.NullString, error) {
	if !userID.Valid {
		return sql.NullString{}, sql.NullString{}, nil
	}

	user, err := qtx.GetUser(ctx, userID.Int64)
	if errors.Is(err, db.ErrNotFound) {
		return sql.NullString{}, sql.NullString{}, nil
	}
	if err != nil {
		return sql.NullString{}, sql.NullString{}, err
	}

	return sql.NullString{String: user.Login, Valid: true},
		sql.NullString{String: user.AvatarURL, Valid: true}, nil
}

// lastCheckConclusion is the conclusion of the most recent check run at
// the pull request's head SHA.
func lastCheckConclusion(ctx context.Context, qtx db.Querier, repositoryID int64, headSha string) (sql.NullString, error) {
	if headSha == "" {
		return sql.NullString{}, nil
	}

	runs, err := qtx.ListCheckRunsForSha(ctx, db.ListCheckRunsForShaParams{
		RepositoryID: repositoryID,
		HeadSha:      headSha,
	})
	if err != nil {
		return sql.NullString{}, err
	}
	if len(runs) == 0 {
		return sql.NullString{}, nil
	}
	return runs[0].Conclusion, nil
}
