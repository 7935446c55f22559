// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"errors"
	"fmt"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/gh"
)

// EnsureRepository returns the local repository row and a client scoped
// to it, fetching and storing the repository metadata from GitHub when no
// row exists yet. A repository unknown upstream fails with
// ErrNotFoundOnGitHub.
func (w *Worker) EnsureRepository(
	ctx context.Context,
	repositoryID int64,
) (db.Repository, GitHubFetcher, error) {
	repo, err := w.store.GetRepository(ctx, repositoryID)
	if err == nil {
		client, cerr := w.clients(ctx, repo.InstallationID.Int64)
		if cerr != nil {
			return db.Repository{}, nil, fmt.Errorf("resolving client: %w", cerr)
		}
		return repo, client, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return db.Repository{}, nil, fmt.Errorf("loading repository: %w", err)
	}

	// No local row yet. The id-addressed endpoint needs no owner and
	// name, and no installation is known, so the fallback client is used.
	client, err := w.clients(ctx, 0)
	if err != nil {
		return db.Repository{}, nil, fmt.Errorf("resolving client: %w", err)
	}

	ghRepo, err := client.GetRepositoryByID(ctx, repositoryID)
	if errors.Is(err, gh.ErrNotFound) {
		return db.Repository{}, nil, fmt.Errorf("repository %d: %w", repositoryID, ErrNotFoundOnGitHub)
	}
	if err != nil {
		return db.Repository{}, nil, fmt.Errorf("fetching repository: %w", err)
	}

	if err := w.store.UpsertRepository(ctx, repositoryParams(ghRepo, 0, w.now())); err != nil {
		return db.Repository{}, nil, fmt.Errorf("storing repository: %w", err)
	}
	repo, err = w.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return db.Repository{}, nil, fmt.Errorf("reloading repository: %w", err)
	}
	return repo, client, nil
}

// SyncPullRequest fetches one pull request with its comments, reviews and
// head check runs. Used when a read misses an entity the webhook stream
// never delivered. A pull request already in the store is left alone; the
// webhook stream keeps it fresh from here.
func (w *Worker) SyncPullRequest(
	ctx context.Context,
	client GitHubFetcher,
	repo db.Repository,
	number int64,
) error {
	_, err := w.store.GetPullRequest(ctx, db.GetPullRequestParams{
		RepositoryID: repo.ID,
		Number:       number,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("checking pull request: %w", err)
	}

	pr, err := client.GetPullRequest(ctx, repo.OwnerLogin, repo.Name, int(number))
	if errors.Is(err, gh.ErrNotFound) {
		return fmt.Errorf("pull request %d: %w", number, ErrNotFoundOnGitHub)
	}
	if err != nil {
		return fmt.Errorf("fetching pull request: %w", err)
	}

	comments, err := w.fetchComments(ctx, client, repo, number)
	if err != nil {
		return err
	}

	reviews, _, err := client.ListPullRequestReviews(ctx, repo.OwnerLogin, repo.Name, int(number),
		&gogithub.ListOptions{PerPage: w.cfg.PageSize})
	if err != nil {
		return fmt.Errorf("listing reviews: %w", err)
	}

	var checkRuns []*gogithub.CheckRun
	if sha := pr.GetHead().GetSHA(); sha != "" {
		results, _, err := client.ListCheckRunsForRef(ctx, repo.OwnerLogin, repo.Name, sha,
			&gogithub.ListCheckRunsOptions{ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize}})
		if err != nil {
			return fmt.Errorf("listing check runs: %w", err)
		}
		checkRuns = results.CheckRuns
	}

	err = w.store.WithTransaction(ctx, func(qtx db.Querier) error {
		if err := w.upsertUser(ctx, qtx, pr.GetUser()); err != nil {
			return err
		}
		if _, err := qtx.UpsertPullRequest(ctx, pullRequestParams(repo.ID, pr)); err != nil {
			return err
		}
		for _, comment := range comments {
			if err := w.upsertUser(ctx, qtx, comment.GetUser()); err != nil {
				return err
			}
			if err := qtx.UpsertIssueComment(ctx, commentParams(repo.ID, number, comment)); err != nil {
				return err
			}
		}
		for _, review := range reviews {
			if err := w.upsertUser(ctx, qtx, review.GetUser()); err != nil {
				return err
			}
			if err := qtx.UpsertPullRequestReview(ctx, reviewParams(repo.ID, number, review)); err != nil {
				return err
			}
		}
		for _, run := range checkRuns {
			if err := qtx.UpsertCheckRun(ctx, checkRunParams(repo.ID, run)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing pull request %d: %w", number, err)
	}

	if err := w.projections.UpdateAllProjections(ctx, repo.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Int64("repository", repo.ID).
			Msg("projection update after pull request sync failed")
	}

	if msg, err := NewPullFilesMessage(PullFilesPayload{
		RepositoryID:      repo.ID,
		PullRequestNumber: number,
		HeadSha:           pr.GetHead().GetSHA(),
	}); err == nil {
		if err := w.evt.Publish(events.TopicQueueSyncPullFiles, msg); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to schedule pull request file sync")
		}
	}
	return nil
}

// SyncIssue fetches one issue with its comments, mirroring
// SyncPullRequest for the issue side.
func (w *Worker) SyncIssue(
	ctx context.Context,
	client GitHubFetcher,
	repo db.Repository,
	number int64,
) error {
	_, err := w.store.GetIssue(ctx, db.GetIssueParams{
		RepositoryID: repo.ID,
		Number:       number,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("checking issue: %w", err)
	}

	issue, err := client.GetIssue(ctx, repo.OwnerLogin, repo.Name, int(number))
	if errors.Is(err, gh.ErrNotFound) {
		return fmt.Errorf("issue %d: %w", number, ErrNotFoundOnGitHub)
	}
	if err != nil {
		return fmt.Errorf("fetching issue: %w", err)
	}

	comments, err := w.fetchComments(ctx, client, repo, number)
	if err != nil {
		return err
	}

	err = w.store.WithTransaction(ctx, func(qtx db.Querier) error {
		if err := w.upsertUser(ctx, qtx, issue.GetUser()); err != nil {
			return err
		}
		if _, err := qtx.UpsertIssue(ctx, issueParams(repo.ID, issue)); err != nil {
			return err
		}
		for _, comment := range comments {
			if err := w.upsertUser(ctx, qtx, comment.GetUser()); err != nil {
				return err
			}
			if err := qtx.UpsertIssueComment(ctx, commentParams(repo.ID, number, comment)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing issue %d: %w", number, err)
	}

	if err := w.projections.UpdateAllProjections(ctx, repo.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Int64("repository", repo.ID).
			Msg("projection update after issue sync failed")
	}
	return nil
}

func (w *Worker) fetchComments(
	ctx context.Context,
	client GitHubFetcher,
	repo db.Repository,
	number int64,
) ([]*gogithub.IssueComment, error) {
	comments, _, err := client.ListIssueComments(ctx, repo.OwnerLogin, repo.Name, int(number),
		&gogithub.IssueListCommentsOptions{ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize}})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

func (w *Worker) upsertUser(ctx context.Context, qtx db.Querier, user *gogithub.User) error {
	if user.GetID() == 0 {
		return nil
	}
	return qtx.UpsertUser(ctx, userParams(user, w.now()))
}
