// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
)

// runFullSync fetches the whole repository state from GitHub. Bootstrap
// and reconcile share this path; every write goes through the same
// guarded upserts as webhook processing, so rerunning it only moves
// state forward.
func (w *Worker) runFullSync(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
	installationID int64,
) error {
	users := newUserSet()

	var repo *gogithub.Repository
	err := w.withFetchRetry(ctx, func() error {
		var ferr error
		repo, ferr = client.GetRepository(ctx, owner, name)
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetching repository: %w", err)
	}
	users.add(repo.GetOwner())
	if err := w.store.UpsertRepository(ctx, repositoryParams(repo, installationID, w.now())); err != nil {
		return fmt.Errorf("storing repository: %w", err)
	}

	if err := w.syncBranches(ctx, client, repositoryID, owner, name); err != nil {
		return err
	}

	openPrs, err := w.syncPullRequests(ctx, client, repositoryID, owner, name, users)
	if err != nil {
		return err
	}

	if err := w.syncIssues(ctx, client, repositoryID, owner, name, users); err != nil {
		return err
	}

	if err := w.syncCommits(ctx, client, repositoryID, owner, name, users); err != nil {
		return err
	}

	if err := w.syncCheckRuns(ctx, client, repositoryID, owner, name, openPrs); err != nil {
		return err
	}

	if err := w.syncWorkflows(ctx, client, repositoryID, owner, name); err != nil {
		return err
	}

	if err := w.flushUsers(ctx, users); err != nil {
		return err
	}

	w.scheduleFileSyncs(ctx, repositoryID, openPrs)

	if err := w.projections.UpdateAllProjections(ctx, repositoryID); err != nil {
		return fmt.Errorf("updating projections: %w", err)
	}
	return nil
}

func (w *Worker) syncBranches(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
) error {
	opt := &gogithub.BranchListOptions{
		ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize},
	}
	for {
		var branches []*gogithub.Branch
		var resp *gogithub.Response
		err := w.withFetchRetry(ctx, func() error {
			var ferr error
			branches, resp, ferr = client.ListBranches(ctx, owner, name, opt)
			return ferr
		})
		if err != nil {
			return fmt.Errorf("listing branches: %w", err)
		}

		err = w.store.WithTransaction(ctx, func(qtx db.Querier) error {
			for _, branch := range branches {
				err := qtx.UpsertBranch(ctx, db.UpsertBranchParams{
					RepositoryID: repositoryID,
					Name:         branch.GetName(),
					HeadSha:      branch.GetCommit().GetSHA(),
					Now:          w.now(),
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("storing branches: %w", err)
		}

		if resp == nil || resp.NextPage == 0 {
			return nil
		}
		opt.Page = resp.NextPage
	}
}

// syncPullRequests stores all pull requests plus their issue shadow rows,
// in chunks. It returns the open pull requests for the later check run
// and file sync steps.
func (w *Worker) syncPullRequests(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
	users *userSet,
) ([]*gogithub.PullRequest, error) {
	opt := &gogithub.PullRequestListOptions{
		State:       "all",
		ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize},
	}

	var all []*gogithub.PullRequest
	for {
		var prs []*gogithub.PullRequest
		var resp *gogithub.Response
		err := w.withFetchRetry(ctx, func() error {
			var ferr error
			prs, resp, ferr = client.ListPullRequests(ctx, owner, name, opt)
			return ferr
		})
		if err != nil {
			return nil, fmt.Errorf("listing pull requests: %w", err)
		}
		all = append(all, prs...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	var open []*gogithub.PullRequest
	for chunk := range chunks(all, w.cfg.ChunkSize) {
		err := w.store.WithTransaction(ctx, func(qtx db.Querier) error {
			for _, pr := range chunk {
				users.add(pr.GetUser())
				if _, err := qtx.UpsertPullRequest(ctx, pullRequestParams(repositoryID, pr)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("storing pull requests: %w", err)
		}
	}

	for _, pr := range all {
		if pr.GetState() == "open" {
			open = append(open, pr)
		}
	}
	return open, nil
}

func (w *Worker) syncIssues(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
	users *userSet,
) error {
	opt := &gogithub.IssueListByRepoOptions{
		State:       "all",
		ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize},
	}

	var all []*gogithub.Issue
	for {
		var issues []*gogithub.Issue
		var resp *gogithub.Response
		err := w.withFetchRetry(ctx, func() error {
			var ferr error
			issues, resp, ferr = client.ListIssues(ctx, owner, name, opt)
			return ferr
		})
		if err != nil {
			return fmt.Errorf("listing issues: %w", err)
		}
		all = append(all, issues...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	for chunk := range chunks(all, w.cfg.ChunkSize) {
		err := w.store.WithTransaction(ctx, func(qtx db.Querier) error {
			for _, issue := range chunk {
				users.add(issue.GetUser())
				if _, err := qtx.UpsertIssue(ctx, issueParams(repositoryID, issue)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("storing issues: %w", err)
		}
	}
	return nil
}

// syncCommits captures one page of recent default-branch history. Older
// commits arrive later through push events if at all.
func (w *Worker) syncCommits(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
	users *userSet,
) error {
	var commits []*gogithub.RepositoryCommit
	err := w.withFetchRetry(ctx, func() error {
		var ferr error
		commits, _, ferr = client.ListCommits(ctx, owner, name, &gogithub.CommitsListOptions{
			ListOptions: gogithub.ListOptions{PerPage: commitBootstrapLimit},
		})
		return ferr
	})
	if err != nil {
		return fmt.Errorf("listing commits: %w", err)
	}

	return w.store.WithTransaction(ctx, func(qtx db.Querier) error {
		for _, commit := range commits {
			users.add(commit.GetAuthor())
			users.add(commit.GetCommitter())
			if err := qtx.InsertCommitIfAbsent(ctx, commitParams(repositoryID, commit)); err != nil {
				return fmt.Errorf("storing commit %s: %w", commit.GetSHA(), err)
			}
		}
		return nil
	})
}

// syncCheckRuns fetches check runs at the head SHA of every open pull
// request, deduplicating SHAs shared between pull requests.
func (w *Worker) syncCheckRuns(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
	openPrs []*gogithub.PullRequest,
) error {
	seen := map[string]bool{}
	for _, pr := range openPrs {
		sha := pr.GetHead().GetSHA()
		if sha == "" || seen[sha] {
			continue
		}
		seen[sha] = true

		var results *gogithub.ListCheckRunsResults
		err := w.withFetchRetry(ctx, func() error {
			var ferr error
			results, _, ferr = client.ListCheckRunsForRef(ctx, owner, name, sha, &gogithub.ListCheckRunsOptions{
				ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize},
			})
			return ferr
		})
		if err != nil {
			return fmt.Errorf("listing check runs for %s: %w", sha, err)
		}

		for _, run := range results.CheckRuns {
			if err := w.store.UpsertCheckRun(ctx, checkRunParams(repositoryID, run)); err != nil {
				return fmt.Errorf("storing check run: %w", err)
			}
		}
	}
	return nil
}

func (w *Worker) syncWorkflows(
	ctx context.Context,
	client GitHubFetcher,
	repositoryID int64,
	owner, name string,
) error {
	var runs *gogithub.WorkflowRuns
	err := w.withFetchRetry(ctx, func() error {
		var ferr error
		runs, _, ferr = client.ListWorkflowRuns(ctx, owner, name, &gogithub.ListWorkflowRunsOptions{
			ListOptions: gogithub.ListOptions{PerPage: commitBootstrapLimit},
		})
		return ferr
	})
	if err != nil {
		return fmt.Errorf("listing workflow runs: %w", err)
	}

	for _, run := range runs.WorkflowRuns {
		if err := w.store.UpsertWorkflowRun(ctx, workflowRunParams(repositoryID, run)); err != nil {
			return fmt.Errorf("storing workflow run: %w", err)
		}
	}

	// Jobs only for the most recent runs; the rest stay run-level.
	for i, run := range runs.WorkflowRuns {
		if i >= workflowJobFetchLimit {
			break
		}

		var jobs *gogithub.Jobs
		err := w.withFetchRetry(ctx, func() error {
			var ferr error
			jobs, _, ferr = client.ListWorkflowJobs(ctx, owner, name, run.GetID(), &gogithub.ListWorkflowJobsOptions{
				ListOptions: gogithub.ListOptions{PerPage: w.cfg.PageSize},
			})
			return ferr
		})
		if err != nil {
			return fmt.Errorf("listing jobs for run %d: %w", run.GetID(), err)
		}
		for _, job := range jobs.Jobs {
			if err := w.store.UpsertWorkflowJob(ctx, workflowJobParams(repositoryID, job)); err != nil {
				return fmt.Errorf("storing workflow job: %w", err)
			}
		}
	}
	return nil
}

func (w *Worker) flushUsers(ctx context.Context, users *userSet) error {
	for chunk := range chunks(users.all(), w.cfg.ChunkSize) {
		err := w.store.WithTransaction(ctx, func(qtx db.Querier) error {
			for _, user := range chunk {
				if err := qtx.UpsertUser(ctx, userParams(user, w.now())); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("storing users: %w", err)
		}
	}
	return nil
}

func (w *Worker) scheduleFileSyncs(ctx context.Context, repositoryID int64, openPrs []*gogithub.PullRequest) {
	for _, pr := range openPrs {
		msg, err := NewPullFilesMessage(PullFilesPayload{
			RepositoryID:      repositoryID,
			PullRequestNumber: int64(pr.GetNumber()),
			HeadSha:           pr.GetHead().GetSHA(),
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to build pull files message")
			continue
		}
		if err := w.evt.Publish(events.TopicQueueSyncPullFiles, msg); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Int("pull_request", pr.GetNumber()).
				Msg("failed to schedule pull request file sync")
		}
	}
}

// userSet deduplicates users met during a sync run.
type userSet struct {
	byID map[int64]*gogithub.User
}

func newUserSet() *userSet {
	return &userSet{byID: map[int64]*gogithub.User{}}
}

func (s *userSet) add(user *gogithub.User) {
	if user.GetID() == 0 {
		return
	}
	s.byID[user.GetID()] = user
}

func (s *userSet) all() []*gogithub.User {
	out := make([]*gogithub.User, 0, len(s.byID))
	for _, user := range s.byID {
		out = append(out, user)
	}
	return out
}

// chunks yields slices of at most size elements.
func chunks[T any](items []T, size int) func(func([]T) bool) {
	if size <= 0 {
		size = len(items)
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
