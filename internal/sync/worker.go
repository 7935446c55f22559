// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sync moves repository state from the GitHub REST API into the
// store: the first-connect bootstrap, operator reconciles, on-demand
// entity fetches and the pull request file diff cache. Everything here
// writes through the same upserts as the webhook path, so a sync racing
// a delivery converges on the newer state.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v63/github"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/gh"
	"github.com/mindersec/ghmirror/internal/projections"
)

// ErrNotFoundOnGitHub is returned by on-demand fetches when the entity
// does not exist upstream.
var ErrNotFoundOnGitHub = errors.New("not found on GitHub")

// workflowJobFetchLimit caps how many recent workflow runs get their jobs
// fetched during bootstrap.
const workflowJobFetchLimit = 20

// commitBootstrapLimit is the number of recent default-branch commits
// captured during bootstrap. Older history stays upstream.
const commitBootstrapLimit = 100

// fetchRetries is how often a transient GitHub fetch is retried during a
// full sync before the job fails.
const fetchRetries = 2

// GitHubFetcher is the read-only GitHub surface the sync worker needs.
// The gh.Client satisfies it; tests substitute a fake.
type GitHubFetcher interface {
	GetRepository(ctx context.Context, owner, name string) (*gogithub.Repository, error)
	GetRepositoryByID(ctx context.Context, id int64) (*gogithub.Repository, error)
	ListBranches(ctx context.Context, owner, repo string, opt *gogithub.BranchListOptions) ([]*gogithub.Branch, *gogithub.Response, error)
	ListCommits(ctx context.Context, owner, repo string, opt *gogithub.CommitsListOptions) ([]*gogithub.RepositoryCommit, *gogithub.Response, error)
	ListPullRequests(ctx context.Context, owner, repo string, opt *gogithub.PullRequestListOptions) ([]*gogithub.PullRequest, *gogithub.Response, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*gogithub.PullRequest, error)
	ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int, opt *gogithub.ListOptions) ([]*gogithub.CommitFile, *gogithub.Response, error)
	ListPullRequestReviews(ctx context.Context, owner, repo string, number int, opt *gogithub.ListOptions) ([]*gogithub.PullRequestReview, *gogithub.Response, error)
	ListIssues(ctx context.Context, owner, repo string, opt *gogithub.IssueListByRepoOptions) ([]*gogithub.Issue, *gogithub.Response, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*gogithub.Issue, error)
	ListIssueComments(ctx context.Context, owner, repo string, number int, opt *gogithub.IssueListCommentsOptions) ([]*gogithub.IssueComment, *gogithub.Response, error)
	ListCheckRunsForRef(ctx context.Context, owner, repo, ref string, opt *gogithub.ListCheckRunsOptions) (*gogithub.ListCheckRunsResults, *gogithub.Response, error)
	ListWorkflowRuns(ctx context.Context, owner, repo string, opt *gogithub.ListWorkflowRunsOptions) (*gogithub.WorkflowRuns, *gogithub.Response, error)
	ListWorkflowJobs(ctx context.Context, owner, repo string, runID int64, opt *gogithub.ListWorkflowJobsOptions) (*gogithub.Jobs, *gogithub.Response, error)
}

var _ GitHubFetcher = (*gh.Client)(nil)

// ClientProvider resolves the GitHub client for an installation. An
// installation id of zero resolves the configured fallback token client.
type ClientProvider func(ctx context.Context, installationID int64) (GitHubFetcher, error)

// FactoryProvider adapts the client factory to a ClientProvider.
func FactoryProvider(factory *gh.ClientFactory) ClientProvider {
	return func(ctx context.Context, installationID int64) (GitHubFetcher, error) {
		if installationID == 0 {
			return factory.Default(ctx)
		}
		return factory.ForInstallation(installationID)
	}
}

// Worker runs sync jobs and consumes the sync topics.
type Worker struct {
	store       db.Store
	clients     ClientProvider
	evt         events.Publisher
	projections *projections.Maintainer
	cfg         config.SyncConfig

	now          func() time.Time
	fetchBackoff func(ctx context.Context) backoff.BackOff
}

// NewWorker creates a sync worker.
func NewWorker(store db.Store, clients ClientProvider, evt events.Publisher, cfg config.SyncConfig) *Worker {
	return &Worker{
		store:       store,
		clients:     clients,
		evt:         evt,
		projections: projections.NewMaintainer(store),
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		fetchBackoff: func(ctx context.Context) backoff.BackOff {
			return backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewExponentialBackOff(), fetchRetries), ctx)
		},
	}
}

// withFetchRetry runs one GitHub fetch with retries on transient errors.
// Not-found and auth failures never heal on retry and fail immediately.
func (w *Worker) withFetchRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gh.ErrNotFound),
			errors.Is(err, gh.ErrNotAuthenticated),
			errors.Is(err, gh.ErrInsufficientPermission):
			return backoff.Permanent(err)
		}
		return err
	}, w.fetchBackoff(ctx))
}

// Register subscribes the worker to the sync topics.
func (w *Worker) Register(reg events.Registrar) {
	reg.Register(events.TopicQueueSyncRepo, w.handleRepoSync)
	reg.Register(events.TopicQueueSyncPullFiles, w.handlePullFiles)
}

func bootstrapLockKey(repositoryID int64) string {
	return fmt.Sprintf("repo-bootstrap:0:%d", repositoryID)
}

func reconcileLockKey(repositoryID int64) string {
	return fmt.Sprintf("repo-reconcile:0:%d", repositoryID)
}

// ScheduleResult reports whether a sync job was scheduled and under which
// lock key.
type ScheduleResult struct {
	Scheduled bool
	LockKey   string
}

// ScheduleBootstrap creates the first-connect bootstrap job for a
// repository and publishes the work message. A job already holding the
// lock key wins; the result then reports Scheduled false.
func (w *Worker) ScheduleBootstrap(
	ctx context.Context,
	repositoryID int64,
	fullName string,
	installationID int64,
) (ScheduleResult, error) {
	return w.schedule(ctx, db.SyncJobKindBootstrap, bootstrapLockKey(repositoryID),
		repositoryID, fullName, installationID)
}

// ScheduleReconcile creates an operator-initiated reconcile job for a
// repository.
func (w *Worker) ScheduleReconcile(
	ctx context.Context,
	repositoryID int64,
	fullName string,
	installationID int64,
) (ScheduleResult, error) {
	return w.schedule(ctx, db.SyncJobKindReconcile, reconcileLockKey(repositoryID),
		repositoryID, fullName, installationID)
}

func (w *Worker) schedule(
	ctx context.Context,
	kind db.SyncJobKind,
	lockKey string,
	repositoryID int64,
	fullName string,
	installationID int64,
) (ScheduleResult, error) {
	params := db.InsertSyncJobParams{
		ID:             uuid.New(),
		LockKey:        lockKey,
		Kind:           kind,
		RepositoryID:   repositoryID,
		FullName:       fullName,
		InstallationID: installationID,
		Now:            w.now(),
	}

	_, err := w.store.InsertSyncJob(ctx, params)
	if db.IsUniqueViolation(err) {
		// Only a live job holds the lock. A done or failed row is a
		// finished run's record; replace it and schedule a fresh one.
		existing, getErr := w.store.GetSyncJobByLockKey(ctx, lockKey)
		if getErr != nil && !errors.Is(getErr, db.ErrNotFound) {
			return ScheduleResult{}, fmt.Errorf("inspecting sync job lock: %w", getErr)
		}
		if getErr == nil && existing.State != db.SyncJobStateDone && existing.State != db.SyncJobStateFailed {
			zerolog.Ctx(ctx).Info().
				Str("lock_key", lockKey).
				Str("state", string(existing.State)).
				Msg("sync already scheduled for repository")
			return ScheduleResult{Scheduled: false, LockKey: lockKey}, nil
		}

		if err := w.store.DeleteSyncJob(ctx, lockKey); err != nil {
			return ScheduleResult{}, fmt.Errorf("clearing finished sync job: %w", err)
		}
		_, err = w.store.InsertSyncJob(ctx, params)
		if db.IsUniqueViolation(err) {
			// Another scheduler re-took the lock between delete and insert.
			return ScheduleResult{Scheduled: false, LockKey: lockKey}, nil
		}
	}
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("inserting sync job: %w", err)
	}

	msg, err := NewRepoSyncMessage(RepoSyncPayload{
		RepositoryID:   repositoryID,
		FullName:       fullName,
		InstallationID: installationID,
		LockKey:        lockKey,
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	if err := w.evt.Publish(events.TopicQueueSyncRepo, msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("lock_key", lockKey).
			Msg("failed to publish repo sync message")
	}
	return ScheduleResult{Scheduled: true, LockKey: lockKey}, nil
}

// handleRepoSync claims the sync job named by the message and runs it.
// Outcomes land in the job row; message-level errors are not returned so
// the bus does not race the job table.
func (w *Worker) handleRepoSync(msg *message.Message) error {
	ctx := msg.Context()

	payload, err := repoSyncPayloadFromMessage(msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("dropping malformed repo sync message")
		return nil
	}

	job, err := w.store.AcquireSyncJob(ctx, payload.LockKey)
	if errors.Is(err, db.ErrNotFound) {
		zerolog.Ctx(ctx).Debug().
			Str("lock_key", payload.LockKey).
			Msg("sync job already claimed or finished")
		return nil
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("lock_key", payload.LockKey).
			Msg("failed to claim sync job")
		return nil
	}

	if err := w.RunSyncJob(ctx, job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("lock_key", job.LockKey).
			Str("kind", string(job.Kind)).
			Msg("sync job failed")
	}
	return nil
}

// RunSyncJob executes a claimed job and records its terminal state.
func (w *Worker) RunSyncJob(ctx context.Context, job db.SyncJob) error {
	client, err := w.clients(ctx, job.InstallationID)
	if err != nil {
		return w.finishJob(ctx, job, fmt.Errorf("resolving client: %w", err))
	}

	owner, name, err := splitFullName(job.FullName)
	if err != nil {
		return w.finishJob(ctx, job, err)
	}

	runErr := w.runFullSync(ctx, client, job.RepositoryID, owner, name, job.InstallationID)
	return w.finishJob(ctx, job, runErr)
}

func (w *Worker) finishJob(ctx context.Context, job db.SyncJob, runErr error) error {
	finish := db.FinishSyncJobParams{
		LockKey: job.LockKey,
		State:   db.SyncJobStateDone,
	}
	if runErr != nil {
		finish.State = db.SyncJobStateFailed
		finish.LastError = nullStr(runErr.Error())
	}

	if err := w.store.FinishSyncJob(ctx, finish); err != nil {
		return fmt.Errorf("finishing sync job: %w (run error: %v)", err, runErr)
	}
	if runErr != nil {
		return runErr
	}

	zerolog.Ctx(ctx).Info().
		Str("lock_key", job.LockKey).
		Str("kind", string(job.Kind)).
		Int64("repository", job.RepositoryID).
		Msg("sync job finished")
	return nil
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("malformed repository full name %q", fullName)
	}
	return owner, name, nil
}

// handlePullFiles refreshes the file diff cache for one pull request.
func (w *Worker) handlePullFiles(msg *message.Message) error {
	ctx := msg.Context()

	payload, err := pullFilesPayloadFromMessage(msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("dropping malformed pull files message")
		return nil
	}

	repo, err := w.store.GetRepository(ctx, payload.RepositoryID)
	if errors.Is(err, db.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().
			Int64("repository", payload.RepositoryID).
			Msg("pull files sync for unknown repository")
		return nil
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("loading repository for pull files sync")
		return nil
	}

	client, err := w.clients(ctx, repo.InstallationID.Int64)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("resolving client for pull files sync")
		return nil
	}

	files, truncated, err := w.SyncPullFiles(ctx, client, repo, payload.PullRequestNumber)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Int64("repository", payload.RepositoryID).
			Int64("pull_request", payload.PullRequestNumber).
			Msg("pull request file sync failed")
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Int64("repository", payload.RepositoryID).
		Int64("pull_request", payload.PullRequestNumber).
		Int("files", files).
		Int("truncated_patches", truncated).
		Msg("pull request files cached")
	return nil
}
