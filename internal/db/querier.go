// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -package mockdb -destination=./mock/querier.go -source=./querier.go

// Querier is the query surface shared by the Postgres and in-memory stores.
type Querier interface {
	// Raw webhook deliveries.
	InsertRawDelivery(ctx context.Context, arg InsertRawDeliveryParams) (bool, error)
	GetRawDelivery(ctx context.Context, deliveryID string) (RawWebhookDelivery, error)
	ListPendingDeliveries(ctx context.Context, limit int32) ([]RawWebhookDelivery, error)
	ListRetryDeliveriesDue(ctx context.Context, arg ListRetryDeliveriesDueParams) ([]RawWebhookDelivery, error)
	ListFailedDeliveries(ctx context.Context, limit int32) ([]RawWebhookDelivery, error)
	MarkDeliveryProcessed(ctx context.Context, arg MarkDeliveryProcessedParams) error
	MarkDeliveryRetry(ctx context.Context, arg MarkDeliveryRetryParams) error
	MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) error
	PromoteRetryDelivery(ctx context.Context, deliveryID string) error
	ResetDeliveryForReplay(ctx context.Context, deliveryID string) error
	DeleteRawDelivery(ctx context.Context, deliveryID string) error
	CountDeliveriesByState(ctx context.Context) ([]DeliveryStateCount, error)
	CountProcessedSince(ctx context.Context, since time.Time) (int64, error)
	GetPendingLag(ctx context.Context, now time.Time) (PendingLag, error)
	CountStaleRetries(ctx context.Context, olderThan time.Time) (int64, error)

	// Dead letters.
	InsertDeadLetter(ctx context.Context, arg InsertDeadLetterParams) error
	ListDeadLetters(ctx context.Context, limit int32) ([]DeadLetter, error)
	CountDeadLetters(ctx context.Context) (int64, error)

	// Installations and repositories.
	UpsertInstallation(ctx context.Context, arg UpsertInstallationParams) error
	GetInstallation(ctx context.Context, installationID int64) (Installation, error)
	UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) error
	GetRepository(ctx context.Context, repositoryID int64) (Repository, error)
	GetRepositoryByOwnerName(ctx context.Context, arg GetRepositoryByOwnerNameParams) (Repository, error)
	ListRepositories(ctx context.Context, limit int32) ([]Repository, error)
	CountRepositories(ctx context.Context) (int64, error)

	// Sync jobs.
	InsertSyncJob(ctx context.Context, arg InsertSyncJobParams) (SyncJob, error)
	GetSyncJobByLockKey(ctx context.Context, lockKey string) (SyncJob, error)
	AcquireSyncJob(ctx context.Context, lockKey string) (SyncJob, error)
	FinishSyncJob(ctx context.Context, arg FinishSyncJobParams) error
	DeleteSyncJob(ctx context.Context, lockKey string) error
	ListSyncJobs(ctx context.Context, limit int32) ([]SyncJob, error)

	// Write operations.
	InsertWriteOperation(ctx context.Context, arg InsertWriteOperationParams) error
	GetWriteOperation(ctx context.Context, correlationID string) (WriteOperation, error)
	CompleteWriteOperation(ctx context.Context, arg CompleteWriteOperationParams) error
	FailWriteOperation(ctx context.Context, arg FailWriteOperationParams) error
	ConfirmWriteOperation(ctx context.Context, correlationID string) (bool, error)
	ListRecentWriteOperations(ctx context.Context, arg ListRecentWriteOperationsParams) ([]WriteOperation, error)
	CountWriteOperationsByState(ctx context.Context) ([]WriteOpStateCount, error)

	// Users.
	UpsertUser(ctx context.Context, arg UpsertUserParams) error
	GetUser(ctx context.Context, userID int64) (User, error)

	// Branches.
	UpsertBranch(ctx context.Context, arg UpsertBranchParams) error
	InsertBranchIfAbsent(ctx context.Context, arg InsertBranchIfAbsentParams) error
	GetBranch(ctx context.Context, arg GetBranchParams) (Branch, error)
	DeleteBranch(ctx context.Context, arg DeleteBranchParams) error
	ListBranches(ctx context.Context, repositoryID int64) ([]Branch, error)

	// Commits.
	InsertCommitIfAbsent(ctx context.Context, arg InsertCommitIfAbsentParams) error
	GetCommit(ctx context.Context, arg GetCommitParams) (Commit, error)

	// Pull requests.
	UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) (bool, error)
	GetPullRequest(ctx context.Context, arg GetPullRequestParams) (PullRequest, error)
	ListPullRequests(ctx context.Context, repositoryID int64) ([]PullRequest, error)
	ListOpenPullRequests(ctx context.Context, repositoryID int64) ([]PullRequest, error)

	// Pull request reviews.
	UpsertPullRequestReview(ctx context.Context, arg UpsertPullRequestReviewParams) error
	ListReviewsForPullRequest(ctx context.Context, arg ListReviewsForPullRequestParams) ([]PullRequestReview, error)
	CountReviewsForPullRequest(ctx context.Context, arg CountReviewsForPullRequestParams) (int64, error)

	// Issues.
	UpsertIssue(ctx context.Context, arg UpsertIssueParams) (bool, error)
	GetIssue(ctx context.Context, arg GetIssueParams) (Issue, error)
	ListIssues(ctx context.Context, repositoryID int64) ([]Issue, error)

	// Issue comments.
	UpsertIssueComment(ctx context.Context, arg UpsertIssueCommentParams) error
	DeleteIssueComment(ctx context.Context, arg DeleteIssueCommentParams) error
	ListCommentsForIssue(ctx context.Context, arg ListCommentsForIssueParams) ([]IssueComment, error)
	CountCommentsForIssue(ctx context.Context, arg CountCommentsForIssueParams) (int64, error)

	// Check runs.
	UpsertCheckRun(ctx context.Context, arg UpsertCheckRunParams) error
	ListCheckRunsForSha(ctx context.Context, arg ListCheckRunsForShaParams) ([]CheckRun, error)
	CountFailingCheckRuns(ctx context.Context, repositoryID int64) (int64, error)

	// Pull request files.
	UpsertPullRequestFile(ctx context.Context, arg UpsertPullRequestFileParams) error
	ListPullRequestFiles(ctx context.Context, arg ListPullRequestFilesParams) ([]PullRequestFile, error)

	// Workflow runs and jobs.
	UpsertWorkflowRun(ctx context.Context, arg UpsertWorkflowRunParams) error
	UpsertWorkflowJob(ctx context.Context, arg UpsertWorkflowJobParams) error
	ListWorkflowRuns(ctx context.Context, arg ListWorkflowRunsParams) ([]WorkflowRun, error)

	// Projections.
	UpsertRepoOverview(ctx context.Context, arg UpsertRepoOverviewParams) error
	GetRepoOverview(ctx context.Context, repositoryID int64) (RepoOverview, error)
	ListRepoOverviews(ctx context.Context, limit int32) ([]RepoOverview, error)
	CountRepoOverviews(ctx context.Context) (int64, error)
	DeleteRepoPullRequestList(ctx context.Context, repositoryID int64) error
	InsertRepoPullRequestListItem(ctx context.Context, arg InsertRepoPullRequestListItemParams) error
	ListRepoPullRequestList(ctx context.Context, arg ListRepoPullRequestListParams) ([]RepoPullRequestListItem, error)
	DeleteRepoIssueList(ctx context.Context, repositoryID int64) error
	InsertRepoIssueListItem(ctx context.Context, arg InsertRepoIssueListItemParams) error
	ListRepoIssueList(ctx context.Context, arg ListRepoIssueListParams) ([]RepoIssueListItem, error)
	InsertActivityFeedEntry(ctx context.Context, arg InsertActivityFeedEntryParams) error
	ListActivityFeed(ctx context.Context, arg ListActivityFeedParams) ([]ActivityFeedEntry, error)

	// Operational surface.
	GetTableCounts(ctx context.Context) (TableCounts, error)
}
