// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// ProcessState is the state machine for raw webhook deliveries.
type ProcessState string

// Valid delivery processing states.
const (
	ProcessStatePending   ProcessState = "pending"
	ProcessStateRetry     ProcessState = "retry"
	ProcessStateProcessed ProcessState = "processed"
	ProcessStateFailed    ProcessState = "failed"
)

// SyncJobState is the state machine for bootstrap/reconcile jobs.
type SyncJobState string

// Valid sync job states.
const (
	SyncJobStatePending SyncJobState = "pending"
	SyncJobStateRunning SyncJobState = "running"
	SyncJobStateRetry   SyncJobState = "retry"
	SyncJobStateDone    SyncJobState = "done"
	SyncJobStateFailed  SyncJobState = "failed"
)

// SyncJobKind distinguishes first-connect bootstraps from operator reconciles.
type SyncJobKind string

// Valid sync job kinds.
const (
	SyncJobKindBootstrap SyncJobKind = "bootstrap"
	SyncJobKindReconcile SyncJobKind = "reconcile"
)

// WriteOpState is the lifecycle of a client-initiated write operation.
// Transitions are monotone: pending -> (completed | failed),
// {pending, completed} -> confirmed.
type WriteOpState string

// Valid write operation states.
const (
	WriteOpStatePending   WriteOpState = "pending"
	WriteOpStateCompleted WriteOpState = "completed"
	WriteOpStateFailed    WriteOpState = "failed"
	WriteOpStateConfirmed WriteOpState = "confirmed"
)

// WriteOpType enumerates the supported client mutations.
type WriteOpType string

// Valid write operation types.
const (
	WriteOpTypeCreateIssue      WriteOpType = "create_issue"
	WriteOpTypeCreateComment    WriteOpType = "create_comment"
	WriteOpTypeUpdateIssueState WriteOpType = "update_issue_state"
	WriteOpTypeMergePullRequest WriteOpType = "merge_pull_request"
)

// Installation is a GitHub App installation known to the mirror.
type Installation struct {
	ID           int64
	AccountLogin string
	AccountKind  string
	SuspendedAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository is a mirrored GitHub repository. The primary key is the
// GitHub-assigned repository ID.
type Repository struct {
	ID              int64
	InstallationID  sql.NullInt64
	OwnerLogin      string
	Name            string
	FullName        string
	Visibility      string
	DefaultBranch   string
	IsArchived      bool
	IsDisabled      bool
	IsFork          bool
	PushedAt        sql.NullTime
	GithubUpdatedAt sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RawWebhookDelivery is one durable webhook delivery plus its processing
// state machine fields.
type RawWebhookDelivery struct {
	DeliveryID      string
	EventName       string
	Action          sql.NullString
	InstallationID  sql.NullInt64
	RepositoryID    sql.NullInt64
	SignatureValid  bool
	Payload         json.RawMessage
	ReceivedAt      time.Time
	ProcessState    ProcessState
	ProcessAttempts int32
	NextRetryAt     sql.NullTime
	ProcessError    sql.NullString
}

// DeadLetter is a frozen copy of a delivery that exhausted its retry budget.
type DeadLetter struct {
	ID           uuid.UUID
	DeliveryID   string
	EventName    string
	Action       sql.NullString
	RepositoryID sql.NullInt64
	Payload      json.RawMessage
	Reason       string
	CreatedAt    time.Time
}

// SyncJob is a coarse-grained control record for bootstrap/reconcile work,
// serialized per scope by the unique LockKey.
type SyncJob struct {
	ID             uuid.UUID
	LockKey        string
	Kind           SyncJobKind
	RepositoryID   int64
	FullName       string
	InstallationID int64
	State          SyncJobState
	Attempts       int32
	NextRunAt      sql.NullTime
	LastError      sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WriteOperation tracks an optimistic client mutation until the confirming
// webhook arrives.
type WriteOperation struct {
	CorrelationID      string
	Type               WriteOpType
	State              WriteOpState
	RepositoryID       int64
	OwnerLogin         string
	RepoName           string
	InputPayload       pqtype.NullRawMessage
	PreviewPayload     pqtype.NullRawMessage
	ResultPayload      pqtype.NullRawMessage
	GithubEntityNumber sql.NullInt64
	ErrorMessage       sql.NullString
	ErrorStatus        sql.NullInt32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// User is a GitHub user, keyed by the GitHub-assigned user ID.
type User struct {
	ID        int64
	Login     string
	AvatarURL string
	Kind      string
	UpdatedAt time.Time
}

// Branch is a git branch head within a repository.
type Branch struct {
	RepositoryID int64
	Name         string
	HeadSha      string
	UpdatedAt    time.Time
}

// Commit is a single commit within a repository.
type Commit struct {
	RepositoryID    int64
	Sha             string
	MessageHeadline string
	AuthorUserID    sql.NullInt64
	CommitterUserID sql.NullInt64
	AuthoredAt      sql.NullTime
	CommittedAt     sql.NullTime
}

// PullRequest is a mirrored pull request. GithubUpdatedAt is the
// out-of-order ordering key: older updates never regress newer state.
type PullRequest struct {
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
	AssigneeLogins          pq.StringArray
	RequestedReviewerLogins pq.StringArray
	MergeableState          sql.NullString
	CommentCount            int32
	ReviewCount             int32
	MergedAt                sql.NullTime
	ClosedAt                sql.NullTime
	GithubUpdatedAt         time.Time
}

// PullRequestReview is a review on a pull request, replace-on-exists keyed
// by the immutable GithubReviewID.
type PullRequestReview struct {
	RepositoryID      int64
	GithubReviewID    int64
	PullRequestNumber int64
	ReviewerUserID    sql.NullInt64
	State             string
	CommitSha         string
	SubmittedAt       sql.NullTime
}

// Issue is a mirrored issue. IsPullRequest marks entries that GitHub also
// exposes through the pull request API.
type Issue struct {
	RepositoryID    int64
	Number          int64
	GithubIssueID   int64
	State           string
	Title           string
	Body            sql.NullString
	LabelNames      pq.StringArray
	AssigneeLogins  pq.StringArray
	AuthorUserID    sql.NullInt64
	IsPullRequest   bool
	CommentCount    int32
	ClosedAt        sql.NullTime
	GithubUpdatedAt time.Time
}

// IssueComment is a comment on an issue or pull request.
type IssueComment struct {
	RepositoryID    int64
	GithubCommentID int64
	IssueNumber     int64
	AuthorUserID    sql.NullInt64
	Body            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CheckRun is a CI check run attached to a commit SHA.
type CheckRun struct {
	RepositoryID     int64
	GithubCheckRunID int64
	Name             string
	HeadSha          string
	Status           string
	Conclusion       sql.NullString
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
}

// PullRequestFile is one file of a pull request diff. Patch is null when the
// upstream patch exceeded the size cap.
type PullRequestFile struct {
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

// WorkflowRun is a GitHub Actions workflow run.
type WorkflowRun struct {
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

// WorkflowJob is one job within a workflow run.
type WorkflowJob struct {
	RepositoryID int64
	GithubJobID  int64
	GithubRunID  int64
	Name         string
	Status       string
	Conclusion   sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// RepoOverview is the per-repository dashboard projection row.
type RepoOverview struct {
	RepositoryID      int64
	OpenPrCount       int32
	OpenIssueCount    int32
	FailingCheckCount int32
	LastPushAt        sql.NullTime
	UpdatedAt         time.Time
}

// RepoPullRequestListItem is a denormalized pull request list row.
type RepoPullRequestListItem struct {
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

// RepoIssueListItem is a denormalized issue list row.
type RepoIssueListItem struct {
	RepositoryID    int64
	Number          int64
	Title           string
	State           string
	AuthorLogin     sql.NullString
	AuthorAvatarURL sql.NullString
	CommentCount    int32
	LabelNames      pq.StringArray
	SortUpdated     time.Time
}

// ActivityFeedEntry is one append-only activity feed row.
type ActivityFeedEntry struct {
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
