// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const upsertInstallation = `
INSERT INTO installations (id, account_login, account_kind, suspended_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO UPDATE
SET account_login = EXCLUDED.account_login,
    account_kind = EXCLUDED.account_kind,
    suspended_at = EXCLUDED.suspended_at,
    updated_at = EXCLUDED.updated_at
`

// UpsertInstallationParams are the parameters for UpsertInstallation.
type UpsertInstallationParams struct {
	ID           int64
	AccountLogin string
	AccountKind  string
	SuspendedAt  sql.NullTime
	Now          time.Time
}

// UpsertInstallation inserts or refreshes an App installation record.
func (q *Queries) UpsertInstallation(ctx context.Context, arg UpsertInstallationParams) error {
	_, err := q.db.ExecContext(ctx, upsertInstallation,
		arg.ID, arg.AccountLogin, arg.AccountKind, arg.SuspendedAt, arg.Now)
	return err
}

const getInstallation = `
SELECT id, account_login, account_kind, suspended_at, created_at, updated_at
FROM installations WHERE id = $1
`

// GetInstallation fetches an installation by its GitHub installation id.
func (q *Queries) GetInstallation(ctx context.Context, installationID int64) (Installation, error) {
	var i Installation
	err := q.db.QueryRowContext(ctx, getInstallation, installationID).Scan(
		&i.ID, &i.AccountLogin, &i.AccountKind, &i.SuspendedAt, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Installation{}, ErrNotFound
	}
	return i, err
}

const upsertRepository = `
INSERT INTO repositories (
    id, installation_id, owner_login, name, full_name, visibility,
    default_branch, is_archived, is_disabled, is_fork, pushed_at,
    github_updated_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
ON CONFLICT (id) DO UPDATE
SET installation_id = EXCLUDED.installation_id,
    owner_login = EXCLUDED.owner_login,
    name = EXCLUDED.name,
    full_name = EXCLUDED.full_name,
    visibility = EXCLUDED.visibility,
    default_branch = EXCLUDED.default_branch,
    is_archived = EXCLUDED.is_archived,
    is_disabled = EXCLUDED.is_disabled,
    is_fork = EXCLUDED.is_fork,
    pushed_at = EXCLUDED.pushed_at,
    github_updated_at = EXCLUDED.github_updated_at,
    updated_at = EXCLUDED.updated_at
`

// UpsertRepositoryParams are the parameters for UpsertRepository.
type UpsertRepositoryParams struct {
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
	Now             time.Time
}

// UpsertRepository inserts or refreshes a mirrored repository.
func (q *Queries) UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) error {
	_, err := q.db.ExecContext(ctx, upsertRepository,
		arg.ID, arg.InstallationID, arg.OwnerLogin, arg.Name, arg.FullName,
		arg.Visibility, arg.DefaultBranch, arg.IsArchived, arg.IsDisabled,
		arg.IsFork, arg.PushedAt, arg.GithubUpdatedAt, arg.Now)
	return err
}

const getRepository = `
SELECT id, installation_id, owner_login, name, full_name, visibility,
       default_branch, is_archived, is_disabled, is_fork, pushed_at,
       github_updated_at, created_at, updated_at
FROM repositories WHERE id = $1
`

// GetRepository fetches a repository by its GitHub repository id.
func (q *Queries) GetRepository(ctx context.Context, repositoryID int64) (Repository, error) {
	var r Repository
	err := q.db.QueryRowContext(ctx, getRepository, repositoryID).Scan(
		&r.ID, &r.InstallationID, &r.OwnerLogin, &r.Name, &r.FullName, &r.Visibility,
		&r.DefaultBranch, &r.IsArchived, &r.IsDisabled, &r.IsFork, &r.PushedAt,
		&r.GithubUpdatedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	return r, err
}

const getRepositoryByOwnerName = `
SELECT id, installation_id, owner_login, name, full_name, visibility,
       default_branch, is_archived, is_disabled, is_fork, pushed_at,
       github_updated_at, created_at, updated_at
FROM repositories WHERE owner_login = $1 AND name = $2
`

// GetRepositoryByOwnerNameParams are the parameters for GetRepositoryByOwnerName.
type GetRepositoryByOwnerNameParams struct {
	OwnerLogin string
	Name       string
}

// GetRepositoryByOwnerName fetches a repository by its (owner, name) pair.
func (q *Queries) GetRepositoryByOwnerName(ctx context.Context, arg GetRepositoryByOwnerNameParams) (Repository, error) {
	var r Repository
	err := q.db.QueryRowContext(ctx, getRepositoryByOwnerName, arg.OwnerLogin, arg.Name).Scan(
		&r.ID, &r.InstallationID, &r.OwnerLogin, &r.Name, &r.FullName, &r.Visibility,
		&r.DefaultBranch, &r.IsArchived, &r.IsDisabled, &r.IsFork, &r.PushedAt,
		&r.GithubUpdatedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	return r, err
}

const listRepositories = `
SELECT id, installation_id, owner_login, name, full_name, visibility,
       default_branch, is_archived, is_disabled, is_fork, pushed_at,
       github_updated_at, created_at, updated_at
FROM repositories
ORDER BY full_name
LIMIT $1
`

// ListRepositories returns mirrored repositories ordered by full name.
func (q *Queries) ListRepositories(ctx context.Context, limit int32) ([]Repository, error) {
	rows, err := q.db.QueryContext(ctx, listRepositories, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(
			&r.ID, &r.InstallationID, &r.OwnerLogin, &r.Name, &r.FullName, &r.Visibility,
			&r.DefaultBranch, &r.IsArchived, &r.IsDisabled, &r.IsFork, &r.PushedAt,
			&r.GithubUpdatedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countRepositories = `
SELECT COUNT(*) FROM repositories
`

// CountRepositories counts mirrored repositories.
func (q *Queries) CountRepositories(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRepositories).Scan(&n)
	return n, err
}

const insertSyncJob = `
INSERT INTO sync_jobs (
    id, lock_key, kind, repository_id, full_name, installation_id,
    state, attempts, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, $7)
RETURNING id, lock_key, kind, repository_id, full_name, installation_id,
          state, attempts, next_run_at, last_error, created_at, updated_at
`

// InsertSyncJobParams are the parameters for InsertSyncJob.
type InsertSyncJobParams struct {
	ID             uuid.UUID
	LockKey        string
	Kind           SyncJobKind
	RepositoryID   int64
	FullName       string
	InstallationID int64
	Now            time.Time
}

// InsertSyncJob creates a pending sync job. The unique lock_key serializes
// bootstrap/reconcile per scope; a conflicting insert fails.
func (q *Queries) InsertSyncJob(ctx context.Context, arg InsertSyncJobParams) (SyncJob, error) {
	row := q.db.QueryRowContext(ctx, insertSyncJob,
		arg.ID, arg.LockKey, arg.Kind, arg.RepositoryID, arg.FullName,
		arg.InstallationID, arg.Now)
	return scanSyncJobRow(row)
}

const getSyncJobByLockKey = `
SELECT id, lock_key, kind, repository_id, full_name, installation_id,
       state, attempts, next_run_at, last_error, created_at, updated_at
FROM sync_jobs WHERE lock_key = $1
`

// GetSyncJobByLockKey fetches a sync job by its lock key.
func (q *Queries) GetSyncJobByLockKey(ctx context.Context, lockKey string) (SyncJob, error) {
	row := q.db.QueryRowContext(ctx, getSyncJobByLockKey, lockKey)
	return scanSyncJobRow(row)
}

const acquireSyncJob = `
UPDATE sync_jobs
SET state = 'running', attempts = attempts + 1, updated_at = NOW()
WHERE lock_key = $1 AND state IN ('pending', 'retry')
RETURNING id, lock_key, kind, repository_id, full_name, installation_id,
          state, attempts, next_run_at, last_error, created_at, updated_at
`

// AcquireSyncJob transitions a pending or retry job to running, bumping the
// attempt counter. Returns ErrNotFound when no job is acquirable, which is
// how concurrent runners lose the race.
func (q *Queries) AcquireSyncJob(ctx context.Context, lockKey string) (SyncJob, error) {
	row := q.db.QueryRowContext(ctx, acquireSyncJob, lockKey)
	return scanSyncJobRow(row)
}

const finishSyncJob = `
UPDATE sync_jobs
SET state = $2, last_error = $3, next_run_at = $4, updated_at = NOW()
WHERE lock_key = $1
`

// FinishSyncJobParams are the parameters for FinishSyncJob.
type FinishSyncJobParams struct {
	LockKey   string
	State     SyncJobState
	LastError sql.NullString
	NextRunAt sql.NullTime
}

// FinishSyncJob records the terminal (or retry) state of a sync job run.
func (q *Queries) FinishSyncJob(ctx context.Context, arg FinishSyncJobParams) error {
	_, err := q.db.ExecContext(ctx, finishSyncJob,
		arg.LockKey, arg.State, arg.LastError, arg.NextRunAt)
	return err
}

const deleteSyncJob = `
DELETE FROM sync_jobs WHERE lock_key = $1
`

// DeleteSyncJob removes a sync job, releasing its lock key.
func (q *Queries) DeleteSyncJob(ctx context.Context, lockKey string) error {
	_, err := q.db.ExecContext(ctx, deleteSyncJob, lockKey)
	return err
}

const listSyncJobs = `
SELECT id, lock_key, kind, repository_id, full_name, installation_id,
       state, attempts, next_run_at, last_error, created_at, updated_at
FROM sync_jobs
ORDER BY updated_at DESC
LIMIT $1
`

// ListSyncJobs returns the most recently touched sync jobs.
func (q *Queries) ListSyncJobs(ctx context.Context, limit int32) ([]SyncJob, error) {
	rows, err := q.db.QueryContext(ctx, listSyncJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncJob
	for rows.Next() {
		var j SyncJob
		if err := rows.Scan(
			&j.ID, &j.LockKey, &j.Kind, &j.RepositoryID, &j.FullName, &j.InstallationID,
			&j.State, &j.Attempts, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	return items, rows.Err()
}

func scanSyncJobRow(row *sql.Row) (SyncJob, error) {
	var j SyncJob
	err := row.Scan(
		&j.ID, &j.LockKey, &j.Kind, &j.RepositoryID, &j.FullName, &j.InstallationID,
		&j.State, &j.Attempts, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncJob{}, ErrNotFound
	}
	return j, err
}

const insertWriteOperation = `
INSERT INTO write_operations (
    correlation_id, type, state, repository_id, owner_login, repo_name,
    input_payload, preview_payload, github_entity_number, created_at, updated_at
) VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, $9)
`

// InsertWriteOperationParams are the parameters for InsertWriteOperation.
// GithubEntityNumber is set at insert when the target entity is already
// known (comments, state changes, merges), so a webhook can confirm the
// operation even when the completion patch never landed.
type InsertWriteOperationParams struct {
	CorrelationID      string
	Type               WriteOpType
	RepositoryID       int64
	OwnerLogin         string
	RepoName           string
	InputPayload       pqtype.NullRawMessage
	PreviewPayload     pqtype.NullRawMessage
	GithubEntityNumber sql.NullInt64
	Now                time.Time
}

// InsertWriteOperation records a pending optimistic write operation.
func (q *Queries) InsertWriteOperation(ctx context.Context, arg InsertWriteOperationParams) error {
	_, err := q.db.ExecContext(ctx, insertWriteOperation,
		arg.CorrelationID, arg.Type, arg.RepositoryID, arg.OwnerLogin,
		arg.RepoName, arg.InputPayload, arg.PreviewPayload, arg.GithubEntityNumber, arg.Now)
	return err
}

const getWriteOperation = `
SELECT correlation_id, type, state, repository_id, owner_login, repo_name,
       input_payload, preview_payload, result_payload, github_entity_number,
       error_message, error_status, created_at, updated_at
FROM write_operations WHERE correlation_id = $1
`

// GetWriteOperation fetches a write operation by correlation id.
func (q *Queries) GetWriteOperation(ctx context.Context, correlationID string) (WriteOperation, error) {
	row := q.db.QueryRowContext(ctx, getWriteOperation, correlationID)
	var w WriteOperation
	err := row.Scan(
		&w.CorrelationID, &w.Type, &w.State, &w.RepositoryID, &w.OwnerLogin, &w.RepoName,
		&w.InputPayload, &w.PreviewPayload, &w.ResultPayload, &w.GithubEntityNumber,
		&w.ErrorMessage, &w.ErrorStatus, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WriteOperation{}, ErrNotFound
	}
	return w, err
}

const completeWriteOperation = `
UPDATE write_operations
SET state = 'completed', github_entity_number = $2, result_payload = $3, updated_at = $4
WHERE correlation_id = $1 AND state = 'pending'
`

// CompleteWriteOperationParams are the parameters for CompleteWriteOperation.
type CompleteWriteOperationParams struct {
	CorrelationID      string
	GithubEntityNumber sql.NullInt64
	ResultPayload      pqtype.NullRawMessage
	Now                time.Time
}

// CompleteWriteOperation marks a pending operation completed, filling the
// entity number returned by GitHub. The state guard keeps transitions
// monotone.
func (q *Queries) CompleteWriteOperation(ctx context.Context, arg CompleteWriteOperationParams) error {
	_, err := q.db.ExecContext(ctx, completeWriteOperation,
		arg.CorrelationID, arg.GithubEntityNumber, arg.ResultPayload, arg.Now)
	return err
}

const failWriteOperation = `
UPDATE write_operations
SET state = 'failed', error_message = $2, error_status = $3, updated_at = $4
WHERE correlation_id = $1 AND state = 'pending'
`

// FailWriteOperationParams are the parameters for FailWriteOperation.
type FailWriteOperationParams struct {
	CorrelationID string
	ErrorMessage  string
	ErrorStatus   sql.NullInt32
	Now           time.Time
}

// FailWriteOperation marks a pending operation failed.
func (q *Queries) FailWriteOperation(ctx context.Context, arg FailWriteOperationParams) error {
	_, err := q.db.ExecContext(ctx, failWriteOperation,
		arg.CorrelationID, arg.ErrorMessage, arg.ErrorStatus, arg.Now)
	return err
}

const confirmWriteOperation = `
UPDATE write_operations
SET state = 'confirmed', updated_at = NOW()
WHERE correlation_id = $1 AND state IN ('pending', 'completed')
`

// ConfirmWriteOperation promotes a pending or completed operation to
// confirmed. The bool reports whether a row actually transitioned.
func (q *Queries) ConfirmWriteOperation(ctx context.Context, correlationID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, confirmWriteOperation, correlationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const listRecentWriteOperations = `
SELECT correlation_id, type, state, repository_id, owner_login, repo_name,
       input_payload, preview_payload, result_payload, github_entity_number,
       error_message, error_status, created_at, updated_at
FROM write_operations
WHERE repository_id = $1 AND type = $2 AND github_entity_number = $3
ORDER BY created_at DESC
LIMIT $4
`

// ListRecentWriteOperationsParams are the parameters for ListRecentWriteOperations.
type ListRecentWriteOperationsParams struct {
	RepositoryID       int64
	Type               WriteOpType
	GithubEntityNumber int64
	Limit              int32
}

// ListRecentWriteOperations returns the most recent operations matching the
// reconciliation key, newest first.
func (q *Queries) ListRecentWriteOperations(ctx context.Context, arg ListRecentWriteOperationsParams) ([]WriteOperation, error) {
	rows, err := q.db.QueryContext(ctx, listRecentWriteOperations,
		arg.RepositoryID, arg.Type, arg.GithubEntityNumber, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WriteOperation
	for rows.Next() {
		var w WriteOperation
		if err := rows.Scan(
			&w.CorrelationID, &w.Type, &w.State, &w.RepositoryID, &w.OwnerLogin, &w.RepoName,
			&w.InputPayload, &w.PreviewPayload, &w.ResultPayload, &w.GithubEntityNumber,
			&w.ErrorMessage, &w.ErrorStatus, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

const countWriteOperationsByState = `
SELECT state, COUNT(*) FROM write_operations GROUP BY state
`

// WriteOpStateCount is one row of CountWriteOperationsByState.
type WriteOpStateCount struct {
	State WriteOpState
	Count int64
}

// CountWriteOperationsByState returns write operation counts per state.
func (q *Queries) CountWriteOperationsByState(ctx context.Context) ([]WriteOpStateCount, error) {
	rows, err := q.db.QueryContext(ctx, countWriteOperationsByState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WriteOpStateCount
	for rows.Next() {
		var c WriteOpStateCount
		if err := rows.Scan(&c.State, &c.Count); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
