// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store implementation with the same semantics as
// the Postgres store, including the out-of-order guards and transactional
// rollback. It backs unit tests and local development.
type MemStore struct {
	// txMu serializes transactions; mu guards state for individual queries.
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState
}

var _ Store = (*MemStore)(nil)

type branchKey struct {
	repo int64
	name string
}

type numKey struct {
	repo   int64
	number int64
}

type idKey struct {
	repo int64
	id   int64
}

type shaKey struct {
	repo int64
	sha  string
}

type fileKey struct {
	repo     int64
	number   int64
	filename string
}

type memState struct {
	deliveries    map[string]RawWebhookDelivery
	deadLetters   []DeadLetter
	installations map[int64]Installation
	repos         map[int64]Repository
	syncJobs      map[string]SyncJob
	writeOps      map[string]WriteOperation
	writeOpSeq    map[string]int64
	users         map[int64]User
	branches      map[branchKey]Branch
	commits       map[shaKey]Commit
	prs           map[numKey]PullRequest
	reviews       map[idKey]PullRequestReview
	issues        map[numKey]Issue
	comments      map[idKey]IssueComment
	checkRuns     map[idKey]CheckRun
	prFiles       map[fileKey]PullRequestFile
	wfRuns        map[idKey]WorkflowRun
	wfJobs        map[idKey]WorkflowJob
	overviews     map[int64]RepoOverview
	prList        map[int64][]RepoPullRequestListItem
	issueList     map[int64][]RepoIssueListItem
	activity      map[int64][]ActivityFeedEntry
	seq           int64
}

func newMemState() *memState {
	return &memState{
		deliveries:    map[string]RawWebhookDelivery{},
		installations: map[int64]Installation{},
		repos:         map[int64]Repository{},
		syncJobs:      map[string]SyncJob{},
		writeOps:      map[string]WriteOperation{},
		writeOpSeq:    map[string]int64{},
		users:         map[int64]User{},
		branches:      map[branchKey]Branch{},
		commits:       map[shaKey]Commit{},
		prs:           map[numKey]PullRequest{},
		reviews:       map[idKey]PullRequestReview{},
		issues:        map[numKey]Issue{},
		comments:      map[idKey]IssueComment{},
		checkRuns:     map[idKey]CheckRun{},
		prFiles:       map[fileKey]PullRequestFile{},
		wfRuns:        map[idKey]WorkflowRun{},
		wfJobs:        map[idKey]WorkflowJob{},
		overviews:     map[int64]RepoOverview{},
		prList:        map[int64][]RepoPullRequestListItem{},
		issueList:     map[int64][]RepoIssueListItem{},
		activity:      map[int64][]ActivityFeedEntry{},
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneSliceMap[K comparable, V any](src map[K][]V) map[K][]V {
	dst := make(map[K][]V, len(src))
	for k, v := range src {
		dst[k] = append([]V(nil), v...)
	}
	return dst
}

func (s *memState) clone() *memState {
	return &memState{
		deliveries:    cloneMap(s.deliveries),
		deadLetters:   append([]DeadLetter(nil), s.deadLetters...),
		installations: cloneMap(s.installations),
		repos:         cloneMap(s.repos),
		syncJobs:      cloneMap(s.syncJobs),
		writeOps:      cloneMap(s.writeOps),
		writeOpSeq:    cloneMap(s.writeOpSeq),
		users:         cloneMap(s.users),
		branches:      cloneMap(s.branches),
		commits:       cloneMap(s.commits),
		prs:           cloneMap(s.prs),
		reviews:       cloneMap(s.reviews),
		issues:        cloneMap(s.issues),
		comments:      cloneMap(s.comments),
		checkRuns:     cloneMap(s.checkRuns),
		prFiles:       cloneMap(s.prFiles),
		wfRuns:        cloneMap(s.wfRuns),
		wfJobs:        cloneMap(s.wfJobs),
		overviews:     cloneMap(s.overviews),
		prList:        cloneSliceMap(s.prList),
		issueList:     cloneSliceMap(s.issueList),
		activity:      cloneSliceMap(s.activity),
		seq:           s.seq,
	}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// CheckHealth always succeeds for the in-memory store.
func (*MemStore) CheckHealth(_ context.Context) error {
	return nil
}

// WithTransaction runs fn and restores the pre-transaction state when fn
// returns an error, so a failed handler leaves the store unchanged.
func (m *MemStore) WithTransaction(_ context.Context, fn func(Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// InsertRawDelivery implements Querier.
func (m *MemStore) InsertRawDelivery(_ context.Context, arg InsertRawDeliveryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.deliveries[arg.DeliveryID]; ok {
		return false, nil
	}
	m.state.deliveries[arg.DeliveryID] = RawWebhookDelivery{
		DeliveryID:     arg.DeliveryID,
		EventName:      arg.EventName,
		Action:         arg.Action,
		InstallationID: arg.InstallationID,
		RepositoryID:   arg.RepositoryID,
		SignatureValid: arg.SignatureValid,
		Payload:        arg.Payload,
		ReceivedAt:     arg.ReceivedAt,
		ProcessState:   ProcessStatePending,
	}
	return true, nil
}

// GetRawDelivery implements Querier.
func (m *MemStore) GetRawDelivery(_ context.Context, deliveryID string) (RawWebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[deliveryID]
	if !ok {
		return RawWebhookDelivery{}, ErrNotFound
	}
	return d, nil
}

func (m *MemStore) listDeliveries(filter func(RawWebhookDelivery) bool, less func(a, b RawWebhookDelivery) bool, limit int32) []RawWebhookDelivery {
	var items []RawWebhookDelivery
	for _, d := range m.state.deliveries {
		if filter(d) {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

// ListPendingDeliveries implements Querier.
func (m *MemStore) ListPendingDeliveries(_ context.Context, limit int32) ([]RawWebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listDeliveries(
		func(d RawWebhookDelivery) bool { return d.ProcessState == ProcessStatePending },
		func(a, b RawWebhookDelivery) bool { return a.ReceivedAt.Before(b.ReceivedAt) },
		limit,
	), nil
}

// ListRetryDeliveriesDue implements Querier.
func (m *MemStore) ListRetryDeliveriesDue(_ context.Context, arg ListRetryDeliveriesDueParams) ([]RawWebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listDeliveries(
		func(d RawWebhookDelivery) bool {
			return d.ProcessState == ProcessStateRetry &&
				d.NextRetryAt.Valid && !d.NextRetryAt.Time.After(arg.Now)
		},
		func(a, b RawWebhookDelivery) bool { return a.NextRetryAt.Time.Before(b.NextRetryAt.Time) },
		arg.Limit,
	), nil
}

// ListFailedDeliveries implements Querier.
func (m *MemStore) ListFailedDeliveries(_ context.Context, limit int32) ([]RawWebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listDeliveries(
		func(d RawWebhookDelivery) bool { return d.ProcessState == ProcessStateFailed },
		func(a, b RawWebhookDelivery) bool { return a.ReceivedAt.Before(b.ReceivedAt) },
		limit,
	), nil
}

// MarkDeliveryProcessed implements Querier.
func (m *MemStore) MarkDeliveryProcessed(_ context.Context, arg MarkDeliveryProcessedParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[arg.DeliveryID]
	if !ok {
		return nil
	}
	d.ProcessState = ProcessStateProcessed
	d.ProcessAttempts = arg.Attempts
	d.NextRetryAt = nullTime(nil)
	d.ProcessError = nullString(nil)
	m.state.deliveries[arg.DeliveryID] = d
	return nil
}

// MarkDeliveryRetry implements Querier.
func (m *MemStore) MarkDeliveryRetry(_ context.Context, arg MarkDeliveryRetryParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[arg.DeliveryID]
	if !ok {
		return nil
	}
	d.ProcessState = ProcessStateRetry
	d.ProcessAttempts = arg.Attempts
	d.NextRetryAt = nullTime(&arg.NextRetryAt)
	d.ProcessError = nullString(&arg.ProcessError)
	m.state.deliveries[arg.DeliveryID] = d
	return nil
}

// MarkDeliveryFailed implements Querier.
func (m *MemStore) MarkDeliveryFailed(_ context.Context, arg MarkDeliveryFailedParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[arg.DeliveryID]
	if !ok {
		return nil
	}
	d.ProcessState = ProcessStateFailed
	d.ProcessAttempts = arg.Attempts
	d.NextRetryAt = nullTime(nil)
	d.ProcessError = nullString(&arg.ProcessError)
	m.state.deliveries[arg.DeliveryID] = d
	return nil
}

// PromoteRetryDelivery implements Querier.
func (m *MemStore) PromoteRetryDelivery(_ context.Context, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[deliveryID]
	if !ok || d.ProcessState != ProcessStateRetry {
		return nil
	}
	d.ProcessState = ProcessStatePending
	d.NextRetryAt = nullTime(nil)
	m.state.deliveries[deliveryID] = d
	return nil
}

// ResetDeliveryForReplay implements Querier.
func (m *MemStore) ResetDeliveryForReplay(_ context.Context, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[deliveryID]
	if !ok {
		return nil
	}
	d.ProcessState = ProcessStatePending
	d.NextRetryAt = nullTime(nil)
	d.ProcessError = nullString(nil)
	m.state.deliveries[deliveryID] = d
	return nil
}

// DeleteRawDelivery implements Querier.
func (m *MemStore) DeleteRawDelivery(_ context.Context, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.deliveries, deliveryID)
	return nil
}

// CountDeliveriesByState implements Querier.
func (m *MemStore) CountDeliveriesByState(_ context.Context) ([]DeliveryStateCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[ProcessState]int64{}
	for _, d := range m.state.deliveries {
		counts[d.ProcessState]++
	}
	var items []DeliveryStateCount
	for state, count := range counts {
		items = append(items, DeliveryStateCount{State: state, Count: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].State < items[j].State })
	return items, nil
}

// CountProcessedSince implements Querier.
func (m *MemStore) CountProcessedSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.state.deliveries {
		if d.ProcessState == ProcessStateProcessed && !d.ReceivedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// GetPendingLag implements Querier.
func (m *MemStore) GetPendingLag(_ context.Context, now time.Time) (PendingLag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, max, count int64
	for _, d := range m.state.deliveries {
		if d.ProcessState != ProcessStatePending {
			continue
		}
		age := now.Sub(d.ReceivedAt).Milliseconds()
		total += age
		if age > max {
			max = age
		}
		count++
	}
	if count == 0 {
		return PendingLag{}, nil
	}
	return PendingLag{AvgMs: total / count, MaxMs: max}, nil
}

// CountStaleRetries implements Querier.
func (m *MemStore) CountStaleRetries(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.state.deliveries {
		if d.ProcessState == ProcessStateRetry && d.ReceivedAt.Before(olderThan) {
			n++
		}
	}
	return n, nil
}

// InsertDeadLetter implements Querier.
func (m *MemStore) InsertDeadLetter(_ context.Context, arg InsertDeadLetterParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.deadLetters = append(m.state.deadLetters, DeadLetter{
		ID:           arg.ID,
		DeliveryID:   arg.DeliveryID,
		EventName:    arg.EventName,
		Action:       arg.Action,
		RepositoryID: arg.RepositoryID,
		Payload:      arg.Payload,
		Reason:       arg.Reason,
		CreatedAt:    arg.CreatedAt,
	})
	return nil
}

// ListDeadLetters implements Querier.
func (m *MemStore) ListDeadLetters(_ context.Context, limit int32) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]DeadLetter(nil), m.state.deadLetters...)
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// CountDeadLetters implements Querier.
func (m *MemStore) CountDeadLetters(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.state.deadLetters)), nil
}

// UpsertInstallation implements Querier.
func (m *MemStore) UpsertInstallation(_ context.Context, arg UpsertInstallationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.state.installations[arg.ID]
	created := arg.Now
	if ok {
		created = existing.CreatedAt
	}
	m.state.installations[arg.ID] = Installation{
		ID:           arg.ID,
		AccountLogin: arg.AccountLogin,
		AccountKind:  arg.AccountKind,
		SuspendedAt:  arg.SuspendedAt,
		CreatedAt:    created,
		UpdatedAt:    arg.Now,
	}
	return nil
}

// GetInstallation implements Querier.
func (m *MemStore) GetInstallation(_ context.Context, installationID int64) (Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.state.installations[installationID]
	if !ok {
		return Installation{}, ErrNotFound
	}
	return i, nil
}

// UpsertRepository implements Querier.
func (m *MemStore) UpsertRepository(_ context.Context, arg UpsertRepositoryParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.state.repos[arg.ID]
	created := arg.Now
	if ok {
		created = existing.CreatedAt
	}
	m.state.repos[arg.ID] = Repository{
		ID:              arg.ID,
		InstallationID:  arg.InstallationID,
		OwnerLogin:      arg.OwnerLogin,
		Name:            arg.Name,
		FullName:        arg.FullName,
		Visibility:      arg.Visibility,
		DefaultBranch:   arg.DefaultBranch,
		IsArchived:      arg.IsArchived,
		IsDisabled:      arg.IsDisabled,
		IsFork:          arg.IsFork,
		PushedAt:        arg.PushedAt,
		GithubUpdatedAt: arg.GithubUpdatedAt,
		CreatedAt:       created,
		UpdatedAt:       arg.Now,
	}
	return nil
}

// GetRepository implements Querier.
func (m *MemStore) GetRepository(_ context.Context, repositoryID int64) (Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.repos[repositoryID]
	if !ok {
		return Repository{}, ErrNotFound
	}
	return r, nil
}

// GetRepositoryByOwnerName implements Querier.
func (m *MemStore) GetRepositoryByOwnerName(_ context.Context, arg GetRepositoryByOwnerNameParams) (Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.state.repos {
		if r.OwnerLogin == arg.OwnerLogin && r.Name == arg.Name {
			return r, nil
		}
	}
	return Repository{}, ErrNotFound
}

// ListRepositories implements Querier.
func (m *MemStore) ListRepositories(_ context.Context, limit int32) ([]Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Repository
	for _, r := range m.state.repos {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].FullName < items[j].FullName })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// CountRepositories implements Querier.
func (m *MemStore) CountRepositories(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.state.repos)), nil
}

// InsertSyncJob implements Querier.
func (m *MemStore) InsertSyncJob(_ context.Context, arg InsertSyncJobParams) (SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.syncJobs[arg.LockKey]; ok {
		return SyncJob{}, &uniqueViolationError{constraint: "sync_jobs_lock_key_key"}
	}
	j := SyncJob{
		ID:             arg.ID,
		LockKey:        arg.LockKey,
		Kind:           arg.Kind,
		RepositoryID:   arg.RepositoryID,
		FullName:       arg.FullName,
		InstallationID: arg.InstallationID,
		State:          SyncJobStatePending,
		CreatedAt:      arg.Now,
		UpdatedAt:      arg.Now,
	}
	m.state.syncJobs[arg.LockKey] = j
	return j, nil
}

// GetSyncJobByLockKey implements Querier.
func (m *MemStore) GetSyncJobByLockKey(_ context.Context, lockKey string) (SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.state.syncJobs[lockKey]
	if !ok {
		return SyncJob{}, ErrNotFound
	}
	return j, nil
}

// AcquireSyncJob implements Querier.
func (m *MemStore) AcquireSyncJob(_ context.Context, lockKey string) (SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.state.syncJobs[lockKey]
	if !ok || (j.State != SyncJobStatePending && j.State != SyncJobStateRetry) {
		return SyncJob{}, ErrNotFound
	}
	j.State = SyncJobStateRunning
	j.Attempts++
	j.UpdatedAt = time.Now().UTC()
	m.state.syncJobs[lockKey] = j
	return j, nil
}

// FinishSyncJob implements Querier.
func (m *MemStore) FinishSyncJob(_ context.Context, arg FinishSyncJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.state.syncJobs[arg.LockKey]
	if !ok {
		return nil
	}
	j.State = arg.State
	j.LastError = arg.LastError
	j.NextRunAt = arg.NextRunAt
	j.UpdatedAt = time.Now().UTC()
	m.state.syncJobs[arg.LockKey] = j
	return nil
}

// DeleteSyncJob implements Querier.
func (m *MemStore) DeleteSyncJob(_ context.Context, lockKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.syncJobs, lockKey)
	return nil
}

// ListSyncJobs implements Querier.
func (m *MemStore) ListSyncJobs(_ context.Context, limit int32) ([]SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []SyncJob
	for _, j := range m.state.syncJobs {
		items = append(items, j)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// InsertWriteOperation implements Querier.
func (m *MemStore) InsertWriteOperation(_ context.Context, arg InsertWriteOperationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.writeOps[arg.CorrelationID]; ok {
		return &uniqueViolationError{constraint: "write_operations_pkey"}
	}
	m.state.seq++
	m.state.writeOpSeq[arg.CorrelationID] = m.state.seq
	m.state.writeOps[arg.CorrelationID] = WriteOperation{
		CorrelationID:      arg.CorrelationID,
		Type:               arg.Type,
		State:              WriteOpStatePending,
		RepositoryID:       arg.RepositoryID,
		OwnerLogin:         arg.OwnerLogin,
		RepoName:           arg.RepoName,
		InputPayload:       arg.InputPayload,
		PreviewPayload:     arg.PreviewPayload,
		GithubEntityNumber: arg.GithubEntityNumber,
		CreatedAt:          arg.Now,
		UpdatedAt:          arg.Now,
	}
	return nil
}

// GetWriteOperation implements Querier.
func (m *MemStore) GetWriteOperation(_ context.Context, correlationID string) (WriteOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.writeOps[correlationID]
	if !ok {
		return WriteOperation{}, ErrNotFound
	}
	return w, nil
}

// CompleteWriteOperation implements Querier.
func (m *MemStore) CompleteWriteOperation(_ context.Context, arg CompleteWriteOperationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.writeOps[arg.CorrelationID]
	if !ok || w.State != WriteOpStatePending {
		return nil
	}
	w.State = WriteOpStateCompleted
	w.GithubEntityNumber = arg.GithubEntityNumber
	w.ResultPayload = arg.ResultPayload
	w.UpdatedAt = arg.Now
	m.state.writeOps[arg.CorrelationID] = w
	return nil
}

// FailWriteOperation implements Querier.
func (m *MemStore) FailWriteOperation(_ context.Context, arg FailWriteOperationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.writeOps[arg.CorrelationID]
	if !ok || w.State != WriteOpStatePending {
		return nil
	}
	w.State = WriteOpStateFailed
	w.ErrorMessage = nullString(&arg.ErrorMessage)
	w.ErrorStatus = arg.ErrorStatus
	w.UpdatedAt = arg.Now
	m.state.writeOps[arg.CorrelationID] = w
	return nil
}

// ConfirmWriteOperation implements Querier.
func (m *MemStore) ConfirmWriteOperation(_ context.Context, correlationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.writeOps[correlationID]
	if !ok || (w.State != WriteOpStatePending && w.State != WriteOpStateCompleted) {
		return false, nil
	}
	w.State = WriteOpStateConfirmed
	w.UpdatedAt = time.Now().UTC()
	m.state.writeOps[correlationID] = w
	return true, nil
}

// ListRecentWriteOperations implements Querier.
func (m *MemStore) ListRecentWriteOperations(_ context.Context, arg ListRecentWriteOperationsParams) ([]WriteOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []WriteOperation
	for _, w := range m.state.writeOps {
		if w.RepositoryID == arg.RepositoryID && w.Type == arg.Type &&
			w.GithubEntityNumber.Valid && w.GithubEntityNumber.Int64 == arg.GithubEntityNumber {
			items = append(items, w)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return m.state.writeOpSeq[items[i].CorrelationID] > m.state.writeOpSeq[items[j].CorrelationID]
	})
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// CountWriteOperationsByState implements Querier.
func (m *MemStore) CountWriteOperationsByState(_ context.Context) ([]WriteOpStateCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[WriteOpState]int64{}
	for _, w := range m.state.writeOps {
		counts[w.State]++
	}
	var items []WriteOpStateCount
	for state, count := range counts {
		items = append(items, WriteOpStateCount{State: state, Count: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].State < items[j].State })
	return items, nil
}

// UpsertUser implements Querier.
func (m *MemStore) UpsertUser(_ context.Context, arg UpsertUserParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[arg.ID] = User{
		ID:        arg.ID,
		Login:     arg.Login,
		AvatarURL: arg.AvatarURL,
		Kind:      arg.Kind,
		UpdatedAt: arg.Now,
	}
	return nil
}

// GetUser implements Querier.
func (m *MemStore) GetUser(_ context.Context, userID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// UpsertBranch implements Querier.
func (m *MemStore) UpsertBranch(_ context.Context, arg UpsertBranchParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.branches[branchKey{arg.RepositoryID, arg.Name}] = Branch{
		RepositoryID: arg.RepositoryID,
		Name:         arg.Name,
		HeadSha:      arg.HeadSha,
		UpdatedAt:    arg.Now,
	}
	return nil
}

// InsertBranchIfAbsent implements Querier.
func (m *MemStore) InsertBranchIfAbsent(_ context.Context, arg InsertBranchIfAbsentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := branchKey{arg.RepositoryID, arg.Name}
	if _, ok := m.state.branches[key]; ok {
		return nil
	}
	m.state.branches[key] = Branch{
		RepositoryID: arg.RepositoryID,
		Name:         arg.Name,
		HeadSha:      arg.HeadSha,
		UpdatedAt:    arg.Now,
	}
	return nil
}

// GetBranch implements Querier.
func (m *MemStore) GetBranch(_ context.Context, arg GetBranchParams) (Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.branches[branchKey{arg.RepositoryID, arg.Name}]
	if !ok {
		return Branch{}, ErrNotFound
	}
	return b, nil
}

// DeleteBranch implements Querier.
func (m *MemStore) DeleteBranch(_ context.Context, arg DeleteBranchParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.branches, branchKey{arg.RepositoryID, arg.Name})
	return nil
}

// ListBranches implements Querier.
func (m *MemStore) ListBranches(_ context.Context, repositoryID int64) ([]Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Branch
	for _, b := range m.state.branches {
		if b.RepositoryID == repositoryID {
			items = append(items, b)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// InsertCommitIfAbsent implements Querier.
func (m *MemStore) InsertCommitIfAbsent(_ context.Context, arg InsertCommitIfAbsentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shaKey{arg.RepositoryID, arg.Sha}
	if _, ok := m.state.commits[key]; ok {
		return nil
	}
	m.state.commits[key] = Commit{
		RepositoryID:    arg.RepositoryID,
		Sha:             arg.Sha,
		MessageHeadline: arg.MessageHeadline,
		AuthorUserID:    arg.AuthorUserID,
		CommitterUserID: arg.CommitterUserID,
		AuthoredAt:      arg.AuthoredAt,
		CommittedAt:     arg.CommittedAt,
	}
	return nil
}

// GetCommit implements Querier.
func (m *MemStore) GetCommit(_ context.Context, arg GetCommitParams) (Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.commits[shaKey{arg.RepositoryID, arg.Sha}]
	if !ok {
		return Commit{}, ErrNotFound
	}
	return c, nil
}

// UpsertPullRequest implements Querier.
func (m *MemStore) UpsertPullRequest(_ context.Context, arg UpsertPullRequestParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := numKey{arg.RepositoryID, arg.Number}
	if existing, ok := m.state.prs[key]; ok {
		// out-of-order guard
		if arg.GithubUpdatedAt.Before(existing.GithubUpdatedAt) {
			return false, nil
		}
	}
	m.state.prs[key] = PullRequest{
		RepositoryID:            arg.RepositoryID,
		Number:                  arg.Number,
		GithubPrID:              arg.GithubPrID,
		State:                   arg.State,
		IsDraft:                 arg.IsDraft,
		Title:                   arg.Title,
		Body:                    arg.Body,
		AuthorUserID:            arg.AuthorUserID,
		HeadRef:                 arg.HeadRef,
		HeadSha:                 arg.HeadSha,
		BaseRef:                 arg.BaseRef,
		AssigneeLogins:          arg.AssigneeLogins,
		RequestedReviewerLogins: arg.RequestedReviewerLogins,
		MergeableState:          arg.MergeableState,
		CommentCount:            arg.CommentCount,
		ReviewCount:             arg.ReviewCount,
		MergedAt:                arg.MergedAt,
		ClosedAt:                arg.ClosedAt,
		GithubUpdatedAt:         arg.GithubUpdatedAt,
	}
	return true, nil
}

// GetPullRequest implements Querier.
func (m *MemStore) GetPullRequest(_ context.Context, arg GetPullRequestParams) (PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.prs[numKey{arg.RepositoryID, arg.Number}]
	if !ok {
		return PullRequest{}, ErrNotFound
	}
	return p, nil
}

func (m *MemStore) listPRs(repositoryID int64, filter func(PullRequest) bool) []PullRequest {
	var items []PullRequest
	for _, p := range m.state.prs {
		if p.RepositoryID == repositoryID && filter(p) {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].GithubUpdatedAt.After(items[j].GithubUpdatedAt)
	})
	return items
}

// ListPullRequests implements Querier.
func (m *MemStore) ListPullRequests(_ context.Context, repositoryID int64) ([]PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPRs(repositoryID, func(PullRequest) bool { return true }), nil
}

// ListOpenPullRequests implements Querier.
func (m *MemStore) ListOpenPullRequests(_ context.Context, repositoryID int64) ([]PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPRs(repositoryID, func(p PullRequest) bool { return p.State == "open" }), nil
}

// UpsertPullRequestReview implements Querier.
func (m *MemStore) UpsertPullRequestReview(_ context.Context, arg UpsertPullRequestReviewParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.reviews[idKey{arg.RepositoryID, arg.GithubReviewID}] = PullRequestReview{
		RepositoryID:      arg.RepositoryID,
		GithubReviewID:    arg.GithubReviewID,
		PullRequestNumber: arg.PullRequestNumber,
		ReviewerUserID:    arg.ReviewerUserID,
		State:             arg.State,
		CommitSha:         arg.CommitSha,
		SubmittedAt:       arg.SubmittedAt,
	}
	return nil
}

// ListReviewsForPullRequest implements Querier.
func (m *MemStore) ListReviewsForPullRequest(_ context.Context, arg ListReviewsForPullRequestParams) ([]PullRequestReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []PullRequestReview
	for _, r := range m.state.reviews {
		if r.RepositoryID == arg.RepositoryID && r.PullRequestNumber == arg.PullRequestNumber {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmittedAt.Time.Before(items[j].SubmittedAt.Time)
	})
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// CountReviewsForPullRequest implements Querier.
func (m *MemStore) CountReviewsForPullRequest(_ context.Context, arg CountReviewsForPullRequestParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.state.reviews {
		if r.RepositoryID == arg.RepositoryID && r.PullRequestNumber == arg.PullRequestNumber {
			n++
		}
	}
	return n, nil
}

// UpsertIssue implements Querier.
func (m *MemStore) UpsertIssue(_ context.Context, arg UpsertIssueParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := numKey{arg.RepositoryID, arg.Number}
	if existing, ok := m.state.issues[key]; ok {
		// out-of-order guard
		if arg.GithubUpdatedAt.Before(existing.GithubUpdatedAt) {
			return false, nil
		}
	}
	m.state.issues[key] = Issue{
		RepositoryID:    arg.RepositoryID,
		Number:          arg.Number,
		GithubIssueID:   arg.GithubIssueID,
		State:           arg.State,
		Title:           arg.Title,
		Body:            arg.Body,
		LabelNames:      arg.LabelNames,
		AssigneeLogins:  arg.AssigneeLogins,
		AuthorUserID:    arg.AuthorUserID,
		IsPullRequest:   arg.IsPullRequest,
		CommentCount:    arg.CommentCount,
		ClosedAt:        arg.ClosedAt,
		GithubUpdatedAt: arg.GithubUpdatedAt,
	}
	return true, nil
}

// GetIssue implements Querier.
func (m *MemStore) GetIssue(_ context.Context, arg GetIssueParams) (Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.state.issues[numKey{arg.RepositoryID, arg.Number}]
	if !ok {
		return Issue{}, ErrNotFound
	}
	return i, nil
}

// ListIssues implements Querier.
func (m *MemStore) ListIssues(_ context.Context, repositoryID int64) ([]Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Issue
	for _, i := range m.state.issues {
		if i.RepositoryID == repositoryID {
			items = append(items, i)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].GithubUpdatedAt.After(items[j].GithubUpdatedAt)
	})
	return items, nil
}

// UpsertIssueComment implements Querier.
func (m *MemStore) UpsertIssueComment(_ context.Context, arg UpsertIssueCommentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.comments[idKey{arg.RepositoryID, arg.GithubCommentID}] = IssueComment{
		RepositoryID:    arg.RepositoryID,
		GithubCommentID: arg.GithubCommentID,
		IssueNumber:     arg.IssueNumber,
		AuthorUserID:    arg.AuthorUserID,
		Body:            arg.Body,
		CreatedAt:       arg.CreatedAt,
		UpdatedAt:       arg.UpdatedAt,
	}
	return nil
}

// DeleteIssueComment implements Querier.
func (m *MemStore) DeleteIssueComment(_ context.Context, arg DeleteIssueCommentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.comments, idKey{arg.RepositoryID, arg.GithubCommentID})
	return nil
}

// ListCommentsForIssue implements Querier.
func (m *MemStore) ListCommentsForIssue(_ context.Context, arg ListCommentsForIssueParams) ([]IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []IssueComment
	for _, c := range m.state.comments {
		if c.RepositoryID == arg.RepositoryID && c.IssueNumber == arg.IssueNumber {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// CountCommentsForIssue implements Querier.
func (m *MemStore) CountCommentsForIssue(_ context.Context, arg CountCommentsForIssueParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.state.comments {
		if c.RepositoryID == arg.RepositoryID && c.IssueNumber == arg.IssueNumber {
			n++
		}
	}
	return n, nil
}

// UpsertCheckRun implements Querier.
func (m *MemStore) UpsertCheckRun(_ context.Context, arg UpsertCheckRunParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.checkRuns[idKey{arg.RepositoryID, arg.GithubCheckRunID}] = CheckRun{
		RepositoryID:     arg.RepositoryID,
		GithubCheckRunID: arg.GithubCheckRunID,
		Name:             arg.Name,
		HeadSha:          arg.HeadSha,
		Status:           arg.Status,
		Conclusion:       arg.Conclusion,
		StartedAt:        arg.StartedAt,
		CompletedAt:      arg.CompletedAt,
	}
	return nil
}

// ListCheckRunsForSha implements Querier.
func (m *MemStore) ListCheckRunsForSha(_ context.Context, arg ListCheckRunsForShaParams) ([]CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []CheckRun
	for _, c := range m.state.checkRuns {
		if c.RepositoryID == arg.RepositoryID && c.HeadSha == arg.HeadSha {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		// started_at DESC NULLS LAST
		a, b := items[i].StartedAt, items[j].StartedAt
		switch {
		case a.Valid && b.Valid:
			return a.Time.After(b.Time)
		case a.Valid:
			return true
		default:
			return false
		}
	})
	return items, nil
}

// CountFailingCheckRuns implements Querier.
func (m *MemStore) CountFailingCheckRuns(_ context.Context, repositoryID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.state.checkRuns {
		if c.RepositoryID == repositoryID && c.Conclusion.Valid && c.Conclusion.String == "failure" {
			n++
		}
	}
	return n, nil
}

// UpsertPullRequestFile implements Querier.
func (m *MemStore) UpsertPullRequestFile(_ context.Context, arg UpsertPullRequestFileParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.prFiles[fileKey{arg.RepositoryID, arg.PullRequestNumber, arg.Filename}] = PullRequestFile{
		RepositoryID:      arg.RepositoryID,
		PullRequestNumber: arg.PullRequestNumber,
		Filename:          arg.Filename,
		Status:            arg.Status,
		Additions:         arg.Additions,
		Deletions:         arg.Deletions,
		Changes:           arg.Changes,
		Patch:             arg.Patch,
		HeadSha:           arg.HeadSha,
		CachedAt:          arg.CachedAt,
	}
	return nil
}

// ListPullRequestFiles implements Querier.
func (m *MemStore) ListPullRequestFiles(_ context.Context, arg ListPullRequestFilesParams) ([]PullRequestFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []PullRequestFile
	for _, f := range m.state.prFiles {
		if f.RepositoryID == arg.RepositoryID && f.PullRequestNumber == arg.PullRequestNumber {
			items = append(items, f)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.Compare(items[i].Filename, items[j].Filename) < 0
	})
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// UpsertWorkflowRun implements Querier.
func (m *MemStore) UpsertWorkflowRun(_ context.Context, arg UpsertWorkflowRunParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.wfRuns[idKey{arg.RepositoryID, arg.GithubRunID}] = WorkflowRun{
		RepositoryID:    arg.RepositoryID,
		GithubRunID:     arg.GithubRunID,
		Name:            arg.Name,
		HeadBranch:      arg.HeadBranch,
		HeadSha:         arg.HeadSha,
		Status:          arg.Status,
		Conclusion:      arg.Conclusion,
		RunNumber:       arg.RunNumber,
		GithubUpdatedAt: arg.GithubUpdatedAt,
	}
	return nil
}

// UpsertWorkflowJob implements Querier.
func (m *MemStore) UpsertWorkflowJob(_ context.Context, arg UpsertWorkflowJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.wfJobs[idKey{arg.RepositoryID, arg.GithubJobID}] = WorkflowJob{
		RepositoryID: arg.RepositoryID,
		GithubJobID:  arg.GithubJobID,
		GithubRunID:  arg.GithubRunID,
		Name:         arg.Name,
		Status:       arg.Status,
		Conclusion:   arg.Conclusion,
		StartedAt:    arg.StartedAt,
		CompletedAt:  arg.CompletedAt,
	}
	return nil
}

// ListWorkflowRuns implements Querier.
func (m *MemStore) ListWorkflowRuns(_ context.Context, arg ListWorkflowRunsParams) ([]WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []WorkflowRun
	for _, w := range m.state.wfRuns {
		if w.RepositoryID == arg.RepositoryID {
			items = append(items, w)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].GithubRunID > items[j].GithubRunID })
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// UpsertRepoOverview implements Querier.
func (m *MemStore) UpsertRepoOverview(_ context.Context, arg UpsertRepoOverviewParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.overviews[arg.RepositoryID] = RepoOverview{
		RepositoryID:      arg.RepositoryID,
		OpenPrCount:       arg.OpenPrCount,
		OpenIssueCount:    arg.OpenIssueCount,
		FailingCheckCount: arg.FailingCheckCount,
		LastPushAt:        arg.LastPushAt,
		UpdatedAt:         arg.Now,
	}
	return nil
}

// GetRepoOverview implements Querier.
func (m *MemStore) GetRepoOverview(_ context.Context, repositoryID int64) (RepoOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.overviews[repositoryID]
	if !ok {
		return RepoOverview{}, ErrNotFound
	}
	return o, nil
}

// ListRepoOverviews implements Querier.
func (m *MemStore) ListRepoOverviews(_ context.Context, limit int32) ([]RepoOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []RepoOverview
	for _, o := range m.state.overviews {
		items = append(items, o)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].LastPushAt, items[j].LastPushAt
		switch {
		case a.Valid && b.Valid:
			return a.Time.After(b.Time)
		case a.Valid:
			return true
		default:
			return false
		}
	})
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// CountRepoOverviews implements Querier.
func (m *MemStore) CountRepoOverviews(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.state.overviews)), nil
}

// DeleteRepoPullRequestList implements Querier.
func (m *MemStore) DeleteRepoPullRequestList(_ context.Context, repositoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.prList, repositoryID)
	return nil
}

// InsertRepoPullRequestListItem implements Querier.
func (m *MemStore) InsertRepoPullRequestListItem(_ context.Context, arg InsertRepoPullRequestListItemParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.prList[arg.RepositoryID] = append(m.state.prList[arg.RepositoryID], RepoPullRequestListItem{
		RepositoryID:        arg.RepositoryID,
		Number:              arg.Number,
		Title:               arg.Title,
		State:               arg.State,
		IsDraft:             arg.IsDraft,
		AuthorLogin:         arg.AuthorLogin,
		AuthorAvatarURL:     arg.AuthorAvatarURL,
		CommentCount:        arg.CommentCount,
		ReviewCount:         arg.ReviewCount,
		LastCheckConclusion: arg.LastCheckConclusion,
		SortUpdated:         arg.SortUpdated,
	})
	return nil
}

// ListRepoPullRequestList implements Querier.
func (m *MemStore) ListRepoPullRequestList(_ context.Context, arg ListRepoPullRequestListParams) ([]RepoPullRequestListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []RepoPullRequestListItem
	for _, it := range m.state.prList[arg.RepositoryID] {
		if arg.Before.Valid && !it.SortUpdated.Before(arg.Before.Time) {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortUpdated.After(items[j].SortUpdated) })
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// DeleteRepoIssueList implements Querier.
func (m *MemStore) DeleteRepoIssueList(_ context.Context, repositoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.issueList, repositoryID)
	return nil
}

// InsertRepoIssueListItem implements Querier.
func (m *MemStore) InsertRepoIssueListItem(_ context.Context, arg InsertRepoIssueListItemParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.issueList[arg.RepositoryID] = append(m.state.issueList[arg.RepositoryID], RepoIssueListItem{
		RepositoryID:    arg.RepositoryID,
		Number:          arg.Number,
		Title:           arg.Title,
		State:           arg.State,
		AuthorLogin:     arg.AuthorLogin,
		AuthorAvatarURL: arg.AuthorAvatarURL,
		CommentCount:    arg.CommentCount,
		LabelNames:      arg.LabelNames,
		SortUpdated:     arg.SortUpdated,
	})
	return nil
}

// ListRepoIssueList implements Querier.
func (m *MemStore) ListRepoIssueList(_ context.Context, arg ListRepoIssueListParams) ([]RepoIssueListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []RepoIssueListItem
	for _, it := range m.state.issueList[arg.RepositoryID] {
		if arg.Before.Valid && !it.SortUpdated.Before(arg.Before.Time) {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortUpdated.After(items[j].SortUpdated) })
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// InsertActivityFeedEntry implements Querier.
func (m *MemStore) InsertActivityFeedEntry(_ context.Context, arg InsertActivityFeedEntryParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.activity[arg.RepositoryID] = append(m.state.activity[arg.RepositoryID], ActivityFeedEntry{
		ID:             arg.ID,
		RepositoryID:   arg.RepositoryID,
		ActivityType:   arg.ActivityType,
		Title:          arg.Title,
		Description:    arg.Description,
		ActorLogin:     arg.ActorLogin,
		ActorAvatarURL: arg.ActorAvatarURL,
		EntityNumber:   arg.EntityNumber,
		CreatedAt:      arg.CreatedAt,
	})
	return nil
}

// ListActivityFeed implements Querier.
func (m *MemStore) ListActivityFeed(_ context.Context, arg ListActivityFeedParams) ([]ActivityFeedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []ActivityFeedEntry
	for _, e := range m.state.activity[arg.RepositoryID] {
		if arg.Before.Valid && !e.CreatedAt.Before(arg.Before.Time) {
			continue
		}
		items = append(items, e)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if arg.Limit > 0 && int(arg.Limit) < len(items) {
		items = items[:arg.Limit]
	}
	return items, nil
}

// GetTableCounts implements Querier.
func (m *MemStore) GetTableCounts(_ context.Context) (TableCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	capCount := func(n int) int64 {
		if n > tableCountCap {
			return tableCountCap
		}
		return int64(n)
	}
	return TableCounts{
		Repositories:  capCount(len(m.state.repos)),
		RawDeliveries: capCount(len(m.state.deliveries)),
		DeadLetters:   capCount(len(m.state.deadLetters)),
		Users:         capCount(len(m.state.users)),
		PullRequests:  capCount(len(m.state.prs)),
		Issues:        capCount(len(m.state.issues)),
		IssueComments: capCount(len(m.state.comments)),
		CheckRuns:     capCount(len(m.state.checkRuns)),
		Branches:      capCount(len(m.state.branches)),
		Commits:       capCount(len(m.state.commits)),
		WriteOps:      capCount(len(m.state.writeOps)),
		SyncJobs:      capCount(len(m.state.syncJobs)),
	}, nil
}
