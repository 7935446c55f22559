// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package writeops tracks client-initiated GitHub mutations. An operation
// is recorded optimistically before the REST call, patched with the
// outcome, and later confirmed by the webhook that announces the effect.
package writeops

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"
	"github.com/sqlc-dev/pqtype"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/gh"
)

// GitHubMutator is the outbound mutation surface the executor needs.
// The gh.Client satisfies it; tests substitute a fake.
type GitHubMutator interface {
	CreateIssue(ctx context.Context, owner, repo, title, body string) (*gogithub.Issue, error)
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*gogithub.IssueComment, error)
	UpdateIssueState(ctx context.Context, owner, repo string, number int, state string) (*gogithub.Issue, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, commitMessage string) (*gogithub.PullRequestMergeResult, error)
}

var _ GitHubMutator = (*gh.Client)(nil)

// ErrUnknownOperationType is returned for a request with an unsupported type.
var ErrUnknownOperationType = errors.New("unknown write operation type")

// Request describes one client mutation. CorrelationID must be unique;
// a duplicate submission is rejected by the store.
type Request struct {
	CorrelationID string         `json:"correlation_id"`
	Type          db.WriteOpType `json:"type"`
	RepositoryID  int64          `json:"repository_id"`
	Owner         string         `json:"owner"`
	Repo          string         `json:"repo"`

	// create_issue
	Title string `json:"title,omitempty"`
	// create_issue and create_comment
	Body string `json:"body,omitempty"`
	// create_comment, update_issue_state and merge_pull_request
	IssueNumber int64 `json:"issue_number,omitempty"`
	// update_issue_state: "open" or "closed"
	State string `json:"state,omitempty"`
	// merge_pull_request
	CommitMessage string `json:"commit_message,omitempty"`
}

// Result is the outcome of a submitted operation.
type Result struct {
	CorrelationID      string
	State              db.WriteOpState
	GithubEntityNumber int64
	ErrorMessage       string
}

// Service executes write operations against GitHub and records their
// lifecycle in the store.
type Service struct {
	store db.Store
}

// NewService creates a write operation service.
func NewService(store db.Store) *Service {
	return &Service{store: store}
}

// Submit records the operation as pending, performs the REST mutation
// with the caller's client, and patches the row with the outcome. The
// mutation failure is reported in the result, not as an error: the
// operation row is the durable record of what happened.
func (s *Service) Submit(ctx context.Context, client GitHubMutator, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	input, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encoding request: %w", err)
	}

	err = s.store.InsertWriteOperation(ctx, db.InsertWriteOperationParams{
		CorrelationID:  req.CorrelationID,
		Type:           req.Type,
		RepositoryID:   req.RepositoryID,
		OwnerLogin:     req.Owner,
		RepoName:       req.Repo,
		InputPayload:   pqtype.NullRawMessage{RawMessage: input, Valid: true},
		PreviewPayload: previewFor(req),
		// Known up front for everything but create_issue, whose number
		// only exists once GitHub assigns it.
		GithubEntityNumber: sql.NullInt64{Int64: req.IssueNumber, Valid: req.IssueNumber != 0},
		Now:                time.Now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("recording write operation: %w", err)
	}

	entityNumber, result, execErr := s.execute(ctx, client, req)
	if execErr != nil {
		s.markFailed(ctx, req.CorrelationID, execErr)
		return Result{
			CorrelationID: req.CorrelationID,
			State:         db.WriteOpStateFailed,
			ErrorMessage:  execErr.Error(),
		}, nil
	}

	err = s.store.CompleteWriteOperation(ctx, db.CompleteWriteOperationParams{
		CorrelationID:      req.CorrelationID,
		GithubEntityNumber: sql.NullInt64{Int64: entityNumber, Valid: entityNumber != 0},
		ResultPayload:      result,
		Now:                time.Now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("completing write operation: %w", err)
	}

	return Result{
		CorrelationID:      req.CorrelationID,
		State:              db.WriteOpStateCompleted,
		GithubEntityNumber: entityNumber,
	}, nil
}

func validateRequest(req Request) error {
	if req.CorrelationID == "" {
		return errors.New("correlation id is required")
	}
	if req.Owner == "" || req.Repo == "" {
		return errors.New("repository coordinates are required")
	}

	switch req.Type {
	case db.WriteOpTypeCreateIssue:
		if req.Title == "" {
			return errors.New("issue title is required")
		}
	case db.WriteOpTypeCreateComment:
		if req.IssueNumber == 0 || req.Body == "" {
			return errors.New("issue number and body are required")
		}
	case db.WriteOpTypeUpdateIssueState:
		if req.IssueNumber == 0 || (req.State != "open" && req.State != "closed") {
			return errors.New("issue number and a state of open or closed are required")
		}
	case db.WriteOpTypeMergePullRequest:
		if req.IssueNumber == 0 {
			return errors.New("pull request number is required")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperationType, req.Type)
	}
	return nil
}

func (s *Service) execute(
	ctx context.Context,
	client GitHubMutator,
	req Request,
) (int64, pqtype.NullRawMessage, error) {
	switch req.Type {
	case db.WriteOpTypeCreateIssue:
		issue, err := client.CreateIssue(ctx, req.Owner, req.Repo, req.Title, req.Body)
		if err != nil {
			return 0, pqtype.NullRawMessage{}, err
		}
		return int64(issue.GetNumber()), rawResult(issue), nil

	case db.WriteOpTypeCreateComment:
		comment, err := client.CreateIssueComment(ctx, req.Owner, req.Repo, int(req.IssueNumber), req.Body)
		if err != nil {
			return 0, pqtype.NullRawMessage{}, err
		}
		return req.IssueNumber, rawResult(comment), nil

	case db.WriteOpTypeUpdateIssueState:
		issue, err := client.UpdateIssueState(ctx, req.Owner, req.Repo, int(req.IssueNumber), req.State)
		if err != nil {
			return 0, pqtype.NullRawMessage{}, err
		}
		return int64(issue.GetNumber()), rawResult(issue), nil

	case db.WriteOpTypeMergePullRequest:
		merge, err := client.MergePullRequest(ctx, req.Owner, req.Repo, int(req.IssueNumber), req.CommitMessage)
		if err != nil {
			return 0, pqtype.NullRawMessage{}, err
		}
		return req.IssueNumber, rawResult(merge), nil
	}

	return 0, pqtype.NullRawMessage{}, fmt.Errorf("%w: %s", ErrUnknownOperationType, req.Type)
}

func (s *Service) markFailed(ctx context.Context, correlationID string, execErr error) {
	err := s.store.FailWriteOperation(ctx, db.FailWriteOperationParams{
		CorrelationID: correlationID,
		ErrorMessage:  execErr.Error(),
		ErrorStatus:   statusOf(execErr),
		Now:           time.Now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("correlation_id", correlationID).
			Msg("failed to record write operation failure")
	}
}

func statusOf(err error) sql.NullInt32 {
	switch {
	case errors.Is(err, gh.ErrNotFound):
		return sql.NullInt32{Int32: http.StatusNotFound, Valid: true}
	case errors.Is(err, gh.ErrNotAuthenticated):
		return sql.NullInt32{Int32: http.StatusUnauthorized, Valid: true}
	case errors.Is(err, gh.ErrInsufficientPermission):
		return sql.NullInt32{Int32: http.StatusForbidden, Valid: true}
	}
	if _, ok := gh.AsRateLimit(err); ok {
		return sql.NullInt32{Int32: http.StatusTooManyRequests, Valid: true}
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return sql.NullInt32{Int32: int32(ghErr.Response.StatusCode), Valid: true}
	}
	return sql.NullInt32{}
}

// previewFor is the optimistic data the UI shows while the operation is
// in flight.
func previewFor(req Request) pqtype.NullRawMessage {
	preview := map[string]any{"type": req.Type}
	switch req.Type {
	case db.WriteOpTypeCreateIssue:
		preview["title"] = req.Title
		preview["body"] = req.Body
	case db.WriteOpTypeCreateComment:
		preview["issue_number"] = req.IssueNumber
		preview["body"] = req.Body
	case db.WriteOpTypeUpdateIssueState:
		preview["issue_number"] = req.IssueNumber
		preview["state"] = req.State
	case db.WriteOpTypeMergePullRequest:
		preview["pull_request_number"] = req.IssueNumber
	}

	raw, err := json.Marshal(preview)
	if err != nil {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

func rawResult(v any) pqtype.NullRawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}
