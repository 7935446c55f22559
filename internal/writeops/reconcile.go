// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package writeops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
)

// reconcileWindow is how many recent matching operations a webhook is
// compared against. Operations older than the window stay unconfirmed.
const reconcileWindow = 5

// Reconciler promotes write operations to confirmed when the webhook
// announcing their effect arrives.
type Reconciler struct{}

// NewReconciler creates a write operation reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

type reconcilePayload struct {
	Issue struct {
		Number int64 `json:"number"`
	} `json:"issue"`
	PullRequest struct {
		Number int64 `json:"number"`
		Merged bool  `json:"merged"`
	} `json:"pull_request"`
}

// matchWriteOperation maps a webhook event to the write operation type
// and entity number it would confirm. The merged pull_request.closed
// event prefers merge_pull_request over a plain state change.
func matchWriteOperation(eventName, action string, payload []byte) (db.WriteOpType, int64, bool) {
	var body reconcilePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", 0, false
	}

	switch eventName {
	case "issues":
		if body.Issue.Number == 0 {
			return "", 0, false
		}
		switch action {
		case "opened":
			return db.WriteOpTypeCreateIssue, body.Issue.Number, true
		case "closed", "reopened":
			return db.WriteOpTypeUpdateIssueState, body.Issue.Number, true
		}

	case "issue_comment":
		if action == "created" && body.Issue.Number != 0 {
			return db.WriteOpTypeCreateComment, body.Issue.Number, true
		}

	case "pull_request":
		if body.PullRequest.Number == 0 {
			return "", 0, false
		}
		switch action {
		case "closed":
			if body.PullRequest.Merged {
				return db.WriteOpTypeMergePullRequest, body.PullRequest.Number, true
			}
			return db.WriteOpTypeUpdateIssueState, body.PullRequest.Number, true
		case "reopened":
			return db.WriteOpTypeUpdateIssueState, body.PullRequest.Number, true
		}
	}

	return "", 0, false
}

// Reconcile confirms at most one matching operation for the webhook.
// Already confirmed or failed operations are never touched, so a webhook
// caused by an external actor confirms nothing once the log has settled.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	qtx db.Querier,
	repositoryID int64,
	eventName, action string,
	payload []byte,
) error {
	opType, entityNumber, ok := matchWriteOperation(eventName, action, payload)
	if !ok {
		return nil
	}

	ops, err := qtx.ListRecentWriteOperations(ctx, db.ListRecentWriteOperationsParams{
		RepositoryID:       repositoryID,
		Type:               opType,
		GithubEntityNumber: entityNumber,
		Limit:              reconcileWindow,
	})
	if err != nil {
		return fmt.Errorf("listing write operations: %w", err)
	}

	for _, op := range ops {
		if op.State != db.WriteOpStatePending && op.State != db.WriteOpStateCompleted {
			continue
		}

		confirmed, err := qtx.ConfirmWriteOperation(ctx, op.CorrelationID)
		if err != nil {
			return fmt.Errorf("confirming write operation: %w", err)
		}
		if confirmed {
			zerolog.Ctx(ctx).Info().
				Str("correlation_id", op.CorrelationID).
				Str("operation_type", string(opType)).
				Int64("entity_number", entityNumber).
				Msg("write operation confirmed by webhook")
		}
		return nil
	}
	return nil
}
