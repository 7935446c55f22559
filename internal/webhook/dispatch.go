// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/db"
)

// Dispatch routes a parsed delivery to its event handler. The querier is
// expected to be transaction-scoped: all writes of one delivery commit or
// roll back together with the delivery's own state transition.
//
// A returned error means the delivery should be retried. Payloads that
// fail validation are logged and succeed as no-ops, since an unparseable
// payload will never become parseable on retry.
func Dispatch(
	ctx context.Context,
	qtx db.Querier,
	repositoryID int64,
	eventName string,
	payload []byte,
) error {
	switch eventName {
	case "issues":
		return handleIssues(ctx, qtx, repositoryID, payload)
	case "pull_request":
		return handlePullRequest(ctx, qtx, repositoryID, payload)
	case "issue_comment":
		return handleIssueComment(ctx, qtx, repositoryID, payload)
	case "push":
		return handlePush(ctx, qtx, repositoryID, payload)
	case "pull_request_review":
		return handlePullRequestReview(ctx, qtx, repositoryID, payload)
	case "check_run":
		return handleCheckRun(ctx, qtx, repositoryID, payload)
	case "create":
		return handleBranchCreate(ctx, qtx, repositoryID, payload)
	case "delete":
		return handleBranchDelete(ctx, qtx, repositoryID, payload)
	default:
		zerolog.Ctx(ctx).Debug().
			Str("event", eventName).
			Msg("no handler for event, marking processed")
		return nil
	}
}

// upsertActor records a user from a payload and returns its id for
// foreign-key columns. Users without a GitHub id are skipped.
func upsertActor(ctx context.Context, qtx db.Querier, u *userPayload) (sql.NullInt64, error) {
	if u == nil || u.ID == 0 {
		return sql.NullInt64{}, nil
	}

	err := qtx.UpsertUser(ctx, db.UpsertUserParams{
		ID:        u.ID,
		Login:     u.Login,
		AvatarURL: u.AvatarURL,
		Kind:      u.Type,
		Now:       time.Now().UTC(),
	})
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: u.ID, Valid: true}, nil
}

func dropEvent(ctx context.Context, eventName, reason string) {
	zerolog.Ctx(ctx).Info().
		Str("event", eventName).
		Str("reason", reason).
		Msg("dropping malformed payload as no-op")
}
