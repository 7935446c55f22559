// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/logger"
)

// handlePullRequest upserts a pull request with the same out-of-order
// guard as issues.
func handlePullRequest(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event pullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "pull_request", err.Error())
		return nil
	}
	if event.PullRequest == nil || event.PullRequest.Number == 0 {
		dropEvent(ctx, "pull_request", "missing pull request number")
		return nil
	}
	if event.PullRequest.UpdatedAt.IsZero() {
		dropEvent(ctx, "pull_request", "missing updated_at")
		return nil
	}

	pr := event.PullRequest
	authorID, err := upsertActor(ctx, qtx, pr.User)
	if err != nil {
		return fmt.Errorf("upserting pull request author: %w", err)
	}

	var mergeableState sql.NullString
	if pr.MergeableState != nil {
		mergeableState = sql.NullString{String: *pr.MergeableState, Valid: true}
	}

	applied, err := qtx.UpsertPullRequest(ctx, db.UpsertPullRequestParams{
		RepositoryID:            repositoryID,
		Number:                  pr.Number,
		GithubPrID:              pr.ID,
		State:                   pr.State,
		IsDraft:                 pr.Draft,
		Title:                   pr.Title,
		Body:                    nullableBody(pr.Body),
		AuthorUserID:            authorID,
		HeadRef:                 pr.Head.Ref,
		HeadSha:                 pr.Head.Sha,
		BaseRef:                 pr.Base.Ref,
		AssigneeLogins:          userLogins(pr.Assignees),
		RequestedReviewerLogins: userLogins(pr.RequestedReviewers),
		MergeableState:          mergeableState,
		CommentCount:            pr.Comments,
		MergedAt:                nullableTime(pr.MergedAt),
		ClosedAt:                nullableTime(pr.ClosedAt),
		GithubUpdatedAt:         pr.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upserting pull request %d: %w", pr.Number, err)
	}

	key := fmt.Sprintf("pr:%d", pr.Number)
	if applied {
		logger.BusinessRecord(ctx).AddApplied(key)
	} else {
		logger.BusinessRecord(ctx).AddDropped(key)
	}
	return nil
}

// handlePullRequestReview replaces a review keyed by its immutable
// review id. Reviews carry no version counter, so replace-on-exists is
// safe under any arrival order.
func handlePullRequestReview(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event pullRequestReviewEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "pull_request_review", err.Error())
		return nil
	}
	if event.Review == nil || event.Review.ID == 0 {
		dropEvent(ctx, "pull_request_review", "missing review id")
		return nil
	}
	if event.PullRequest == nil || event.PullRequest.Number == 0 {
		dropEvent(ctx, "pull_request_review", "missing pull request number")
		return nil
	}

	reviewerID, err := upsertActor(ctx, qtx, event.Review.User)
	if err != nil {
		return fmt.Errorf("upserting reviewer: %w", err)
	}

	err = qtx.UpsertPullRequestReview(ctx, db.UpsertPullRequestReviewParams{
		RepositoryID:      repositoryID,
		GithubReviewID:    event.Review.ID,
		PullRequestNumber: event.PullRequest.Number,
		ReviewerUserID:    reviewerID,
		State:             event.Review.State,
		CommitSha:         event.Review.CommitID,
		SubmittedAt:       nullableTime(event.Review.SubmittedAt),
	})
	if err != nil {
		return fmt.Errorf("upserting review %d: %w", event.Review.ID, err)
	}
	return nil
}
