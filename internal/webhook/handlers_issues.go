// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/logger"
)

// handleIssues upserts an issue under the out-of-order guard: an event
// older than the stored github_updated_at is dropped.
func handleIssues(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event issuesEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "issues", err.Error())
		return nil
	}
	if event.Issue == nil || event.Issue.Number == 0 {
		dropEvent(ctx, "issues", "missing issue number")
		return nil
	}
	if event.Issue.UpdatedAt.IsZero() {
		dropEvent(ctx, "issues", "missing updated_at")
		return nil
	}

	issue := event.Issue
	authorID, err := upsertActor(ctx, qtx, issue.User)
	if err != nil {
		return fmt.Errorf("upserting issue author: %w", err)
	}

	applied, err := qtx.UpsertIssue(ctx, db.UpsertIssueParams{
		RepositoryID:    repositoryID,
		Number:          issue.Number,
		GithubIssueID:   issue.ID,
		State:           issue.State,
		Title:           issue.Title,
		Body:            nullableBody(issue.Body),
		LabelNames:      labelNames(issue.Labels),
		AssigneeLogins:  userLogins(issue.Assignees),
		AuthorUserID:    authorID,
		IsPullRequest:   issue.PullRequest != nil,
		CommentCount:    issue.Comments,
		ClosedAt:        nullableTime(issue.ClosedAt),
		GithubUpdatedAt: issue.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upserting issue %d: %w", issue.Number, err)
	}

	key := fmt.Sprintf("issue:%d", issue.Number)
	if applied {
		logger.BusinessRecord(ctx).AddApplied(key)
	} else {
		logger.BusinessRecord(ctx).AddDropped(key)
	}
	return nil
}
