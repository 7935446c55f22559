// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindersec/ghmirror/internal/db"
)

// handleIssueComment upserts or deletes a comment keyed by its immutable
// comment id.
func handleIssueComment(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event issueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "issue_comment", err.Error())
		return nil
	}
	if event.Comment == nil || event.Comment.ID == 0 {
		dropEvent(ctx, "issue_comment", "missing comment id")
		return nil
	}
	if event.Issue == nil || event.Issue.Number == 0 {
		dropEvent(ctx, "issue_comment", "missing issue number")
		return nil
	}

	if event.Action == "deleted" {
		err := qtx.DeleteIssueComment(ctx, db.DeleteIssueCommentParams{
			RepositoryID:    repositoryID,
			GithubCommentID: event.Comment.ID,
		})
		if err != nil {
			return fmt.Errorf("deleting comment %d: %w", event.Comment.ID, err)
		}
		return nil
	}

	authorID, err := upsertActor(ctx, qtx, event.Comment.User)
	if err != nil {
		return fmt.Errorf("upserting comment author: %w", err)
	}

	err = qtx.UpsertIssueComment(ctx, db.UpsertIssueCommentParams{
		RepositoryID:    repositoryID,
		GithubCommentID: event.Comment.ID,
		IssueNumber:     event.Issue.Number,
		AuthorUserID:    authorID,
		Body:            event.Comment.Body,
		CreatedAt:       event.Comment.CreatedAt,
		UpdatedAt:       event.Comment.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upserting comment %d: %w", event.Comment.ID, err)
	}
	return nil
}
