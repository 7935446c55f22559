// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindersec/ghmirror/internal/db"
)

// handlePush moves a branch head and records the pushed commits. Webhook
// commit authors lack stable GitHub ids, so commit author columns stay
// null; bootstrap fills them from the REST commits listing.
func handlePush(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event pushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "push", err.Error())
		return nil
	}

	branch, ok := branchFromRef(event.Ref)
	if !ok {
		// Tag pushes carry no branch state.
		return nil
	}

	if _, err := upsertActor(ctx, qtx, event.Sender); err != nil {
		return fmt.Errorf("upserting push sender: %w", err)
	}

	if event.Deleted {
		err := qtx.DeleteBranch(ctx, db.DeleteBranchParams{
			RepositoryID: repositoryID,
			Name:         branch,
		})
		if err != nil {
			return fmt.Errorf("deleting branch %s: %w", branch, err)
		}
		return nil
	}

	err := qtx.UpsertBranch(ctx, db.UpsertBranchParams{
		RepositoryID: repositoryID,
		Name:         branch,
		HeadSha:      event.After,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("upserting branch %s: %w", branch, err)
	}

	for _, commit := range event.Commits {
		if commit.ID == "" {
			continue
		}
		ts := sql.NullTime{Time: commit.Timestamp, Valid: !commit.Timestamp.IsZero()}
		err := qtx.InsertCommitIfAbsent(ctx, db.InsertCommitIfAbsentParams{
			RepositoryID:    repositoryID,
			Sha:             commit.ID,
			MessageHeadline: messageHeadline(commit.Message),
			AuthoredAt:      ts,
			CommittedAt:     ts,
		})
		if err != nil {
			return fmt.Errorf("inserting commit %s: %w", commit.ID, err)
		}
	}
	return nil
}

// handleBranchCreate records a branch created outside a push. The payload
// has no head SHA; the next push fills it.
func handleBranchCreate(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event branchEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "create", err.Error())
		return nil
	}
	if event.RefType != "branch" || event.Ref == "" {
		return nil
	}

	err := qtx.InsertBranchIfAbsent(ctx, db.InsertBranchIfAbsentParams{
		RepositoryID: repositoryID,
		Name:         event.Ref,
		HeadSha:      "",
		Now:          time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("inserting branch %s: %w", event.Ref, err)
	}
	return nil
}

// handleBranchDelete removes a branch row if present. Tag refs are ignored.
func handleBranchDelete(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event branchEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "delete", err.Error())
		return nil
	}
	if event.RefType != "branch" || event.Ref == "" {
		return nil
	}

	err := qtx.DeleteBranch(ctx, db.DeleteBranchParams{
		RepositoryID: repositoryID,
		Name:         event.Ref,
	})
	if err != nil {
		return fmt.Errorf("deleting branch %s: %w", event.Ref, err)
	}
	return nil
}
