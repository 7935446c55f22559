// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mindersec/ghmirror/internal/db"
)

// handleCheckRun replaces a check run keyed by its immutable check run
// id. Events without a name or head SHA are dropped.
func handleCheckRun(ctx context.Context, qtx db.Querier, repositoryID int64, payload []byte) error {
	var event checkRunEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		dropEvent(ctx, "check_run", err.Error())
		return nil
	}
	if event.CheckRun == nil || event.CheckRun.ID == 0 {
		dropEvent(ctx, "check_run", "missing check run id")
		return nil
	}
	if event.CheckRun.Name == "" || event.CheckRun.HeadSha == "" {
		dropEvent(ctx, "check_run", "missing name or head sha")
		return nil
	}

	run := event.CheckRun
	var conclusion sql.NullString
	if run.Conclusion != nil {
		conclusion = sql.NullString{String: *run.Conclusion, Valid: true}
	}

	err := qtx.UpsertCheckRun(ctx, db.UpsertCheckRunParams{
		RepositoryID:     repositoryID,
		GithubCheckRunID: run.ID,
		Name:             run.Name,
		HeadSha:          run.HeadSha,
		Status:           run.Status,
		Conclusion:       conclusion,
		StartedAt:        nullableTime(run.StartedAt),
		CompletedAt:      nullableTime(run.CompletedAt),
	})
	if err != nil {
		return fmt.Errorf("upserting check run %d: %w", run.ID, err)
	}
	return nil
}
