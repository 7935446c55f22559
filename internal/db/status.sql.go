// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"fmt"
)

// tableCountCap bounds the per-table counts reported on the operational
// surface so a hot table cannot make the status query expensive.
const tableCountCap = 10_000

// TableCounts reports bounded row counts of the main tables.
type TableCounts struct {
	Repositories  int64
	RawDeliveries int64
	DeadLetters   int64
	Users         int64
	PullRequests  int64
	Issues        int64
	IssueComments int64
	CheckRuns     int64
	Branches      int64
	Commits       int64
	WriteOps      int64
	SyncJobs      int64
}

// counted pairs a table name with the destination field; table names are a
// fixed allowlist, never user input.
var countedTables = []string{
	"repositories",
	"raw_webhook_deliveries",
	"dead_letters",
	"users",
	"pull_requests",
	"issues",
	"issue_comments",
	"check_runs",
	"branches",
	"commits",
	"write_operations",
	"sync_jobs",
}

// GetTableCounts returns row counts for the main tables, each bounded at
// 10_000 rows.
func (q *Queries) GetTableCounts(ctx context.Context) (TableCounts, error) {
	var tc TableCounts
	dests := []*int64{
		&tc.Repositories, &tc.RawDeliveries, &tc.DeadLetters, &tc.Users,
		&tc.PullRequests, &tc.Issues, &tc.IssueComments, &tc.CheckRuns,
		&tc.Branches, &tc.Commits, &tc.WriteOps, &tc.SyncJobs,
	}
	for i, table := range countedTables {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT %d) AS bounded",
			table, tableCountCap)
		if err := q.db.QueryRowContext(ctx, query).Scan(dests[i]); err != nil {
			return TableCounts{}, err
		}
	}
	return tc, nil
}
