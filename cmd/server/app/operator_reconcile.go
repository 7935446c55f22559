// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"

	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/gh"
	ghsync "github.com/mindersec/ghmirror/internal/sync"
)

// reconcileCmd represents the repository reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <owner> <name>",
	Short: "schedule a full re-sync of a mirrored repository",
	Long: `Schedules a reconcile sync job for the repository. The job re-runs the
bootstrap fetch; all writes go through the same guarded upserts, so a
reconcile only fills gaps and never regresses newer state.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx := loggingContext(cfg)
		store, closer, err := wireUpDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer closer()

		evt, err := events.NewEventer(ctx, &cfg.Events)
		if err != nil {
			return err
		}

		repo, err := store.GetRepositoryByOwnerName(ctx, db.GetRepositoryByOwnerNameParams{
			OwnerLogin: args[0],
			Name:       args[1],
		})
		if err != nil {
			cliErrorf(cmd, "Error while looking up repository %s/%s: %v\n", args[0], args[1], err)
		}

		factory := gh.NewClientFactory(cfg.GitHub)
		worker := ghsync.NewWorker(store, ghsync.FactoryProvider(factory), evt, cfg.Sync)

		result, err := worker.ScheduleReconcile(ctx, repo.ID, repo.FullName, repo.InstallationID.Int64)
		if err != nil {
			cliErrorf(cmd, "Error while scheduling reconcile: %v\n", err)
		}

		if result.Scheduled {
			cmd.Printf("Reconcile scheduled under %s\n", result.LockKey)
		} else {
			cmd.Printf("A sync job already holds %s, not scheduled\n", result.LockKey)
		}
		return nil
	},
}

func init() {
	operatorCmd.AddCommand(reconcileCmd)
}
