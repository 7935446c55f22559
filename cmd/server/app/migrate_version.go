// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"

	"github.com/mindersec/ghmirror/database"
)

// versionCmd represents the migration version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "get the db version",
	Long:  `Command to get the current database schema version`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx := loggingContext(cfg)
		dbConn, connString, err := cfg.Database.GetDBConnection(ctx)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		m, err := database.NewFromConnectionString(connString)
		if err != nil {
			cliErrorf(cmd, "Error while creating migration instance: %v\n", err)
		}

		printVersion(cmd, m)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(versionCmd)
}
