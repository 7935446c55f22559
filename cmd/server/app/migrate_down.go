// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/mindersec/ghmirror/database"
)

// downCmd represents the down command
var downCmd = &cobra.Command{
	Use:   "down",
	Short: "migrate the database down by one version",
	Long:  `Command to downgrade the database schema`,
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

		if !confirm(cmd, "Running this command will change the database structure") {
			return nil
		}

		m, err := database.NewFromConnectionString(connString)
		if err != nil {
			cliErrorf(cmd, "Error while creating migration instance: %v\n", err)
		}

		usteps, err := cmd.Flags().GetUint("num-steps")
		if err != nil {
			cmd.Printf("Error while getting num-steps flag: %v", err)
		}
		if usteps == 0 {
			usteps = 1
		}

		if err := m.Steps(-int(usteps)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			cliErrorf(cmd, "Error while migrating database: %v\n", err)
		}

		cmd.Println("Database migration completed successfully")
		printVersion(cmd, m)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(downCmd)
}
