// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/mindersec/ghmirror/database"
)

// upCmd represents the up command
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "migrate the database to the latest version",
	Long:  `Command to upgrade the database schema`,
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
			err = m.Up()
		} else {
			err = m.Steps(int(usteps))
		}
		if err != nil {
			if !errors.Is(err, migrate.ErrNoChange) {
				cliErrorf(cmd, "Error while migrating database: %v\n", err)
			}
			cmd.Println("Database already up-to-date")
		}

		cmd.Println("Database migration completed successfully")
		printVersion(cmd, m)
		return nil
	},
}

func printVersion(cmd *cobra.Command, m database.Migrator) {
	version, dirty, err := m.Version()
	if err != nil {
		// not fatal
		cmd.Printf("Error while getting migration version: %v\n", err)
		return
	}
	cmd.Printf("Version=%v dirty=%v\n", version, dirty)
}

func init() {
	migrateCmd.AddCommand(upCmd)
}
