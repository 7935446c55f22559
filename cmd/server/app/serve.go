// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mirror server",
	Long: `Starts the mirror server: the webhook receiver, the delivery queue
processor, the sync worker and the read API.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(loggingContext(cfg), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, closer, err := wireUpDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer closer()

		return service.AllInOneServerService(ctx, cfg, store)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	v := viper.GetViper()
	flags := serveCmd.Flags()

	err := config.BindConfigFlag(v, flags, "http_server.host", "http-host",
		"", "HTTP server host", flags.String)
	if err != nil {
		serveCmd.Printf("Error binding flag: %v", err)
		os.Exit(1)
	}
	err = config.BindConfigFlag(v, flags, "http_server.port", "http-port",
		0, "HTTP server port", flags.Int)
	if err != nil {
		serveCmd.Printf("Error binding flag: %v", err)
		os.Exit(1)
	}
	err = config.BindConfigFlag(v, flags, "logging.level", "log-level",
		"", "Log level", flags.String)
	if err != nil {
		serveCmd.Printf("Error binding flag: %v", err)
		os.Exit(1)
	}
}
