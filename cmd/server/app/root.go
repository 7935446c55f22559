// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the root command for the mirror server
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mindersec/ghmirror/internal/config"
)

var (
	cfgFile string // config file (default is $PWD/config.yaml)

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ghmirror-server",
		Short: "GitHub repository mirror server",
		Long:  ``,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $PWD/config.yaml)")
}

func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		wd, _ := os.Getwd()
		v.AddConfigPath(filepath.Dir(wd))
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	config.SetViperDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Defaults and environment variables still apply.
		fmt.Fprintln(os.Stderr, "No config file found, using defaults:", err)
	}
}
