// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the logging setup for the mirror service and the
// per-delivery telemetry record.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mindersec/ghmirror/internal/config"
)

// Text is the constant for the text log format
const Text = "text"

// FromFlags configures logging and returns a logger with settings matching
// the supplied cfg.  It also performs some global initialization, because
// that's how zerolog works.
func FromFlags(cfg config.LoggingConfig) zerolog.Logger {
	zlevel := LevelFromString(cfg.Level)
	zerolog.SetGlobalLevel(zlevel)

	loggers := []io.Writer{}

	if cfg.LogFile != "" {
		cfg.LogFile = filepath.Clean(cfg.LogFile)
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		// NOTE: we are leaking the open file here
		if err != nil {
			log.Err(err).Msg("Failed to open log file, defaulting to stdout")
		} else {
			loggers = append(loggers, file)
		}
	}

	if cfg.Format == Text {
		loggers = append(loggers, zerolog.NewConsoleWriter())
	} else {
		loggers = append(loggers, os.Stdout)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(loggers...)).With().Timestamp().Logger()

	// Use this logger when calling zerolog.Ctx(nil), etc
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger

	return logger
}

// LevelFromString converts a viper log level to a zerolog level. Unknown
// levels map to info.
func LevelFromString(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
