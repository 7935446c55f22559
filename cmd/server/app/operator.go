// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/queue"
)

// operatorCmd groups the queue and sync operator commands
var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Operator tools for the delivery queue and sync jobs",
}

func init() {
	RootCmd.AddCommand(operatorCmd)
}

// wireUpOperator connects the store and a publish-only eventer for the
// one-shot operator commands. With the sql events driver the published
// kicks are picked up by the running server.
func wireUpOperator(cfg *config.Config) (context.Context, *queue.Operator, db.Store, func(), error) {
	ctx := loggingContext(cfg)

	store, closer, err := wireUpDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	evt, err := events.NewEventer(ctx, &cfg.Events)
	if err != nil {
		closer()
		return nil, nil, nil, nil, err
	}

	return ctx, queue.NewOperator(store, evt), store, closer, nil
}
