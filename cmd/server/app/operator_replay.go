// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
)

// replayCmd represents the delivery replay command
var replayCmd = &cobra.Command{
	Use:   "replay <delivery-id>",
	Short: "reset a webhook delivery to pending and reprocess it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx, operator, _, closer, err := wireUpOperator(cfg)
		if err != nil {
			return err
		}
		defer closer()

		if err := operator.ReplayDelivery(ctx, args[0]); err != nil {
			cliErrorf(cmd, "Error while replaying delivery: %v\n", err)
		}
		cmd.Printf("Delivery %s queued for reprocessing\n", args[0])
		return nil
	},
}

// retryFailedCmd represents the failed-delivery drain command
var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "reset failed deliveries to pending",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx, operator, _, closer, err := wireUpOperator(cfg)
		if err != nil {
			return err
		}
		defer closer()

		limit, err := cmd.Flags().GetInt32("limit")
		if err != nil {
			cmd.Printf("Error while getting limit flag: %v", err)
		}

		count, err := operator.RetryAllFailed(ctx, limit)
		if err != nil {
			cliErrorf(cmd, "Error while retrying failed deliveries: %v\n", err)
		}
		cmd.Printf("Reset %d failed deliveries to pending\n", count)
		return nil
	},
}

// deadLetterCmd represents the manual dead-letter command
var deadLetterCmd = &cobra.Command{
	Use:   "dead-letter <delivery-id>",
	Short: "move a delivery to the dead letter table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		ctx, operator, _, closer, err := wireUpOperator(cfg)
		if err != nil {
			return err
		}
		defer closer()

		reason, err := cmd.Flags().GetString("reason")
		if err != nil {
			cmd.Printf("Error while getting reason flag: %v", err)
		}

		if !confirm(cmd, "The delivery will be removed from the processing queue") {
			return nil
		}

		if err := operator.MoveToDeadLetter(ctx, args[0], reason); err != nil {
			cliErrorf(cmd, "Error while dead-lettering delivery: %v\n", err)
		}
		cmd.Printf("Delivery %s moved to dead letters\n", args[0])
		return nil
	},
}

func init() {
	operatorCmd.AddCommand(replayCmd)

	operatorCmd.AddCommand(retryFailedCmd)
	retryFailedCmd.Flags().Int32("limit", 50, "Maximum number of failed deliveries to reset")

	operatorCmd.AddCommand(deadLetterCmd)
	deadLetterCmd.Flags().String("reason", "operator request", "Reason recorded on the dead letter")
	deadLetterCmd.Flags().BoolP("yes", "y", false, "Answer yes to all questions")
}
