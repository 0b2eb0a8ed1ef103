package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"variants/internal/processor"
)

var cleanDryRun bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete stale variants left behind by older naming schemes or widths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		opts.DryRun = cleanDryRun
		opts.Metrics = metricsFor()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		report, runErr := processor.Clean(ctx, opts)
		writeMetrics(opts.Metrics)
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}

		if report.DryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "Done. would remove=%d\n", report.Removed)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Done. removed=%d failed=%d\n", report.Removed, report.Failed)
		}
		printFailures(cmd, report.Failures)
		return runErr
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanDryRun, "dry-run", "n", false, "list stale variants without deleting them")

	rootCmd.AddCommand(cleanCmd)
}
