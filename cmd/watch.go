package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"variants/internal/processor"
	"variants/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate once, then regenerate sources as they are created or rewritten",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		if opts.File != "" {
			return fmt.Errorf("--file cannot be used with watch")
		}
		opts.Metrics = metricsFor()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		report, err := processor.Run(ctx, opts, nil)
		if err != nil && !errors.Is(err, processor.ErrNoImages) {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Done. created=%d skipped=%d failed=%d\n", report.Created, report.Skipped, report.Failed)
		printFailures(cmd, report.Failures)
		writeMetrics(opts.Metrics)

		w, err := watcher.New(processor.ClassifierFor(opts.Config), func(ctx context.Context, path string) {
			single := opts
			single.File = path
			single.Roots, single.Exts = nil, nil
			rep, err := processor.Run(ctx, single, nil)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Str("path", path).Msg("Regeneration failed")
				}
				return
			}
			printFailures(cmd, rep.Failures)
			writeMetrics(opts.Metrics)
		})
		if err != nil {
			return err
		}

		roots := opts.Roots
		if len(roots) == 0 {
			roots = opts.Config.Roots
		}
		for _, root := range roots {
			if err := w.AddTree(root); err != nil {
				return err
			}
		}

		log.Info().Strs("roots", roots).Msg("Watching for source changes")
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
