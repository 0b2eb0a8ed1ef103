package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"variants/internal/processor"
	"variants/internal/tui"
)

var (
	generateProgress bool
	generateTable    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create missing or outdated variants for every source image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		opts.Metrics = metricsFor()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		var (
			updates chan processor.ProgressUpdate
			uiDone  chan struct{}
		)
		if generateProgress {
			// Per-file lines would tear the live view apart.
			opts.Out = io.Discard
			updates = make(chan processor.ProgressUpdate, 64)
			program := tea.NewProgram(tui.NewModel(updates, len(opts.Config.Widths)), tea.WithOutput(os.Stderr), tea.WithInput(nil), tea.WithoutSignalHandler())
			uiDone = make(chan struct{})
			go func() {
				defer close(uiDone)
				showProgress(program, updates)
			}()
		}

		report, runErr := processor.Run(ctx, opts, updates)
		if updates != nil {
			close(updates)
			<-uiDone
		}
		writeMetrics(opts.Metrics)

		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}

		out := cmd.OutOrStdout()
		if generateTable {
			fmt.Fprintln(out, tui.RenderSummary([]tui.SummaryRow{
				{Label: "Sources", Value: fmt.Sprintf("%d", report.Sources)},
				{Label: "Created", Value: fmt.Sprintf("%d", report.Created)},
				{Label: "Skipped", Value: fmt.Sprintf("%d", report.Skipped)},
				{Label: "Failed", Value: fmt.Sprintf("%d", report.Failed), Warn: report.Failed > 0},
			}))
		}
		fmt.Fprintf(out, "Done. created=%d skipped=%d failed=%d\n", report.Created, report.Skipped, report.Failed)
		printFailures(cmd, report.Failures)
		return runErr
	},
}

type progressView interface {
	Run() (tea.Model, error)
}

// showProgress runs view until it exits, then drains updates: the run keeps
// reporting until it returns, even when the view stopped early.
func showProgress(view progressView, updates <-chan processor.ProgressUpdate) {
	if _, err := view.Run(); err != nil {
		log.Warn().Err(err).Msg("Progress view stopped")
	}
	for range updates {
	}
}

func init() {
	generateCmd.Flags().BoolVarP(&generateProgress, "progress", "p", false, "show a live progress view on stderr instead of per-file lines")
	generateCmd.Flags().BoolVar(&generateTable, "table", false, "print the summary as a table")

	rootCmd.AddCommand(generateCmd)

	// A bare "variants" is generate over the configured roots.
	rootCmd.Flags().AddFlagSet(generateCmd.Flags())
	rootCmd.RunE = generateCmd.RunE
}
