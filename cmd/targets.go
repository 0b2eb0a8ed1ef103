package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"variants/internal/processor"
	"variants/internal/walker"
)

// buildOptions turns the shared flags into processor options. --file wins
// over --glob; with neither, the configured roots are walked.
func buildOptions(cmd *cobra.Command) (processor.Options, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return processor.Options{}, err
	}

	opts := processor.Options{Config: cfg, Out: cmd.OutOrStdout(), File: targetFile}
	if targetFile != "" {
		return opts, nil
	}

	var anyExts bool
	for _, g := range targetGlobs {
		p := walker.ParsePattern(g)
		opts.Roots = append(opts.Roots, p.Root)
		if p.Exts == nil {
			anyExts = true
			continue
		}
		if opts.Exts == nil {
			opts.Exts = map[string]bool{}
		}
		for ext := range p.Exts {
			opts.Exts[ext] = true
		}
	}
	if anyExts {
		opts.Exts = nil
	}
	return opts, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeMetrics(m *processor.Metrics) {
	if metricsFile == "" || m == nil {
		return
	}
	if err := m.WriteTextfile(metricsFile); err != nil {
		log.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics file")
	}
}

func metricsFor() *processor.Metrics {
	if metricsFile == "" {
		return nil
	}
	return processor.NewMetrics()
}

func printFailures(cmd *cobra.Command, failures []processor.Failure) {
	for _, f := range failures {
		fmt.Fprintf(cmd.OutOrStdout(), "failed %s: %v\n", f.Display, f.Err)
	}
}
