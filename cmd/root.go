package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"variants/internal/config"
	"variants/internal/logging"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

var (
	configPath  string
	logLevel    string
	targetFile  string
	targetGlobs []string
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:           "variants",
	Short:         "variants - generate responsive image variants",
	Long:          "variants keeps a tree of source images paired with resized WebP variants, creating what is missing and removing what is stale.\n\nWithout a subcommand it runs generate over the configured roots.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when omitted)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVarP(&targetFile, "file", "f", "", "process exactly this file")
	flags.StringArrayVarP(&targetGlobs, "glob", "g", nil, `scan "<root>/**/*.{png,jpg}" instead of the configured roots (repeatable)`)
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file after the run")
}

// loadConfig resolves configuration in increasing precedence: defaults,
// the YAML file, .env and VARIANTS_* variables, then flags. It also
// initializes logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	logging.Init(cfg.LogLevel)
	return cfg, nil
}
