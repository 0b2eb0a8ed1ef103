package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"variants/internal/processor"
	"variants/internal/tui"
	"variants/internal/variant"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify images and report source metadata without modifying files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		reports, err := processor.Scan(ctx, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		counts := map[variant.Kind]int{}
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(out)
			}
			counts[report.Class.Kind]++
			renderScanReport(out, report)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Sources", Value: fmt.Sprintf("%d", counts[variant.KindSource])},
			{Label: "Canonical variants", Value: fmt.Sprintf("%d", counts[variant.KindCanonical])},
			{Label: "Stale variants", Value: fmt.Sprintf("%d", counts[variant.KindStale]), Warn: counts[variant.KindStale] > 0},
		}))
		return nil
	},
}

func renderScanReport(out io.Writer, report processor.ScanReport) {
	class := report.Class.Kind.String()
	classStyle := lipgloss.NewStyle().Foreground(tui.ClassColor(class))

	fmt.Fprintf(out, "%s %s", scanFileStyle.Render(report.Display), classStyle.Render("["+class+"]"))
	if report.Width > 0 {
		fmt.Fprintf(out, " %s", scanDimStyle.Render(fmt.Sprintf("%dx%d %s", report.Width, report.Height, report.Kind)))
	}
	fmt.Fprintln(out)

	if report.Err != nil {
		fmt.Fprintf(out, "  %s %s\n", scanBulletStyle.Render("-"), scanErrorStyle.Render(report.Err.Error()))
		return
	}
	if report.Class.Kind != variant.KindSource {
		return
	}
	if len(report.Details) == 0 {
		fmt.Fprintf(out, "  %s %s\n", scanBulletStyle.Render("-"), scanDimStyle.Render("no identifying metadata"))
		return
	}
	for _, detail := range report.Details {
		if len(detail.Values) == 0 {
			continue
		}
		fmt.Fprintf(out, "  %s\n", scanCategoryStyle.Render(detail.Category+":"))
		for _, value := range detail.Values {
			fmt.Fprintf(out, "    %s %s\n", scanBulletStyle.Render("-"), scanValueStyle.Render(value))
		}
	}
}

var (
	scanFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorInk)
	scanCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	scanValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	scanDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanErrorStyle    = lipgloss.NewStyle().Foreground(tui.ColorError)
)

func init() {
	rootCmd.AddCommand(scanCmd)
}
