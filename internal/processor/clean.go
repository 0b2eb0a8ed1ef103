package processor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"variants/internal/variant"
)

// Clean executes cleanup mode: every stale variant under the roots is
// removed. Sources and canonical variants are never touched. A failed
// delete is logged and recorded; it does not stop the run.
func Clean(ctx context.Context, opts Options) (CleanReport, error) {
	r, err := newRun(opts)
	if err != nil {
		return CleanReport{}, err
	}

	report := CleanReport{RunID: r.id, DryRun: r.opts.DryRun}
	found := 0

	log.Info().
		Str("run_id", r.id).
		Strs("roots", r.walker.Roots).
		Bool("dry_run", r.opts.DryRun).
		Msg("Removing stale variants")

	for path := range r.walker.Files(ctx) {
		cls := r.classifier.Classify(path)
		if cls.Kind == variant.KindIgnored {
			continue
		}
		found++
		if cls.Kind != variant.KindStale {
			continue
		}

		display := r.display(path)
		if r.opts.DryRun {
			report.Removed++
			fmt.Fprintf(r.out, "would remove %s\n", display)
			continue
		}

		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Str("run_id", r.id).Msg("Failed to remove stale variant")
			report.Failed++
			report.Failures = append(report.Failures, Failure{Path: path, Display: display, Err: err})
			continue
		}
		report.Removed++
		opts.Metrics.removed()
		fmt.Fprintf(r.out, "removed %s\n", display)
	}

	log.Info().
		Str("run_id", r.id).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("Cleanup complete")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if found == 0 {
		return report, fmt.Errorf("%w under %s", ErrNoImages, strings.Join(r.walker.Roots, ", "))
	}
	return report, nil
}
