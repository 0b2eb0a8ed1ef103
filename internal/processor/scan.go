package processor

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"variants/internal/variant"
	"variants/pkg/imgutil"
)

// Scan classifies every image under the roots without modifying anything.
// Sources additionally report their dimensions and the identifying
// metadata that variants leave behind.
func Scan(ctx context.Context, opts Options) ([]ScanReport, error) {
	r, err := newRun(opts)
	if err != nil {
		return nil, err
	}

	var reports []ScanReport
	for path := range r.walker.Files(ctx) {
		cls := r.classifier.Classify(path)
		if cls.Kind == variant.KindIgnored {
			continue
		}

		report := ScanReport{Path: path, Display: r.display(path), Class: cls}
		if cls.Kind != variant.KindStale {
			if err := inspectFile(&report, cls.Kind == variant.KindSource); err != nil {
				log.Debug().Err(err).Str("path", path).Msg("Inspect failed")
				report.Err = err
			}
		}
		reports = append(reports, report)
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })

	if err := ctx.Err(); err != nil {
		return reports, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoImages, strings.Join(r.walker.Roots, ", "))
	}
	return reports, nil
}

func inspectFile(report *ScanReport, withMetadata bool) error {
	file, err := os.Open(report.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	kind, err := imgutil.Sniff(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	report.Kind = kind.String()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	report.Width = cfg.Width
	report.Height = cfg.Height

	if !withMetadata {
		return nil
	}
	details, err := scanMetadata(file, kind)
	if err != nil {
		return err
	}
	report.Details = details
	return nil
}

func scanMetadata(file io.ReadSeeker, kind imgutil.Kind) ([]ScanDetail, error) {
	switch {
	case kind.HasExif():
		analysis, err := analyzeExif(file)
		if err != nil {
			return nil, err
		}
		return analysis.details(), nil
	case kind == imgutil.KindPNG:
		analysis, err := scanPNGMetadata(file)
		if err != nil {
			return nil, err
		}
		return analysis.details(), nil
	default:
		return nil, nil
	}
}
