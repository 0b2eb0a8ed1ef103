package processor

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"variants/internal/variant"
)

// StatFunc reports file metadata; os.Stat in production.
type StatFunc func(name string) (fs.FileInfo, error)

// Planner decides which variants of a source need (re)generation. The
// files on disk are its memo: an output that exists and is not older than
// its source counts as done.
type Planner struct {
	classifier *variant.Classifier
	quality    int
	stat       StatFunc
}

func NewPlanner(c *variant.Classifier, quality int) *Planner {
	return &Planner{classifier: c, quality: quality, stat: os.Stat}
}

// Plan returns one task per width whose output is missing or older than
// src. Widths are deduplicated and visited in ascending order, so the same
// inputs always yield the same plan. Plan never fails; a source that cannot
// be planned is reported through PlanResult.Conflict.
func (p *Planner) Plan(src Source, widths []int) PlanResult {
	res := PlanResult{}

	if p.classifier.VariantShaped(src.Path) {
		res.Conflict = fmt.Errorf("%w: %s", ErrVariantShapedSource, src.Path.Path)
		return res
	}

	for _, width := range normalizeWidths(widths) {
		out := p.classifier.OutputPath(src.Path, width)

		if info, err := p.stat(out); err == nil && info.Mode().IsRegular() && !info.ModTime().Before(src.ModTime) {
			res.Fresh = append(res.Fresh, out)
			continue
		}

		target := width
		if src.Width > 0 && src.Width < target {
			target = src.Width
		}

		res.Tasks = append(res.Tasks, Task{
			Source:         src.Path.Path,
			RequestedWidth: width,
			TargetWidth:    target,
			SourceWidth:    src.Width,
			OutputPath:     out,
			Quality:        p.quality,
		})
	}

	return res
}

func normalizeWidths(widths []int) []int {
	seen := make(map[int]bool, len(widths))
	out := make([]int, 0, len(widths))
	for _, w := range widths {
		if w <= 0 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}
