package variant

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the class a path falls into.
type Kind int

const (
	// KindIgnored covers every file that is neither a variant nor an
	// accepted source format.
	KindIgnored Kind = iota
	KindSource
	KindCanonical
	KindStale
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindCanonical:
		return "canonical"
	case KindStale:
		return "stale"
	default:
		return "ignored"
	}
}

// Class is the result of classifying one path. Width is set for canonical
// variants only.
type Class struct {
	Kind  Kind
	Width int
}

// Rules are the naming conventions the classifier enforces.
type Rules struct {
	Widths     []int
	OutputExt  string
	SourceExts []string
}

// Classifier applies Rules to paths. It holds no mutable state and is safe
// for concurrent use.
type Classifier struct {
	widths     map[int]bool
	sorted     []int
	outputExt  string
	sourceExts map[string]bool
}

// NewClassifier normalizes rules (lowercase extensions with a leading dot,
// deduplicated widths) and returns a classifier for them.
func NewClassifier(rules Rules) *Classifier {
	c := &Classifier{
		widths:     make(map[int]bool, len(rules.Widths)),
		outputExt:  NormalizeExt(rules.OutputExt),
		sourceExts: make(map[string]bool, len(rules.SourceExts)),
	}
	for _, w := range rules.Widths {
		if w <= 0 || c.widths[w] {
			continue
		}
		c.widths[w] = true
		c.sorted = append(c.sorted, w)
	}
	sort.Ints(c.sorted)
	for _, ext := range rules.SourceExts {
		if ext = NormalizeExt(ext); ext != "" {
			c.sourceExts[ext] = true
		}
	}
	return c
}

// NormalizeExt lowercases ext and ensures a leading dot. Empty stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Widths returns the target widths in ascending order.
func (c *Classifier) Widths() []int {
	out := make([]int, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// OutputExt returns the extension of derived files.
func (c *Classifier) OutputExt() string {
	return c.outputExt
}

// Classify assigns path to exactly one Kind. The stale check runs first so
// that legacy chained suffixes ("photo-900w-768.webp") are never mistaken
// for a canonical variant or a source.
func (c *Classifier) Classify(path string) Class {
	return c.ClassifyPath(ParsePath(path))
}

// ClassifyPath is Classify for an already parsed path.
func (c *Classifier) ClassifyPath(p ImagePath) Class {
	if c.isStale(p) {
		return Class{Kind: KindStale}
	}
	if c.isCanonical(p) {
		return Class{Kind: KindCanonical, Width: p.Segments[0].Width}
	}
	if c.sourceExts[p.Ext] {
		return Class{Kind: KindSource}
	}
	return Class{Kind: KindIgnored}
}

func (c *Classifier) isStale(p ImagePath) bool {
	if p.Ext != c.outputExt || !p.HasWidthSuffix() {
		return false
	}
	return !c.isCanonical(p)
}

func (c *Classifier) isCanonical(p ImagePath) bool {
	if p.Ext != c.outputExt || len(p.Segments) != 1 {
		return false
	}
	seg := p.Segments[0]
	return !seg.W && c.widths[seg.Width]
}

// OutputPath names the variant of src at width: a sibling file
// "<stem>-<width><outputExt>".
func (c *Classifier) OutputPath(src ImagePath, width int) string {
	return filepath.Join(src.Dir, fmt.Sprintf("%s-%d%s", src.Stem, width, c.outputExt))
}

// VariantShaped reports whether a source stem already ends in a width
// segment. Every variant derived from such a source would carry two chained
// segments and classify as stale.
func (c *Classifier) VariantShaped(src ImagePath) bool {
	return src.HasWidthSuffix()
}
