package walker

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern is a parsed "<root>/**/*.{ext,ext}" expression.
type Pattern struct {
	Root string
	Exts map[string]bool
}

var (
	braceGlob  = regexp.MustCompile(`^(.*?)[/\\]\*\*[/\\]\*\.\{([^{}]*)\}$`)
	singleGlob = regexp.MustCompile(`^(.*?)[/\\]\*\*[/\\]\*\.([A-Za-z0-9]+)$`)
)

// ParsePattern understands the minimal glob grammar "<root>/**/*.{a,b}" and
// "<root>/**/*.a". Anything else is returned as a literal root with no
// extension filter.
func ParsePattern(p string) Pattern {
	p = strings.TrimSpace(p)
	if m := braceGlob.FindStringSubmatch(p); m != nil {
		return Pattern{Root: rootOf(m[1]), Exts: extSet(strings.Split(m[2], ","))}
	}
	if m := singleGlob.FindStringSubmatch(p); m != nil {
		return Pattern{Root: rootOf(m[1]), Exts: extSet([]string{m[2]})}
	}
	return Pattern{Root: filepath.Clean(p)}
}

func rootOf(s string) string {
	if s == "" {
		return "."
	}
	return filepath.Clean(s)
}

func extSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		set["."+strings.TrimPrefix(item, ".")] = true
	}
	return set
}
