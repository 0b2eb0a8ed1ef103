package processor

import (
	"os"
	"path/filepath"

	"variants/internal/variant"
)

// stemClaims maps "<dir>/<stem>" to the source that owns the variant names
// derived from it. Only the producer goroutine touches it.
type stemClaims map[string]string

func stemKey(p variant.ImagePath) string {
	return filepath.Join(p.Dir, p.Stem)
}

// claim records path as the owner of its stem unless an earlier source
// already owns it. It returns that owner and whether path lost the claim.
// In single-file runs the walk never sees siblings, so the directory is
// consulted for a source that would have been visited first.
func (r *run) claim(claims stemClaims, path string) (string, bool) {
	p := variant.ParsePath(path)
	key := stemKey(p)
	if owner, ok := claims[key]; ok {
		return owner, true
	}
	if r.opts.File != "" {
		if owner := r.earlierSibling(p); owner != "" {
			claims[key] = owner
			return owner, true
		}
	}
	claims[key] = path
	return path, false
}

// earlierSibling returns the first source in p's directory that shares its
// stem and sorts before it, or "" when p is the owner.
func (r *run) earlierSibling(p variant.ImagePath) string {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return ""
	}
	name := filepath.Base(p.Path)
	for _, entry := range entries {
		if entry.Name() >= name {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}
		candidate := filepath.Join(p.Dir, entry.Name())
		cp := variant.ParsePath(candidate)
		if cp.Stem != p.Stem {
			continue
		}
		if r.classifier.ClassifyPath(cp).Kind == variant.KindSource {
			return candidate
		}
	}
	return ""
}
