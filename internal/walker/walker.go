// Package walker enumerates regular files under a set of roots.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Walker lists files below Roots. A root may also name a single regular
// file. Exts, when non-empty, restricts output to those lowercased
// extensions (with leading dot).
type Walker struct {
	Roots []string
	Exts  map[string]bool
	// Warn is called for every root that cannot be scanned.
	Warn func(root string, err error)
}

// Files returns a lazy sequence of absolute file paths. Each call performs
// a fresh scan. Breaking out of the loop or cancelling ctx stops the walk;
// fs.WalkDir releases its directory handles before Files returns.
func (w Walker) Files(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, root := range w.Roots {
			if ctx.Err() != nil {
				return
			}
			if !w.walkRoot(ctx, root, yield) {
				return
			}
		}
	}
}

// walkRoot returns false when the consumer stopped early.
func (w Walker) walkRoot(ctx context.Context, root string, yield func(string) bool) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		w.warn(root, err)
		return true
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		w.warn(root, err)
		return true
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() || !w.accept(absRoot) {
			return true
		}
		return yield(absRoot)
	}

	stopped := false
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Warn().Err(walkErr).Str("path", path).Msg("Error accessing path, skipping")
			if d != nil && d.IsDir() && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() || !w.accept(path) {
			return nil
		}
		if !yield(path) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		w.warn(root, err)
	}
	return !stopped && ctx.Err() == nil
}

func (w Walker) accept(path string) bool {
	if len(w.Exts) == 0 {
		return true
	}
	return w.Exts[strings.ToLower(filepath.Ext(path))]
}

func (w Walker) warn(root string, err error) {
	if w.Warn != nil {
		w.Warn(root, err)
		return
	}
	log.Warn().Err(err).Str("root", root).Msg("Skipping scan root")
}
