package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"variants/internal/variant"
)

// DefaultDelay is how long a source must stay quiet before it is handled.
// Editors and exporters often write a file in several steps.
const DefaultDelay = 500 * time.Millisecond

// Handler is called with the absolute path of a source that was created or
// rewritten. Calls are serialized.
type Handler func(ctx context.Context, path string)

// Watcher reports settled changes to source images under a set of
// directory trees. Directories created while watching are added too.
type Watcher struct {
	Delay time.Duration

	classifier *variant.Classifier
	handle     Handler
	fs         *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// New creates a watcher that hands every settled source change to handle.
func New(classifier *variant.Classifier, handle Handler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		Delay:      DefaultDelay,
		classifier: classifier,
		handle:     handle,
		fs:         fsWatcher,
		pending:    make(map[string]*time.Timer),
		ready:      make(chan string, 64),
	}, nil
}

// AddTree watches root and every directory below it. A missing root is
// logged and skipped, matching how the walker treats it.
func (w *Watcher) AddTree(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("root", abs).Msg("Watch root does not exist, skipping")
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return w.fs.Add(filepath.Dir(abs))
	}

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable directory")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Watching directory")
		return nil
	})
}

// Run dispatches events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.dispatch(ctx, event)

		case path := <-w.ready:
			w.handle(ctx, path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddTree(event.Name); err != nil {
				log.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
	}

	if w.classifier.Classify(event.Name).Kind != variant.KindSource {
		return
	}
	w.schedule(ctx, event.Name)
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.Delay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if err := w.fs.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing watcher")
	}
}
