package processor

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"variants/internal/config"
	"variants/internal/variant"
	"variants/internal/walker"
)

// Job is one source image handed to a worker.
type Job struct {
	Path string
}

// run bundles the collaborators shared by Run, Clean and Scan. Everything
// is derived from Options; nothing is read from process-wide state except
// the working directory when BaseDir is empty.
type run struct {
	opts       Options
	id         string
	classifier *variant.Classifier
	walker     walker.Walker
	base       string
	out        io.Writer
}

func newRun(opts Options) (*run, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &run{
		opts: opts,
		id:   uuid.New().String(),
		classifier: ClassifierFor(cfg),
		base: opts.BaseDir,
		out:  opts.Out,
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.base == "" {
		if wd, err := os.Getwd(); err == nil {
			r.base = wd
		}
	}

	roots := cfg.Roots
	exts := opts.Exts
	switch {
	case opts.File != "":
		info, err := os.Stat(opts.File)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, opts.File)
			}
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrFileNotFound, opts.File)
		}
		roots = []string{opts.File}
		exts = nil
	case len(opts.Roots) > 0:
		roots = opts.Roots
	}

	r.walker = walker.Walker{
		Roots: roots,
		Exts:  exts,
		Warn: func(root string, err error) {
			log.Warn().Err(err).Str("root", root).Str("run_id", r.id).Msg("Scan root unavailable, skipping")
		},
	}
	return r, nil
}

// ClassifierFor builds the classifier implied by cfg.
func ClassifierFor(cfg config.Config) *variant.Classifier {
	return variant.NewClassifier(variant.Rules{
		Widths:     cfg.Widths,
		OutputExt:  cfg.OutputExt(),
		SourceExts: cfg.SourceExtensions,
	})
}

func (r *run) display(path string) string {
	if r.base != "" && isWithin(path, r.base) {
		if rel, err := filepath.Rel(r.base, path); err == nil {
			return rel
		}
	}
	return path
}

// Run executes generate mode: every source under the configured roots gets
// its missing or outdated variants. Per-file failures are folded into the
// report; only configuration problems and cancellation return an error.
// On cancellation no new work is dispatched, in-flight variants complete,
// and the partial report is returned together with ctx.Err().
func Run(ctx context.Context, opts Options, updates chan<- ProgressUpdate) (Report, error) {
	r, err := newRun(opts)
	if err != nil {
		return Report{}, err
	}

	cfg := opts.Config
	report := Report{RunID: r.id}
	planner := NewPlanner(r.classifier, cfg.Quality)
	transcoder := NewTranscoder(cfg)
	widths := r.classifier.Widths()

	log.Info().
		Str("run_id", r.id).
		Strs("roots", r.walker.Roots).
		Ints("widths", widths).
		Str("format", cfg.Format).
		Int("quality", cfg.Quality).
		Msg("Generating variants")

	jobs := make(chan Job)
	results := make(chan Result)

	workers := cfg.WorkerCount()
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, planner, transcoder, widths)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			report.add(res, r.display(res.Path))
			opts.Metrics.observe(res)
			r.print(res)
			if updates != nil {
				updates <- progressFor(res)
			}
		}
	}()

	type walkStats struct{ found, sources int }
	producerDone := make(chan walkStats, 1)
	go func() {
		defer close(jobs)
		stats := walkStats{}
		defer func() { producerDone <- stats }()
		claims := stemClaims{}

		for path := range r.walker.Files(ctx) {
			cls := r.classifier.Classify(path)
			if cls.Kind == variant.KindIgnored {
				continue
			}
			stats.found++
			if cls.Kind != variant.KindSource {
				log.Debug().Str("path", path).Str("class", cls.Kind.String()).Msg("Not a source, skipping")
				continue
			}
			if owner, lost := r.claim(claims, path); lost {
				if owner == path {
					continue
				}
				stats.sources++
				if updates != nil {
					updates <- ProgressUpdate{SourcesDelta: 1}
				}
				results <- Result{
					Outcome: OutcomeFailed,
					Source:  path,
					Path:    path,
					Err:     fmt.Errorf("%w: %s already produces these variants", ErrDuplicateStem, r.display(owner)),
				}
				continue
			}
			select {
			case jobs <- Job{Path: path}:
				stats.sources++
				if updates != nil {
					updates <- ProgressUpdate{SourcesDelta: 1}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone
	stats := <-producerDone
	report.Sources = stats.sources

	sort.Slice(report.Failures, func(i, j int) bool {
		if report.Failures[i].Path != report.Failures[j].Path {
			return report.Failures[i].Path < report.Failures[j].Path
		}
		return report.Failures[i].Width < report.Failures[j].Width
	})

	log.Info().
		Str("run_id", r.id).
		Int("sources", report.Sources).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Generate complete")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if stats.found == 0 {
		return report, fmt.Errorf("%w under %s", ErrNoImages, strings.Join(r.walker.Roots, ", "))
	}
	return report, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, planner *Planner, transcoder Transcoder, widths []int) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return
		}

		src, err := loadSource(job.Path)
		if err != nil {
			results <- Result{Outcome: OutcomeFailed, Source: job.Path, Path: job.Path, Err: err}
			continue
		}

		plan := planner.Plan(src, widths)
		if plan.Conflict != nil {
			results <- Result{Outcome: OutcomeFailed, Source: job.Path, Path: job.Path, Err: plan.Conflict}
			continue
		}

		for _, out := range plan.Fresh {
			results <- Result{Outcome: OutcomeSkipped, Source: job.Path, Path: out}
		}

		for _, task := range plan.Tasks {
			if err := ctx.Err(); err != nil {
				break
			}
			start := time.Now()
			output, err := transcoder.Transcode(task)
			res := Result{
				Outcome: OutcomeCreated,
				Source:  task.Source,
				Path:    task.OutputPath,
				Width:   task.RequestedWidth,
				Output:  output,
				Elapsed: time.Since(start),
			}
			if err != nil {
				res.Outcome = OutcomeFailed
				res.Err = err
			}
			results <- res
		}
	}
}

// loadSource stats a source and reads its pixel width from the header only.
func loadSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	cfg, err := probe(path)
	if err != nil {
		return Source{}, err
	}

	return Source{
		Path:    variant.ParsePath(path),
		ModTime: info.ModTime(),
		Width:   cfg.Width,
	}, nil
}

func probe(path string) (image.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg, nil
}

func (rep *Report) add(res Result, display string) {
	switch res.Outcome {
	case OutcomeCreated:
		rep.Created++
	case OutcomeSkipped:
		rep.Skipped++
	default:
		rep.Failed++
		rep.Failures = append(rep.Failures, Failure{Path: res.Path, Display: display, Width: res.Width, Err: res.Err})
	}
}

func (r *run) print(res Result) {
	switch res.Outcome {
	case OutcomeCreated:
		fmt.Fprintf(r.out, "created %s (%d KiB)\n", r.display(res.Path), (res.Output.Bytes+512)/1024)
	case OutcomeSkipped:
		log.Debug().Str("path", res.Path).Msg("Variant up to date")
	default:
		log.Warn().Err(res.Err).Str("path", res.Path).Int("width", res.Width).Str("run_id", r.id).Msg("Variant failed")
	}
}

func progressFor(res Result) ProgressUpdate {
	switch res.Outcome {
	case OutcomeCreated:
		return ProgressUpdate{CreatedDelta: 1}
	case OutcomeSkipped:
		return ProgressUpdate{SkippedDelta: 1}
	default:
		return ProgressUpdate{FailedDelta: 1}
	}
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
