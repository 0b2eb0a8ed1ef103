package processor

import (
	"io"
	"time"

	"variants/internal/config"
	"variants/internal/variant"
)

// Options configure one invocation of Run, Clean or Scan.
type Options struct {
	Config config.Config
	// Roots replaces Config.Roots when non-empty (--glob).
	Roots []string
	// Exts restricts the walk to these extensions (--glob).
	Exts map[string]bool
	// File names exactly one file to process (--file). It must exist.
	File string
	// Out receives one line per created or removed file. Nil discards.
	Out io.Writer
	// BaseDir is used to shorten displayed paths. Defaults to the working directory.
	BaseDir string
	// DryRun makes Clean list stale variants without removing them.
	DryRun  bool
	Metrics *Metrics
}

// Source is a source image as seen by the planner.
type Source struct {
	Path    variant.ImagePath
	ModTime time.Time
	// Width is the native pixel width; zero when unknown.
	Width int
}

// Task is one (source, width) pair to transcode.
type Task struct {
	Source         string
	RequestedWidth int
	// TargetWidth is RequestedWidth clamped to the source's native width.
	TargetWidth int
	// SourceWidth is the width read from the source header, before any
	// EXIF orientation is applied.
	SourceWidth int
	OutputPath  string
	Quality     int
}

// PlanResult is the outcome of planning one source.
type PlanResult struct {
	Tasks []Task
	// Fresh lists output paths that are already up to date.
	Fresh []string
	// Conflict is set when no variants can be planned for the source.
	Conflict error
}

// Output describes a written variant.
type Output struct {
	Width  int
	Height int
	Bytes  int64
}

// Outcome of one (source, width) unit of work.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is produced by a worker and consumed by the collector.
type Result struct {
	Outcome Outcome
	Source  string
	Path    string
	Width   int
	Output  Output
	Elapsed time.Duration
	Err     error
}

// Failure is one itemized failure in a report.
type Failure struct {
	Path    string
	Display string
	Width   int
	Err     error
}

// Report summarizes a generate run. It is returned, never persisted.
type Report struct {
	RunID    string
	Sources  int
	Created  int
	Skipped  int
	Failed   int
	Failures []Failure
}

// CleanReport summarizes a cleanup run.
type CleanReport struct {
	RunID  string
	DryRun bool
	// Removed counts deleted files, or files that would be deleted in a dry run.
	Removed  int
	Failed   int
	Failures []Failure
}

// ScanReport describes one classified file.
type ScanReport struct {
	Path    string
	Display string
	Class   variant.Class
	Width   int
	Height  int
	Kind    string
	Details []ScanDetail
	Err     error
}

type ScanDetail struct {
	Category string
	Values   []string
}

// ProgressUpdate carries counter deltas to a progress view.
type ProgressUpdate struct {
	SourcesDelta int
	CreatedDelta int
	SkippedDelta int
	FailedDelta  int
}
