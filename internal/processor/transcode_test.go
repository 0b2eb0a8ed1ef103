package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"variants/internal/config"
)

func TestTranscodeUsesTargetWidth(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	writePNG(t, src, 1000, 500)

	out := filepath.Join(dir, "wide-768.webp")
	tr := Transcoder{Format: config.FormatWebP}
	output, err := tr.Transcode(Task{Source: src, RequestedWidth: 768, TargetWidth: 640, SourceWidth: 1000, OutputPath: out, Quality: 62})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if output.Width != 640 || output.Height != 320 {
		t.Fatalf("unexpected output size %dx%d", output.Width, output.Height)
	}
	if got := imageWidth(t, out); got != 640 {
		t.Fatalf("written variant is %dpx wide, want 640", got)
	}
}

func TestTranscodeWriteErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hero.png")
	writePNG(t, src, 200, 100)

	out := filepath.Join(dir, "missing", "hero-768.webp")
	tr := Transcoder{Format: config.FormatWebP}
	_, err := tr.Transcode(Task{Source: src, RequestedWidth: 768, TargetWidth: 200, SourceWidth: 200, OutputPath: out, Quality: 62})
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output exists after a failed write: %v", err)
	}
	noTempFiles(t, dir)
}

func TestTranscodeEncodeErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hero.png")
	writePNG(t, src, 200, 100)

	out := filepath.Join(dir, "hero-768.bmp")
	tr := Transcoder{Format: "bmp"}
	_, err := tr.Transcode(Task{Source: src, RequestedWidth: 768, TargetWidth: 200, SourceWidth: 200, OutputPath: out, Quality: 62})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output exists after a failed encode: %v", err)
	}
	noTempFiles(t, dir)
}

func TestRunWriteFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "hero.png"), 1600, 800)
	// A non-empty directory where hero-768.webp belongs cannot be replaced
	// by a rename, even when running as root.
	writeBytes(t, filepath.Join(dir, "hero-768.webp", "keep.txt"), []byte("x"))

	report, err := Run(context.Background(), Options{Config: testConfig(dir), BaseDir: dir}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 1 || report.Failed != 1 {
		t.Fatalf("expected one created and one failed variant, got %+v", report)
	}
	f := report.Failures[0]
	if !errors.Is(f.Err, ErrWrite) || f.Display != "hero-768.webp" || f.Width != 768 {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if info, err := os.Stat(filepath.Join(dir, "hero-768.webp")); err != nil || !info.IsDir() {
		t.Fatalf("blocking directory was replaced: %v", err)
	}
	if got := imageWidth(t, filepath.Join(dir, "hero-1200.webp")); got != 1200 {
		t.Fatalf("run did not continue past the failure: width %d", got)
	}
	noTempFiles(t, dir)
}
