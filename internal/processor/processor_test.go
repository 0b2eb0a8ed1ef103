package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"variants/internal/config"
)

func testConfig(roots ...string) config.Config {
	cfg := config.Default()
	cfg.Roots = roots
	cfg.Workers = 2
	return cfg
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x80, A: 0xff})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

func imageWidth(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width
}

func noTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".variant-*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestRunHeroScenario(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "hero.jpg"), 2000, 1000)

	var out bytes.Buffer
	opts := Options{Config: testConfig(dir), Out: &out, BaseDir: dir}

	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 2 || report.Skipped != 0 || report.Failed != 0 || report.Sources != 1 {
		t.Fatalf("first run: %+v", report)
	}

	for _, w := range []int{768, 1200} {
		path := filepath.Join(dir, "hero-"+strconv.Itoa(w)+".webp")
		if got := imageWidth(t, path); got != w {
			t.Fatalf("%s is %dpx wide, want %d", path, got, w)
		}
	}
	if !strings.Contains(out.String(), "created hero-768.webp") || !strings.Contains(out.String(), "created hero-1200.webp") {
		t.Fatalf("missing per-file lines: %q", out.String())
	}
	noTempFiles(t, dir)

	before := readAll(t, filepath.Join(dir, "hero-768.webp"))

	report, err = Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Created != 0 || report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("second run: %+v", report)
	}
	if after := readAll(t, filepath.Join(dir, "hero-768.webp")); !bytes.Equal(before, after) {
		t.Fatalf("variant rewritten on an idempotent run")
	}
}

func TestRunDoesNotUpscale(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "small.png"), 300, 200)

	report, err := Run(context.Background(), Options{Config: testConfig(dir)}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, name := range []string{"small-768.webp", "small-1200.webp"} {
		if got := imageWidth(t, filepath.Join(dir, name)); got != 300 {
			t.Fatalf("%s is %dpx wide, want native 300", name, got)
		}
	}
}

func TestRunRegeneratesWhenSourceIsNewer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hero.png")
	writePNG(t, src, 1000, 500)

	opts := Options{Config: testConfig(dir)}
	if _, err := Run(context.Background(), opts, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 2 || report.Skipped != 0 {
		t.Fatalf("expected regeneration, got %+v", report)
	}
}

func TestRunCorruptSourceIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeBytes(t, filepath.Join(dir, "broken.jpg"), []byte("definitely not a jpeg"))
	writePNG(t, filepath.Join(dir, "good.png"), 800, 400)

	report, err := Run(context.Background(), Options{Config: testConfig(dir)}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0].Err, ErrDecode) {
		t.Fatalf("expected one decode failure, got %+v", report.Failures)
	}
	if report.Failures[0].Display == "" {
		t.Fatalf("failure without display path: %+v", report.Failures[0])
	}
}

func TestRunVariantShapedSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "team-2.png"), 100, 100)

	report, err := Run(context.Background(), Options{Config: testConfig(dir)}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Created != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !errors.Is(report.Failures[0].Err, ErrVariantShapedSource) {
		t.Fatalf("unexpected failure: %v", report.Failures[0].Err)
	}
}

func TestRunSameStemSourcesWriteOnce(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "hero.jpg"), 2000, 1000)
	writePNG(t, filepath.Join(dir, "hero.png"), 1000, 500)

	var out bytes.Buffer
	opts := Options{Config: testConfig(dir), Out: &out, BaseDir: dir}
	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Sources != 2 || report.Created != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if f := report.Failures[0]; !errors.Is(f.Err, ErrDuplicateStem) || f.Display != "hero.png" {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if n := strings.Count(out.String(), "created hero-768.webp"); n != 1 {
		t.Fatalf("hero-768.webp created %d times: %q", n, out.String())
	}
	// The first source in walk order owns the names.
	if got := imageWidth(t, filepath.Join(dir, "hero-1200.webp")); got != 1200 {
		t.Fatalf("hero-1200.webp is %dpx wide, want 1200 from hero.jpg", got)
	}

	report, err = Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Skipped != 2 || report.Created != 0 || report.Failed != 1 {
		t.Fatalf("second run: %+v", report)
	}
}

func TestRunSingleFileRespectsStemOwner(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "hero.jpg"), 900, 450)
	writePNG(t, filepath.Join(dir, "hero.png"), 900, 450)

	report, err := Run(context.Background(), Options{Config: testConfig(dir), File: filepath.Join(dir, "hero.png")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 0 || report.Failed != 1 || !errors.Is(report.Failures[0].Err, ErrDuplicateStem) {
		t.Fatalf("expected the png to defer to hero.jpg, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(dir, "hero-768.webp")); !os.IsNotExist(err) {
		t.Fatalf("variant written for a shadowed source")
	}

	report, err = Run(context.Background(), Options{Config: testConfig(dir), File: filepath.Join(dir, "hero.jpg")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 2 || report.Failed != 0 {
		t.Fatalf("owner not processed: %+v", report)
	}
}

func TestRunOverlappingRootsProcessOnce(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "nested", "a.png"), 100, 100)

	opts := Options{Config: testConfig(dir, filepath.Join(dir, "nested"))}
	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Sources != 1 || report.Created != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunSourceSizeCap(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "big.png"), 400, 400)

	cfg := testConfig(dir)
	cfg.MaxSourceBytes = 16
	report, err := Run(context.Background(), Options{Config: cfg}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 2 || !errors.Is(report.Failures[0].Err, ErrTooLarge) {
		t.Fatalf("expected size-cap failures, got %+v", report)
	}
	noTempFiles(t, dir)
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)
	writePNG(t, filepath.Join(dir, "b.png"), 100, 100)

	report, err := Run(context.Background(), Options{Config: testConfig(dir), File: filepath.Join(dir, "a.png")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Sources != 1 || report.Created != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(filepath.Join(dir, "b-768.webp")); !os.IsNotExist(err) {
		t.Fatalf("b.png should not have been processed")
	}
}

func TestRunMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Options{Config: testConfig(dir), File: filepath.Join(dir, "nope.jpg")}, nil)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestRunMissingRootFindsNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Options{Config: testConfig(filepath.Join(dir, "missing"))}, nil)
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestRunExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)
	writeJPEG(t, filepath.Join(dir, "b.jpg"), 100, 100)

	opts := Options{Config: testConfig(), Roots: []string{dir}, Exts: map[string]bool{".png": true}}
	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Sources != 1 {
		t.Fatalf("expected only the png source, got %+v", report)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, Options{Config: testConfig(dir)}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Created != 0 {
		t.Fatalf("no work expected after cancellation: %+v", report)
	}
	noTempFiles(t, dir)
}

func TestRunProgressAndMetrics(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 900, 300)
	writePNG(t, filepath.Join(dir, "b.png"), 900, 300)

	updates := make(chan ProgressUpdate)
	totals := make(chan ProgressUpdate)
	go func() {
		sum := ProgressUpdate{}
		for u := range updates {
			sum.SourcesDelta += u.SourcesDelta
			sum.CreatedDelta += u.CreatedDelta
			sum.SkippedDelta += u.SkippedDelta
			sum.FailedDelta += u.FailedDelta
		}
		totals <- sum
	}()

	metrics := NewMetrics()
	report, err := Run(context.Background(), Options{Config: testConfig(dir), Metrics: metrics}, updates)
	close(updates)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sum := <-totals
	if sum.SourcesDelta != 2 || sum.CreatedDelta != report.Created || report.Created != 4 {
		t.Fatalf("progress %+v does not match report %+v", sum, report)
	}
	if got := testutil.ToFloat64(metrics.Variants.WithLabelValues("created")); got != 4 {
		t.Fatalf("created counter = %v", got)
	}

	textfile := filepath.Join(t.TempDir(), "variants.prom")
	if err := metrics.WriteTextfile(textfile); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	if data := readAll(t, textfile); !bytes.Contains(data, []byte("variants_generated_total")) {
		t.Fatalf("textfile missing counter: %s", data)
	}
}

func TestGenerateAndCleanAreOrderInsensitive(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "hero.png"), 1600, 800)
	writeBytes(t, filepath.Join(dir, "hero-900w-768.webp"), []byte("legacy"))

	opts := Options{Config: testConfig(dir)}
	if _, err := Clean(context.Background(), opts); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := Run(context.Background(), opts, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cleanReport, err := Clean(context.Background(), opts)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleanReport.Removed != 0 {
		t.Fatalf("generate produced files that clean considers stale: %+v", cleanReport)
	}
	report, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 0 || report.Skipped != 2 {
		t.Fatalf("clean removed canonical variants: %+v", report)
	}
}

func readAll(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
