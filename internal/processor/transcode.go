package processor

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"variants/internal/config"
	"variants/pkg/imgutil"
)

// Transcoder resizes one source to one width and writes the variant.
type Transcoder struct {
	Format string
	// MaxSourceBytes rejects larger sources; zero disables the cap.
	MaxSourceBytes int64
}

func NewTranscoder(cfg config.Config) Transcoder {
	return Transcoder{Format: cfg.Format, MaxSourceBytes: cfg.MaxSourceBytes}
}

// Transcode decodes task.Source, resizes it to task.TargetWidth keeping the
// aspect ratio (never enlarging), encodes it and atomically replaces
// task.OutputPath. A failed call leaves no file at OutputPath.
func (t Transcoder) Transcode(task Task) (Output, error) {
	img, err := t.decode(task.Source)
	if err != nil {
		return Output{}, err
	}

	native := img.Bounds().Dx()
	width := task.TargetWidth
	if native != task.SourceWidth {
		// EXIF orientation swapped the axes after the header was probed.
		width = min(task.RequestedWidth, native)
	}
	if width <= 0 || width > native {
		width = native
	}
	if width < native {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	size, err := t.writeAtomic(task.OutputPath, img, task.Quality)
	if err != nil {
		return Output{}, err
	}

	bounds := img.Bounds()
	log.Debug().
		Str("path", task.OutputPath).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int64("bytes", size).
		Msg("Variant written")

	return Output{Width: bounds.Dx(), Height: bounds.Dy(), Bytes: size}, nil
}

func (t Transcoder) decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if t.MaxSourceBytes > 0 && info.Size() > t.MaxSourceBytes {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, info.Size(), t.MaxSourceBytes)
	}

	if _, err := imgutil.Sniff(file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func (t Transcoder) writeAtomic(destPath string, img image.Image, quality int) (int64, error) {
	destDir := filepath.Dir(destPath)

	tmpFile, err := os.CreateTemp(destDir, ".variant-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer os.Remove(tmpFile.Name())

	bw := bufio.NewWriter(tmpFile)
	if err := t.encode(bw, img, quality); err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := replaceFile(tmpFile.Name(), destPath); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return info.Size(), nil
}

func (t Transcoder) encode(w io.Writer, img image.Image, quality int) error {
	switch t.Format {
	case config.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case config.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case config.FormatWebP, "":
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return fmt.Errorf("unsupported format %q", t.Format)
	}
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
