package processor

import "errors"

var (
	// ErrFileNotFound is returned when an explicitly named file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoImages is returned when the scanned roots contain no image at all.
	ErrNoImages = errors.New("no images found")

	// ErrDecode marks a source that could not be read as an image.
	ErrDecode = errors.New("decode image")

	// ErrEncode marks an image the configured encoder rejected.
	ErrEncode = errors.New("encode variant")

	// ErrWrite marks a variant that could not be written to disk.
	ErrWrite = errors.New("write variant")

	// ErrTooLarge marks a source above the configured size cap.
	ErrTooLarge = errors.New("source exceeds size limit")

	// ErrVariantShapedSource marks a source whose own name ends in a width
	// suffix; every variant of it would classify as stale.
	ErrVariantShapedSource = errors.New("source name ends in a width suffix; rename it")

	// ErrDuplicateStem marks a source that shares directory and stem with
	// an earlier source ("hero.jpg" and "hero.png"); both would write the
	// same variant files.
	ErrDuplicateStem = errors.New("another source with the same name owns its variants")
)
