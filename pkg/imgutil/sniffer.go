// Package imgutil identifies image containers from their leading bytes.
package imgutil

import (
	"bytes"
	"errors"
	"io"
)

// Kind identifies a supported image type.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindTIFF
	KindWebP
	KindGIF
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindTIFF:
		return "tiff"
	case KindWebP:
		return "webp"
	case KindGIF:
		return "gif"
	default:
		return "unknown"
	}
}

// HasExif reports whether the container can carry an EXIF block that
// go-exif knows how to find.
func (k Kind) HasExif() bool {
	return k == KindJPEG || k == KindTIFF
}

// ErrUnknownFormat is returned when no signature matches.
var ErrUnknownFormat = errors.New("unrecognized image data")

// signature matches magic at offset within the header.
type signature struct {
	kind   Kind
	offset int
	magic  []byte
}

// webp needs both the RIFF tag and the form type at byte 8, so it is
// listed twice and checked as a pair in Detect.
var signatures = []signature{
	{KindJPEG, 0, []byte{0xff, 0xd8, 0xff}},
	{KindPNG, 0, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}},
	{KindTIFF, 0, []byte{'I', 'I', 0x2a, 0x00}},
	{KindTIFF, 0, []byte{'M', 'M', 0x00, 0x2a}},
	{KindWebP, 0, []byte("RIFF")},
	{KindWebP, 8, []byte("WEBP")},
	{KindGIF, 0, []byte("GIF87a")},
	{KindGIF, 0, []byte("GIF89a")},
}

// headerSize covers the longest signature above.
const headerSize = 12

// Detect matches header against the known signatures. Short headers are
// fine; they simply match fewer formats.
func Detect(header []byte) Kind {
	webp := 0
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if end > len(header) || !bytes.Equal(header[sig.offset:end], sig.magic) {
			continue
		}
		if sig.kind != KindWebP {
			return sig.kind
		}
		if webp++; webp == 2 {
			return KindWebP
		}
	}
	return KindUnknown
}

// Sniff identifies the image in rs and rewinds it to the start, so the
// caller can hand rs straight to a decoder.
func Sniff(rs io.ReadSeeker) (Kind, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(rs, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return KindUnknown, ErrUnknownFormat
		}
		return KindUnknown, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return KindUnknown, err
	}

	kind := Detect(header[:n])
	if kind == KindUnknown {
		return KindUnknown, ErrUnknownFormat
	}
	return kind, nil
}
