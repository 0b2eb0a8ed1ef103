// Package variant decides, from a file path alone, whether a file is a
// source image, a canonical variant or a stale variant left behind by an
// older naming scheme.
package variant

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Segment is one trailing "-<digits>[w]" marker of a file stem.
type Segment struct {
	Width int
	W     bool
}

// ImagePath is a file path split into the parts the classifier needs.
// Build it with ParsePath; the zero value is not meaningful.
type ImagePath struct {
	Path string
	Dir  string
	// Stem is the file name without its extension.
	Stem string
	// Base is Stem with every trailing width segment removed.
	Base string
	// Ext is the lowercased extension including the leading dot.
	Ext      string
	Segments []Segment
}

// ParsePath splits path into directory, stem, extension and the chain of
// width segments at the end of the stem ("photo-900w-768" has two).
func ParsePath(path string) ImagePath {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	base := stem
	var reversed []Segment
	for {
		idx := strings.LastIndexByte(base, '-')
		if idx <= 0 {
			break
		}
		seg, ok := parseSegment(base[idx+1:])
		if !ok {
			break
		}
		reversed = append(reversed, seg)
		base = base[:idx]
	}

	segments := make([]Segment, len(reversed))
	for i, seg := range reversed {
		segments[len(reversed)-1-i] = seg
	}

	return ImagePath{
		Path:     path,
		Dir:      filepath.Clean(dir),
		Stem:     stem,
		Base:     base,
		Ext:      strings.ToLower(ext),
		Segments: segments,
	}
}

func parseSegment(token string) (Segment, bool) {
	seg := Segment{}
	if n := len(token); n > 0 && (token[n-1] == 'w' || token[n-1] == 'W') {
		seg.W = true
		token = token[:n-1]
	}
	if token == "" {
		return Segment{}, false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return Segment{}, false
		}
	}
	width, err := strconv.Atoi(token)
	if err != nil {
		return Segment{}, false
	}
	seg.Width = width
	return seg, true
}

// HasWidthSuffix reports whether the stem ends in at least one width segment.
func (p ImagePath) HasWidthSuffix() bool {
	return len(p.Segments) > 0
}
