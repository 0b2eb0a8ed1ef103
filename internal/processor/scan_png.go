package processor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// maxPNGTextChunk bounds how much of a text chunk is read into memory.
const maxPNGTextChunk = 1 << 20

// PngAnalysis lists the metadata chunks of a PNG source that identify
// where, when or with what it was made.
type PngAnalysis struct {
	GPS        []string
	Model      []string
	Timestamps []string
	HasExif    bool
}

func scanPNGMetadata(rs io.ReadSeeker) (PngAnalysis, error) {
	analysis := PngAnalysis{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return analysis, err
	}

	br := bufio.NewReader(rs)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return analysis, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return analysis, errors.New("invalid PNG signature")
	}

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if err == io.EOF {
				return analysis, nil
			}
			return analysis, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkName := string(header[4:8])

		switch {
		case (chunkName == "tEXt" || chunkName == "zTXt" || chunkName == "iTXt") && length <= maxPNGTextChunk:
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return analysis, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return analysis, err
			}
			if key, value := splitPNGText(chunkName, data); key != "" {
				analysis.add(key, value)
			}
		case chunkName == "tIME":
			analysis.Timestamps = append(analysis.Timestamps, "tIME chunk")
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return analysis, err
			}
		case chunkName == "eXIf":
			analysis.HasExif = true
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return analysis, err
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return analysis, err
			}
		}

		if chunkName == "IEND" {
			return analysis, nil
		}
	}
}

// splitPNGText returns the keyword of a text chunk and, for uncompressed
// tEXt chunks, its shortened value. Compressed values are not inflated.
func splitPNGText(chunkName string, data []byte) (string, string) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return "", ""
	}
	key := string(data[:idx])
	if chunkName != "tEXt" {
		return key, ""
	}
	value := strings.TrimSpace(string(data[idx+1:]))
	if len(value) > maxPNGValueLen {
		value = value[:maxPNGValueLen] + "..."
	}
	return key, value
}

const maxPNGValueLen = 64

func (a *PngAnalysis) add(key, value string) {
	entry := key
	if value != "" {
		entry = key + "=" + value
	}
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "gps") || strings.Contains(lower, "latitude") || strings.Contains(lower, "longitude"):
		a.GPS = append(a.GPS, entry)
	case strings.Contains(lower, "model") || strings.Contains(lower, "make"):
		a.Model = append(a.Model, entry)
	case strings.Contains(lower, "date") || strings.Contains(lower, "time"):
		a.Timestamps = append(a.Timestamps, entry)
	}
}

func (a PngAnalysis) details() []ScanDetail {
	var details []ScanDetail
	if len(a.GPS) > 0 {
		details = append(details, ScanDetail{Category: "GPS", Values: a.GPS})
	}
	if len(a.Model) > 0 {
		details = append(details, ScanDetail{Category: "Device Model", Values: a.Model})
	}
	if len(a.Timestamps) > 0 {
		details = append(details, ScanDetail{Category: "Timestamp", Values: a.Timestamps})
	}
	if a.HasExif {
		details = append(details, ScanDetail{Category: "EXIF", Values: []string{"eXIf chunk"}})
	}
	return details
}
