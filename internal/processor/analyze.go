package processor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ExifAnalysis summarizes identifying EXIF tags of a source. Variants are
// re-encoded from pixels only, so none of this reaches the published files.
type ExifAnalysis struct {
	GPS         []string
	Model       []string
	Timestamps  []string
	SerialCount int
}

func analyzeExif(rs io.ReadSeeker) (ExifAnalysis, error) {
	analysis := ExifAnalysis{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return analysis, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) || strings.Contains(strings.ToLower(err.Error()), "no exif") {
			return analysis, nil
		}
		return analysis, err
	}

	for _, tag := range tags {
		name := tag.TagName
		value := fmt.Sprintf("%s=%s", name, strings.TrimSpace(tag.FormattedFirst))

		switch {
		case strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS"):
			analysis.GPS = append(analysis.GPS, value)
		case name == "Make" || name == "Model" || name == "CameraModelName":
			analysis.Model = append(analysis.Model, value)
		case name == "DateTimeOriginal" || name == "DateTimeDigitized" || name == "DateTime":
			analysis.Timestamps = append(analysis.Timestamps, value)
		}
		if strings.Contains(strings.ToLower(name), "serial") {
			analysis.SerialCount++
		}
	}

	return analysis, nil
}

func (a ExifAnalysis) details() []ScanDetail {
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
	if a.SerialCount > 0 {
		details = append(details, ScanDetail{Category: "Serial Number", Values: []string{fmt.Sprintf("%d tag(s)", a.SerialCount)}})
	}
	return details
}
