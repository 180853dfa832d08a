// Package caption parses timed caption files into ordered transcript segments.
//
// Three formats are supported: YouTube json3 event lists, WebVTT cues and
// numbered SRT blocks. The cue formats are scanned line by line with a small
// state machine; blocks that do not match the expected shape are skipped
// without emitting partial segments.
package caption

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/study/internal/models"
)

// Format identifies a caption file format.
type Format string

// Supported caption formats. The values double as file extensions.
const (
	FormatJSON3 Format = "json3"
	FormatVTT   Format = "vtt"
	FormatSRT   Format = "srt"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON3, FormatVTT, FormatSRT}

// Valid reports whether f is one of Formats.
func (f Format) Valid() bool { return slices.Contains(Formats, f) }

// FormatError is returned when a caption format tag is not supported.
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("caption: unsupported format %q", e.Format)
}

// ParseError is returned when caption content is structurally invalid.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("caption: parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw caption bytes in the given format into segments.
// Empty or whitespace-only input yields no segments.
func Parse(data []byte, format Format) ([]models.Segment, error) {
	switch format {
	case FormatJSON3:
		return parseJSON3(data)
	case FormatVTT:
		return parseVTT(normalize(data)), nil
	case FormatSRT:
		return parseSRT(normalize(data)), nil
	default:
		return nil, &FormatError{Format: string(format)}
	}
}

// ParseFile reads path and parses it as format.
func ParseFile(path string, format Format) ([]models.Segment, error) {
	if !format.Valid() {
		return nil, &FormatError{Format: string(format)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("caption: read %s: %w", path, err)
	}
	return Parse(data, format)
}

// DetectFormat picks the format from the file extension and falls back to
// fallback when the extension is not a supported format. Content is never
// inspected.
func DetectFormat(path string, fallback Format) Format {
	ext := Format(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext.Valid() {
		return ext
	}
	return fallback
}

// normalize strips a UTF-8 BOM and converts CRLF / CR line endings to LF.
func normalize(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// round3 rounds seconds to millisecond precision.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
