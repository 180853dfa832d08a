package caption

import (
	"strings"

	"github.com/starford/study/internal/models"
)

// parseVTT scans WebVTT cues. A cue starts at a timing line and collects the
// following non-empty lines until a blank line, the next timing line or EOF.
func parseVTT(content string) []models.Segment {
	var (
		out        []models.Segment
		inCue      bool
		start, end float64
		buf        []string
	)

	flush := func() {
		if inCue {
			text := strings.TrimSpace(stripTags(strings.Join(buf, "\n")))
			if text != "" {
				out = append(out, models.Segment{
					Text:     text,
					Start:    round3(start),
					Duration: round3(end - start),
				})
			}
		}
		inCue = false
		buf = buf[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		if s, e, ok := parseVTTTiming(line); ok {
			flush()
			inCue = true
			start, end = s, e
			continue
		}
		if !inCue {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// parseVTTTiming accepts "H:MM:SS.mmm --> H:MM:SS.mmm" with optional cue
// settings after the end timestamp.
func parseVTTTiming(line string) (float64, float64, bool) {
	left, right, ok := splitTiming(line)
	if !ok {
		return 0, 0, false
	}
	if i := strings.IndexAny(right, " \t"); i >= 0 {
		right = right[:i]
	}
	start, ok := parseClock(left, '.', 1, 2)
	if !ok {
		return 0, 0, false
	}
	end, ok := parseClock(right, '.', 1, 2)
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// stripTags removes inline markup such as <c>, </c> or <00:00:01.000>.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '<' {
			if j := strings.IndexByte(s[i+1:], '>'); j > 0 {
				i += j + 1
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
