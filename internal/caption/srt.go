package caption

import (
	"strings"

	"github.com/starford/study/internal/models"
)

type srtState int

const (
	srtAwaitIndex srtState = iota
	srtAwaitTiming
	srtText
)

// parseSRT scans numbered SRT blocks: a sequence number line, a timing line
// and text lines until a blank line, the next numbered block or EOF.
func parseSRT(content string) []models.Segment {
	var (
		out        []models.Segment
		state      = srtAwaitIndex
		start, end float64
		buf        []string
	)

	emit := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			out = append(out, models.Segment{
				Text:     text,
				Start:    round3(start),
				Duration: round3(end - start),
			})
		}
		buf = buf[:0]
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch state {
		case srtAwaitIndex:
			if isSequence(line) {
				state = srtAwaitTiming
			}
		case srtAwaitTiming:
			if s, e, ok := parseSRTTiming(line); ok {
				start, end = s, e
				state = srtText
			} else if !isSequence(line) {
				state = srtAwaitIndex
			}
		case srtText:
			if line == "" {
				emit()
				state = srtAwaitIndex
				continue
			}
			if isSequence(line) && i+1 < len(lines) && startsWithSRTClock(lines[i+1]) {
				emit()
				state = srtAwaitTiming
				continue
			}
			buf = append(buf, line)
		}
	}
	if state == srtText {
		emit()
	}
	return out
}

func isSequence(line string) bool {
	_, ok := digits(strings.TrimSpace(line))
	return ok
}

// parseSRTTiming accepts "HH:MM:SS,mmm --> HH:MM:SS,mmm" with nothing but
// whitespace after the end timestamp.
func parseSRTTiming(line string) (float64, float64, bool) {
	left, right, ok := splitTiming(line)
	if !ok {
		return 0, 0, false
	}
	start, ok := parseSRTClock(left)
	if !ok {
		return 0, 0, false
	}
	end, ok := parseSRTClock(strings.TrimSpace(right))
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

func parseSRTClock(s string) (float64, bool) {
	return parseClock(s, ',', 2, 2)
}

func startsWithSRTClock(line string) bool {
	if len(line) < 8 {
		return false
	}
	_, ok := parseClockPrefix(line[:8])
	return ok
}

// parseClockPrefix checks the "HH:MM:SS" shape.
func parseClockPrefix(s string) (int, bool) {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return 0, false
	}
	h, ok1 := digits(s[0:2])
	m, ok2 := digits(s[3:5])
	sec, ok3 := digits(s[6:8])
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return h*3600 + m*60 + sec, true
}
