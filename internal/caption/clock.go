package caption

import "strings"

// parseClock parses "H:MM:SS<sep>mmm" into seconds. The hour field must have
// between minHour and maxHour digits; the other fields are fixed width.
func parseClock(s string, sep byte, minHour, maxHour int) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, m, rest := parts[0], parts[1], parts[2]
	if len(h) < minHour || len(h) > maxHour || len(m) != 2 {
		return 0, false
	}
	if len(rest) != 6 || rest[2] != sep {
		return 0, false
	}
	sec, ms := rest[:2], rest[3:]

	hours, ok := digits(h)
	if !ok {
		return 0, false
	}
	minutes, ok := digits(m)
	if !ok {
		return 0, false
	}
	seconds, ok := digits(sec)
	if !ok {
		return 0, false
	}
	millis, ok := digits(ms)
	if !ok {
		return 0, false
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, true
}

func digits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// splitTiming splits a "start --> end..." line into its two sides.
func splitTiming(line string) (string, string, bool) {
	idx := strings.Index(line, "-->")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimLeft(line[idx+3:], " \t"), true
}
