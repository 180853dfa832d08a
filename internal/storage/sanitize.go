package storage

import (
	"strings"
	"unicode/utf8"
)

const maxNameRunes = 200

// SanitizeFilename maps an arbitrary display name to a safe file name.
// Reserved characters become "_", runs of "_" collapse, leading and trailing
// spaces, underscores and dots are trimmed and the result is capped at 200
// runes. An empty result becomes "untitled".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		sb.WriteRune(r)
	}
	out := strings.Trim(sb.String(), " _.")
	if utf8.RuneCountInString(out) > maxNameRunes {
		out = strings.TrimRight(string([]rune(out)[:maxNameRunes]), " _.")
	}
	if out == "" {
		return "untitled"
	}
	return out
}
