package index

import "strings"

const defaultSearchLimit = 20

// searchTerms splits a free-text query into terms. Characters that carry
// meaning in FTS5 or LIKE syntax are dropped so titles such as "C++ in 10
// minutes?" can be searched as typed.
func searchTerms(query string) []string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '"', '*', '%', '_', '(', ')', ':', '^', '{', '}', '+', '-', '?':
			return ' '
		}
		return r
	}, query)
	return strings.Fields(clean)
}

// ftsQuery quotes every term so FTS5 treats them as plain tokens joined by
// an implicit AND.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}
