package parser

import "strings"

// DefaultDelimiter separates statements in a migration file.
const DefaultDelimiter = ';'

// SplitStatements splits content on every delimiter that is not inside a
// quoted literal. Segments are trimmed and empty ones dropped. content is
// expected to be free of comments already.
func SplitStatements(content string, delimiter rune) []string {
	var (
		tr    stringTracker
		cur   strings.Builder
		stmts []string
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}

		cur.Reset()
	}

	runes := []rune(content)
	for i, c := range runes {
		if !tr.process(runes, i) && c == delimiter {
			flush()
			continue
		}

		cur.WriteRune(c)
	}

	flush()

	return stmts
}

// indexUnquoted returns the index of the first rune r in s that sits outside
// any quoted literal, or -1.
func indexUnquoted(s []rune, r rune) int {
	var tr stringTracker

	for i, c := range s {
		if !tr.process(s, i) && c == r {
			return i
		}
	}

	return -1
}
