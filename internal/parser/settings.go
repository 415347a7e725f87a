package parser

import (
	"strings"
	"unicode"
)

// ExtractSettings collects the key/value pairs declared by SET lines in
// content, e.g. "SET allow_experimental_object_type = 1;". Comments are
// removed first. Assignments without an "=" are ignored.
func ExtractSettings(content string) (map[string]string, error) {
	clean, err := StripComments(content)
	if err != nil {
		return nil, err
	}

	return lineSettings(clean), nil
}

// isSetLine reports whether a cleaned line or statement is a SET declaration.
func isSetLine(line string) bool {
	t := strings.TrimSpace(line)

	return len(t) > 3 && strings.EqualFold(t[:3], "SET") && unicode.IsSpace(rune(t[3]))
}

// lineSettings collects the settings declared on SET lines of cleaned
// content.
func lineSettings(clean string) map[string]string {
	var sets []string

	for _, line := range strings.Split(clean, "\n") {
		if isSetLine(line) {
			sets = append(sets, strings.TrimSpace(line)[4:])
		}
	}

	settings := make(map[string]string)

	for _, segment := range SplitStatements(strings.Join(sets, "\n"), DefaultDelimiter) {
		addAssignments(settings, segment)
	}

	return settings
}

// separateSettings sorts split statements into executable ones and SET
// declarations. A statement counts as a SET only as a whole, so an UPDATE
// whose SET clause starts a line stays intact.
func separateSettings(stmts []string) ([]string, map[string]string) {
	var (
		exec     []string
		settings = make(map[string]string)
	)

	for _, stmt := range stmts {
		if !isSetLine(stmt) {
			exec = append(exec, stmt)
			continue
		}

		addAssignments(settings, strings.TrimSpace(stmt)[4:])
	}

	return exec, settings
}

// addAssignments parses "a = 1, b = 2" into settings.
func addAssignments(settings map[string]string, segment string) {
	for _, assignment := range splitUnquoted(segment, ',') {
		key, value, ok := splitAssignment(assignment)
		if !ok {
			continue
		}

		settings[key] = value
	}
}

// splitAssignment splits "key = value" on the first unquoted "=".
func splitAssignment(s string) (string, string, bool) {
	runes := []rune(s)

	idx := indexUnquoted(runes, '=')
	if idx < 0 {
		return "", "", false
	}

	key := strings.TrimSpace(string(runes[:idx]))
	if key == "" {
		return "", "", false
	}

	return key, unquote(strings.TrimSpace(string(runes[idx+1:]))), true
}

func splitUnquoted(s string, sep rune) []string {
	var parts []string

	runes := []rune(s)
	for {
		idx := indexUnquoted(runes, sep)
		if idx < 0 {
			break
		}

		parts = append(parts, string(runes[:idx]))
		runes = runes[idx+1:]
	}

	return append(parts, string(runes))
}

// unquote strips one pair of matching surrounding quotes.
func unquote(v string) string {
	if len(v) >= 2 && isQuote(rune(v[0])) && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}

	return v
}
