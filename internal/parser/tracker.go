package parser

// stringTracker follows quoted literals ('...', "...", `...`) through a rune
// stream. The zero value is ready to use; call reset before scanning a new,
// independent piece of content.
type stringTracker struct {
	inString bool
	delim    rune
	escaped  bool
}

func (s *stringTracker) reset() {
	*s = stringTracker{}
}

func isQuote(c rune) bool {
	return c == '\'' || c == '"' || c == '`'
}

// process consumes content[i] and reports whether that rune belongs to a
// string literal, delimiters included.
//
// Inside a literal a backslash escapes the next rune, and a delimiter that is
// immediately followed by the same delimiter is a doubled-quote escape: the
// first quote leaves the literal open and the second is consumed as escaped.
func (s *stringTracker) process(content []rune, i int) bool {
	c := content[i]

	if !s.inString {
		if isQuote(c) {
			s.inString = true
			s.delim = c
			s.escaped = false

			return true
		}

		return false
	}

	switch {
	case s.escaped:
		s.escaped = false
	case c == '\\':
		s.escaped = true
	case c == s.delim:
		if i+1 < len(content) && content[i+1] == s.delim {
			s.escaped = true
		} else {
			s.inString = false
		}
	}

	return true
}
