package parser

import (
	"strings"
	"unicode"
)

// StripComments removes /* */ block comments and -- / # line comments from
// content. Comment markers inside quoted literals are left untouched.
//
// A removed block comment is replaced by the newlines it spanned, or by a
// single space when it sat directly between two tokens, so line numbers stay
// stable and adjacent tokens never merge. A # starts a comment only when it is
// the first non-whitespace character of the already-cleaned line.
func StripComments(content string) (string, error) {
	withoutBlocks, err := stripBlockComments([]rune(content))
	if err != nil {
		return "", err
	}

	return stripLineComments(withoutBlocks)
}

// commentWriter accumulates cleaned output and remembers enough about the
// current line to place # comments and block comment gaps.
type commentWriter struct {
	b         strings.Builder
	last      rune
	lineBlank bool
}

func (w *commentWriter) write(c rune) {
	w.b.WriteRune(c)
	w.last = c

	switch {
	case c == '\n':
		w.lineBlank = true
	case !unicode.IsSpace(c):
		w.lineBlank = false
	}
}

func (w *commentWriter) writeAll(rs []rune) {
	for _, c := range rs {
		w.write(c)
	}
}

// gap writes the replacement for a removed block comment.
func (w *commentWriter) gap(comment []rune, next rune, hasNext bool) {
	newlines := 0

	for _, c := range comment {
		if c == '\n' {
			newlines++
		}
	}

	if newlines > 0 {
		for range newlines {
			w.write('\n')
		}

		return
	}

	if w.b.Len() > 0 && !unicode.IsSpace(w.last) && hasNext && !unicode.IsSpace(next) {
		w.write(' ')
	}
}

// stripBlockComments is the first pass. Line comments are copied through
// verbatim (the second pass drops them) so that a /* or a stray quote inside
// one cannot swallow the following lines.
func stripBlockComments(content []rune) (string, error) {
	var (
		outer stringTracker
		w     = commentWriter{lineBlank: true}
		n     = len(content)
	)

	w.b.Grow(n)

	for i := 0; i < n; i++ {
		c := content[i]

		if outer.process(content, i) {
			w.write(c)
			continue
		}

		switch {
		case c == '-' && i+1 < n && content[i+1] == '-', c == '#' && w.lineBlank:
			end := lineEnd(content, i)
			w.writeAll(content[i:end])
			i = end - 1

		case c == '/' && i+1 < n && content[i+1] == '*':
			end, ok := blockCommentEnd(content, i+2)
			if !ok {
				return "", &ParseError{Line: lineOf(content, i), Err: ErrUnterminatedBlockComment}
			}

			var next rune
			if end < n {
				next = content[end]
			}

			w.gap(content[i:end], next, end < n)
			i = end - 1

		default:
			w.write(c)
		}
	}

	return w.b.String(), nil
}

// blockCommentEnd returns the index just past the */ closing a comment whose
// body starts at start. Quoted literals inside the comment are skipped with a
// tracker of their own, so a */ inside quotes does not close the comment.
func blockCommentEnd(content []rune, start int) (int, bool) {
	var inner stringTracker

	for j := start; j < len(content); j++ {
		if inner.process(content, j) {
			continue
		}

		if content[j] == '*' && j+1 < len(content) && content[j+1] == '/' {
			return j + 2, true
		}
	}

	return 0, false
}

// stripLineComments is the second pass, applied line by line.
func stripLineComments(content string) (string, error) {
	lines := strings.Split(content, "\n")

	var tr stringTracker

	for n, line := range lines {
		tr.reset()

		runes := []rune(line)
		blank := true

		var b strings.Builder

	scan:
		for i, c := range runes {
			if tr.process(runes, i) {
				b.WriteRune(c)
				blank = false

				continue
			}

			switch {
			case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
				break scan
			case c == '#' && blank:
				break scan
			}

			b.WriteRune(c)

			if !unicode.IsSpace(c) {
				blank = false
			}
		}

		if tr.inString {
			return "", &ParseError{Line: n + 1, Err: ErrUnterminatedStringLiteral}
		}

		lines[n] = b.String()
	}

	return strings.Join(lines, "\n"), nil
}

func lineEnd(content []rune, from int) int {
	for i := from; i < len(content); i++ {
		if content[i] == '\n' {
			return i
		}
	}

	return len(content)
}

func lineOf(content []rune, pos int) int {
	line := 1

	for _, c := range content[:pos] {
		if c == '\n' {
			line++
		}
	}

	return line
}
