package parser

import (
	"errors"
	"fmt"
)

// ErrUnterminatedBlockComment indicates a /* comment with no closing */.
var ErrUnterminatedBlockComment = errors.New("unterminated block comment")

// ErrUnterminatedStringLiteral indicates a line that ends inside a quoted literal.
var ErrUnterminatedStringLiteral = errors.New("unterminated string literal")

// ParseError reports where in the migration content parsing failed.
type ParseError struct {
	Line int // 1-based line of the offending construct
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
