package database

import (
	"errors"
	"fmt"
)

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrUnsupportedScheme indicates a database URL scheme with no matching client.
var ErrUnsupportedScheme = errors.New("unsupported database URL scheme")

// ErrInvalidSetting indicates a setting name that is not a plain identifier.
var ErrInvalidSetting = errors.New("invalid setting name")

// ClientError wraps a driver failure with the operation that produced it.
type ClientError struct {
	Dialect Dialect
	Op      string
	Err     error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Dialect, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
