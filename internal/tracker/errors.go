package tracker

import "errors"

// ErrTableCreation indicates the migrations ledger table could not be created.
var ErrTableCreation = errors.New("creating migrations table")

// ErrInvalidTableName indicates a ledger table name that is not a plain,
// optionally database-qualified, identifier.
var ErrInvalidTableName = errors.New("invalid migrations table name")
