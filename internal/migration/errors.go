package migration

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMigrationsDirNotFound indicates the migrations directory could not be listed.
var ErrMigrationsDirNotFound = errors.New("migrations directory not found")

// ErrNoMigrationsFound indicates the directory holds no migration files.
var ErrNoMigrationsFound = errors.New("no migrations found")

// ErrInvalidFilename indicates a .sql file whose name does not start with "{version}_".
var ErrInvalidFilename = errors.New("invalid migration filename")

// ErrDuplicateVersion indicates two files share the same version.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrNotSorted indicates a catalog that is not in ascending version order.
var ErrNotSorted = errors.New("migrations not sorted by version")

// ErrContentChanged indicates a file was modified after it was discovered.
var ErrContentChanged = errors.New("migration file changed since discovery")

// DiscoveryError is returned for any problem found while building the
// catalog. No database work happens once it is raised.
type DiscoveryError struct {
	Dir   string
	Files []string // offending files, if any
	Err   error
}

func (e *DiscoveryError) Error() string {
	var b strings.Builder

	b.WriteString("discovering migrations")

	if e.Dir != "" {
		b.WriteString(" in ")
		b.WriteString(e.Dir)
	}

	fmt.Fprintf(&b, ": %v", e.Err)

	if len(e.Files) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Files, ", "))
	}

	return b.String()
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
