package executor

import (
	"fmt"
	"strings"

	"github.com/aqasim81/chmigrate/internal/migration"
)

// DivergentMigrationError indicates an applied migration whose file no
// longer matches the checksum recorded when it ran.
type DivergentMigrationError struct {
	Version          uint32
	Filename         string
	RecordedChecksum string
	CurrentChecksum  string
}

func (e *DivergentMigrationError) Error() string {
	return fmt.Sprintf("migration %s (version %d) changed after it was applied: recorded checksum %s, current %s",
		e.Filename, e.Version, e.RecordedChecksum, e.CurrentChecksum)
}

// DeletedMigrationError indicates a ledger record whose file is gone.
type DeletedMigrationError struct {
	Version       uint32
	MigrationName string
}

func (e *DeletedMigrationError) Error() string {
	return fmt.Sprintf("migration %s (version %d) is recorded as applied but its file is missing",
		e.MigrationName, e.Version)
}

// StatementExecutionError reports the statement that stopped a run together
// with the migrations that completed earlier in the same run. Statements that
// ran before the failing one, in the same file, are not rolled back.
type StatementExecutionError struct {
	Migration      migration.Migration
	StatementIndex int
	Statement      string
	AppliedSoFar   []string
	Err            error
}

func (e *StatementExecutionError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "migration %s: statement %d failed: %v", e.Migration.Filename, e.StatementIndex+1, e.Err)

	if len(e.AppliedSoFar) > 0 {
		fmt.Fprintf(&b, " (applied in this run: %s)", strings.Join(e.AppliedSoFar, ", "))
	} else {
		b.WriteString(" (no migrations applied in this run)")
	}

	return b.String()
}

func (e *StatementExecutionError) Unwrap() error {
	return e.Err
}

// RecordError reports a migration whose statements all ran but whose ledger
// record could not be written. The next run will execute it again, so its
// statements must be safe to repeat.
type RecordError struct {
	Migration    migration.Migration
	AppliedSoFar []string
	Err          error
}

func (e *RecordError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "recording migration %s: %v (its statements already ran", e.Migration.Filename, e.Err)

	if len(e.AppliedSoFar) > 0 {
		fmt.Fprintf(&b, "; applied in this run: %s)", strings.Join(e.AppliedSoFar, ", "))
	} else {
		b.WriteString("; no migrations applied in this run)")
	}

	return b.String()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
