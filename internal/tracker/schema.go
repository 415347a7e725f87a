package tracker

import (
	"fmt"
	"regexp"

	"github.com/aqasim81/chmigrate/internal/database"
)

const (
	// DefaultTable is the ledger table name used when none is configured.
	DefaultTable = "_migrations"
	// DefaultEngine is the ClickHouse table engine for the ledger.
	DefaultEngine = "MergeTree"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName reports whether name can be spliced into ledger SQL
// without quoting.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	return nil
}

// createTableSQL returns the ledger DDL for the client's dialect. Every
// dialect stores the same columns; uid is filled in by the client on insert.
func createTableSQL(d database.Dialect, table, engine string) string {
	switch d {
	case database.DialectPostgres:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    uid            UUID PRIMARY KEY,
    version        BIGINT NOT NULL,
    checksum       TEXT NOT NULL,
    migration_name TEXT NOT NULL,
    applied_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table)
	case database.DialectSQLite:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    uid            TEXT PRIMARY KEY,
    version        INTEGER NOT NULL,
    checksum       TEXT NOT NULL,
    migration_name TEXT NOT NULL,
    applied_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table)
	default:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    uid            UUID DEFAULT generateUUIDv4(),
    version        UInt32,
    checksum       String,
    migration_name String,
    applied_at     DateTime DEFAULT now()
)
ENGINE = %s
ORDER BY tuple(applied_at)`, table, engine)
	}
}

func selectAppliedSQL(table string) string {
	return "SELECT version, checksum, migration_name, applied_at FROM " + table + " ORDER BY version"
}

var insertColumns = []string{"uid", "version", "checksum", "migration_name"}
