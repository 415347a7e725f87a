package database

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// Dialect names the database family behind a Client.
type Dialect string

const (
	DialectClickHouse Dialect = "clickhouse"
	DialectPostgres   Dialect = "postgres"
	DialectSQLite     Dialect = "sqlite"
)

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Client is the capability the migration engine needs from a database.
// Implementations run one call at a time; callers never issue concurrent
// requests on the same Client.
type Client interface {
	// Exec runs a single statement. Settings apply to this statement only.
	Exec(ctx context.Context, stmt string, settings map[string]string) error
	Query(ctx context.Context, sql string) (Rows, error)
	// Insert writes rows into table, one value per column per row.
	Insert(ctx context.Context, table string, columns []string, rows ...[]any) error
	Ping(ctx context.Context) error
	Close() error
	Dialect() Dialect
}

var settingNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// sortedKeys returns settings keys in a stable order so that statements are
// issued identically across runs.
func sortedKeys(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func checkSettingNames(d Dialect, settings map[string]string) error {
	for k := range settings {
		if !settingNameRe.MatchString(k) {
			return &ClientError{Dialect: d, Op: "exec", Err: fmt.Errorf("%w: %q", ErrInvalidSetting, k)}
		}
	}

	return nil
}
