package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteTimeLayout matches the text SQLite's CURRENT_TIMESTAMP produces.
const sqliteTimeLayout = "2006-01-02 15:04:05"

type sqliteClient struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, opts Options) (Client, error) {
	dsn := sqliteDSN(opts.URL)
	if dsn == "" {
		return nil, fmt.Errorf("%w: missing SQLite path", ErrInvalidDatabaseURL)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// One connection: every :memory: connection is a separate database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &sqliteClient{db: db}, nil
}

// sqliteDSN turns sqlite://<path> into the driver's path form. file: URIs
// are passed through untouched.
func sqliteDSN(raw string) string {
	if strings.HasPrefix(strings.ToLower(raw), "file:") {
		return raw
	}

	_, path, _ := strings.Cut(raw, "://")

	return path
}

// Exec applies settings as PRAGMAs on the same connection right before stmt.
// PRAGMAs are connection scoped, so each one is put back to its previous
// value once stmt has run, whether or not it succeeded.
func (c *sqliteClient) Exec(ctx context.Context, stmt string, settings map[string]string) (err error) {
	if err := checkSettingNames(DialectSQLite, settings); err != nil {
		return err
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return &ClientError{Dialect: DialectSQLite, Op: "exec", Err: err}
	}
	defer conn.Close() //nolint:errcheck // returns the connection to the pool

	previous := make(map[string]string, len(settings))

	defer func() {
		if restoreErr := restorePragmas(context.WithoutCancel(ctx), conn, previous); restoreErr != nil && err == nil {
			err = &ClientError{Dialect: DialectSQLite, Op: "exec", Err: restoreErr}
		}
	}()

	for _, k := range sortedKeys(settings) {
		if v, ok, err := readPragma(ctx, conn, k); err != nil {
			return &ClientError{Dialect: DialectSQLite, Op: "exec", Err: fmt.Errorf("reading setting %s: %w", k, err)}
		} else if ok {
			previous[k] = v
		}

		if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", k, settings[k])); err != nil {
			return &ClientError{Dialect: DialectSQLite, Op: "exec", Err: fmt.Errorf("setting %s: %w", k, err)}
		}
	}

	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return &ClientError{Dialect: DialectSQLite, Op: "exec", Err: err}
	}

	return nil
}

// readPragma returns the current value of a PRAGMA. ok is false for PRAGMAs
// that report nothing, which cannot be restored.
func readPragma(ctx context.Context, conn *sql.Conn, name string) (string, bool, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA "+name)
	if err != nil {
		return "", false, err
	}
	defer rows.Close() //nolint:errcheck // read-only

	if !rows.Next() {
		return "", false, rows.Err()
	}

	var v sql.NullString
	if err := rows.Scan(&v); err != nil {
		return "", false, err
	}

	return v.String, v.Valid, rows.Err()
}

func restorePragmas(ctx context.Context, conn *sql.Conn, previous map[string]string) error {
	for _, k := range sortedKeys(previous) {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", k, previous[k])); err != nil {
			return fmt.Errorf("restoring setting %s: %w", k, err)
		}
	}

	return nil
}

func (c *sqliteClient) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ClientError{Dialect: DialectSQLite, Op: "query", Err: err}
	}

	return &sqliteRows{rows}, nil
}

// sqliteRows scans TEXT timestamps into *time.Time destinations, since
// SQLite has no native time type.
type sqliteRows struct {
	*sql.Rows
}

func (r *sqliteRows) Scan(dest ...any) error {
	var (
		texts   = make(map[int]*sql.NullString)
		scanned = make([]any, len(dest))
	)

	for i, d := range dest {
		if _, ok := d.(*time.Time); ok {
			s := new(sql.NullString)
			texts[i] = s
			scanned[i] = s

			continue
		}

		scanned[i] = d
	}

	if err := r.Rows.Scan(scanned...); err != nil {
		return err
	}

	for i, s := range texts {
		if !s.Valid {
			*dest[i].(*time.Time) = time.Time{}

			continue
		}

		ts, err := time.Parse(sqliteTimeLayout, s.String)
		if err != nil {
			return fmt.Errorf("column %d: parsing time %q: %w", i, s.String, err)
		}

		*dest[i].(*time.Time) = ts
	}

	return nil
}

func (c *sqliteClient) Insert(ctx context.Context, table string, columns []string, rows ...[]any) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &ClientError{Dialect: DialectSQLite, Op: "insert", Err: err}
	}

	defer tx.Rollback() //nolint:errcheck // rollback on committed tx returns ErrTxDone

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, row...); err != nil {
			return &ClientError{Dialect: DialectSQLite, Op: "insert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ClientError{Dialect: DialectSQLite, Op: "insert", Err: err}
	}

	return nil
}

func (c *sqliteClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return &ClientError{Dialect: DialectSQLite, Op: "ping", Err: err}
	}

	return nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) Dialect() Dialect {
	return DialectSQLite
}
