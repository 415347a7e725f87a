package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxConns = 5

type postgresClient struct {
	pool *pgxpool.Pool
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, sets a conservative max connection limit,
// and pings the database to verify connectivity. A non-nil tlsConfig replaces
// whatever sslmode the URL asked for.
func NewPool(ctx context.Context, databaseURL string, tlsConfig *tls.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	if tlsConfig != nil {
		poolCfg.ConnConfig.TLSConfig = tlsConfig
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

func openPostgres(ctx context.Context, opts Options) (Client, error) {
	pool, err := NewPool(ctx, opts.URL, opts.TLS)
	if err != nil {
		return nil, err
	}

	return &postgresClient{pool: pool}, nil
}

// ExecInTransaction runs fn inside a database transaction.
// On success the transaction is committed; on error it is rolled back.
func ExecInTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Exec runs stmt directly on the pool when there are no settings, so
// statements like CREATE INDEX CONCURRENTLY keep working. With settings, the
// statement runs in a transaction after set_config(..., true) scopes each
// setting to that transaction.
func (c *postgresClient) Exec(ctx context.Context, stmt string, settings map[string]string) error {
	if err := checkSettingNames(DialectPostgres, settings); err != nil {
		return err
	}

	if len(settings) == 0 {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return &ClientError{Dialect: DialectPostgres, Op: "exec", Err: err}
		}

		return nil
	}

	err := ExecInTransaction(ctx, c.pool, func(tx pgx.Tx) error {
		for _, k := range sortedKeys(settings) {
			if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", k, settings[k]); err != nil {
				return fmt.Errorf("setting %s: %w", k, err)
			}
		}

		_, err := tx.Exec(ctx, stmt)

		return err
	})
	if err != nil {
		return &ClientError{Dialect: DialectPostgres, Op: "exec", Err: err}
	}

	return nil
}

func (c *postgresClient) Query(ctx context.Context, sql string) (Rows, error) {
	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, &ClientError{Dialect: DialectPostgres, Op: "query", Err: err}
	}

	return postgresRows{rows}, nil
}

// postgresRows reports the deferred query error from Close, since pgx.Rows
// closes without one.
type postgresRows struct {
	pgx.Rows
}

func (r postgresRows) Close() error {
	r.Rows.Close()

	return r.Rows.Err()
}

func (c *postgresClient) Insert(ctx context.Context, table string, columns []string, rows ...[]any) error {
	_, err := c.pool.CopyFrom(ctx, pgx.Identifier(strings.Split(table, ".")), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return &ClientError{Dialect: DialectPostgres, Op: "insert", Err: err}
	}

	return nil
}

func (c *postgresClient) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return &ClientError{Dialect: DialectPostgres, Op: "ping", Err: err}
	}

	return nil
}

func (c *postgresClient) Close() error {
	c.pool.Close()

	return nil
}

func (c *postgresClient) Dialect() Dialect {
	return DialectPostgres
}
