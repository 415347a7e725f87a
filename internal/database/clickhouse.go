package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const defaultDatabase = "default"

type clickHouseClient struct {
	conn driver.Conn
}

func openClickHouse(ctx context.Context, opts Options) (Client, error) {
	chOpts, err := clickhouse.ParseDSN(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	if opts.TLS != nil {
		chOpts.TLS = opts.TLS
	}

	if opts.Timeout > 0 {
		chOpts.DialTimeout = opts.Timeout
	}

	if opts.CreateDatabase && chOpts.Auth.Database != "" && chOpts.Auth.Database != defaultDatabase {
		if err := createClickHouseDatabase(ctx, *chOpts, opts.DatabaseEngine); err != nil {
			return nil, err
		}

		opts.Logger.Info("database ready", "database", chOpts.Auth.Database)
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close() //nolint:errcheck // already failing

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &clickHouseClient{conn: conn}, nil
}

// createClickHouseDatabase connects to the default database to create the
// target one, since connecting to a missing database fails.
func createClickHouseDatabase(ctx context.Context, chOpts clickhouse.Options, engine string) error {
	name := chOpts.Auth.Database
	chOpts.Auth.Database = defaultDatabase

	conn, err := clickhouse.Open(&chOpts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer conn.Close() //nolint:errcheck // bootstrap connection

	stmt := createDatabaseSQL(name, engine)
	if err := conn.Exec(ctx, stmt); err != nil {
		return &ClientError{Dialect: DialectClickHouse, Op: "create database", Err: err}
	}

	return nil
}

func createDatabaseSQL(name, engine string) string {
	stmt := "CREATE DATABASE IF NOT EXISTS " + quoteClickHouse(name)
	if engine != "" {
		stmt += " ENGINE = " + engine
	}

	return stmt
}

func quoteClickHouse(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "\\`") + "`"
}

func (c *clickHouseClient) Exec(ctx context.Context, stmt string, settings map[string]string) error {
	if err := checkSettingNames(DialectClickHouse, settings); err != nil {
		return err
	}

	if err := c.conn.Exec(withClickHouseSettings(ctx, settings), stmt); err != nil {
		return &ClientError{Dialect: DialectClickHouse, Op: "exec", Err: err}
	}

	return nil
}

// withClickHouseSettings attaches per-query settings to ctx. The driver sends
// them with the query, so they never leak into later statements.
func withClickHouseSettings(ctx context.Context, settings map[string]string) context.Context {
	if len(settings) == 0 {
		return ctx
	}

	s := make(clickhouse.Settings, len(settings))
	for k, v := range settings {
		s[k] = v
	}

	return clickhouse.Context(ctx, clickhouse.WithSettings(s))
}

func (c *clickHouseClient) Query(ctx context.Context, sql string) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, &ClientError{Dialect: DialectClickHouse, Op: "query", Err: err}
	}

	return rows, nil
}

func (c *clickHouseClient) Insert(ctx context.Context, table string, columns []string, rows ...[]any) error {
	query := fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(columns, ", "))

	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return &ClientError{Dialect: DialectClickHouse, Op: "insert", Err: err}
	}

	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			batch.Abort() //nolint:errcheck // append error is the one to report

			return &ClientError{Dialect: DialectClickHouse, Op: "insert", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return &ClientError{Dialect: DialectClickHouse, Op: "insert", Err: err}
	}

	return nil
}

func (c *clickHouseClient) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return &ClientError{Dialect: DialectClickHouse, Op: "ping", Err: err}
	}

	return nil
}

func (c *clickHouseClient) Close() error {
	return c.conn.Close()
}

func (c *clickHouseClient) Dialect() Dialect {
	return DialectClickHouse
}
