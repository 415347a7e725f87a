package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Options configures Open.
type Options struct {
	URL     string
	TLS     *tls.Config
	Timeout time.Duration

	// CreateDatabase issues CREATE DATABASE IF NOT EXISTS for the database
	// named in URL before connecting to it. ClickHouse only.
	CreateDatabase bool
	DatabaseEngine string

	Logger *slog.Logger
}

// Open connects to the database named by opts.URL and verifies the
// connection with a ping. The URL scheme selects the client:
//
//	clickhouse://, tcp://, http://, https://  ClickHouse
//	postgres://, postgresql://                PostgreSQL
//	sqlite://<path>, file:<path>              SQLite
func Open(ctx context.Context, opts Options) (Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.URL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidDatabaseURL)
	}

	scheme, _, found := strings.Cut(opts.URL, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing scheme", ErrInvalidDatabaseURL)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	switch strings.ToLower(scheme) {
	case "clickhouse", "tcp", "http", "https":
		return openClickHouse(ctx, opts)
	case "postgres", "postgresql":
		return openPostgres(ctx, opts)
	case "sqlite", "file":
		return openSQLite(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}
