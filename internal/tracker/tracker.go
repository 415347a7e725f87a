package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aqasim81/chmigrate/internal/database"
)

// AppliedMigration represents a record in the migrations ledger. Records are
// written once and never updated.
type AppliedMigration struct {
	Version       uint32
	Checksum      string
	MigrationName string
	AppliedAt     time.Time
}

// RecordParams contains the fields needed to record a migration as applied.
type RecordParams struct {
	Version       uint32
	Checksum      string
	MigrationName string
}

// Tracker manages the migrations ledger table.
type Tracker struct {
	client database.Client
	table  string
	engine string
	logger *slog.Logger
	newUID func() uuid.UUID
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTable sets the ledger table name. Defaults to DefaultTable.
func WithTable(table string) Option {
	return func(t *Tracker) {
		t.table = table
	}
}

// WithEngine sets the ClickHouse engine clause used by EnsureTable.
func WithEngine(engine string) Option {
	return func(t *Tracker) {
		t.engine = engine
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// New creates a Tracker backed by the given client.
func New(client database.Client, opts ...Option) *Tracker {
	t := &Tracker{
		client: client,
		table:  DefaultTable,
		engine: DefaultEngine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newUID: uuid.New,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Table returns the ledger table name.
func (t *Tracker) Table() string {
	return t.table
}

// EnsureTable creates the ledger table if it does not exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	if err := ValidateTableName(t.table); err != nil {
		return err
	}

	if err := t.client.Exec(ctx, createTableSQL(t.client.Dialect(), t.table, t.engine), nil); err != nil {
		return fmt.Errorf("%w %s: %w", ErrTableCreation, t.table, err)
	}

	t.logger.Debug("migrations table ready", "table", t.table)

	return nil
}

// GetApplied returns all ledger records ordered by version.
func (t *Tracker) GetApplied(ctx context.Context) (applied []AppliedMigration, err error) {
	if err := ValidateTableName(t.table); err != nil {
		return nil, err
	}

	rows, err := t.client.Query(ctx, selectAppliedSQL(t.table))
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}

	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("reading applied migrations: %w", cerr)
		}
	}()

	for rows.Next() {
		var m AppliedMigration
		if scanErr := rows.Scan(&m.Version, &m.Checksum, &m.MigrationName, &m.AppliedAt); scanErr != nil {
			return nil, fmt.Errorf("scanning migration row: %w", scanErr)
		}

		applied = append(applied, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	return applied, nil
}

// RecordApplied appends a ledger record for a migration that has just run.
func (t *Tracker) RecordApplied(ctx context.Context, p RecordParams) error {
	if err := ValidateTableName(t.table); err != nil {
		return err
	}

	row := []any{t.newUID(), p.Version, p.Checksum, p.MigrationName}

	if err := t.client.Insert(ctx, t.table, insertColumns, row); err != nil {
		return fmt.Errorf("recording migration %d as applied: %w", p.Version, err)
	}

	t.logger.Debug("recorded migration", "version", p.Version, "name", p.MigrationName)

	return nil
}
