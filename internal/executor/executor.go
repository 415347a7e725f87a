package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aqasim81/chmigrate/internal/migration"
	"github.com/aqasim81/chmigrate/internal/parser"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusDivergent = "divergent"
	StatusPlanned   = "planned"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// Result reports what a run did. Applied is empty when there was nothing to
// do, which is a successful outcome.
type Result struct {
	Applied   []migration.Migration
	Skipped   []migration.Migration
	Divergent []migration.Migration
	// Pending holds the migrations a dry run would have applied.
	Pending []migration.Migration
}

// StatementRunner executes one statement with per-statement settings.
// database.Client satisfies it.
type StatementRunner interface {
	Exec(ctx context.Context, stmt string, settings map[string]string) error
}

// MigrationTracker abstracts ledger operations for testability.
type MigrationTracker interface {
	EnsureTable(ctx context.Context) error
	GetApplied(ctx context.Context) ([]tracker.AppliedMigration, error)
	RecordApplied(ctx context.Context, p tracker.RecordParams) error
}

// readFunc loads a migration's raw content.
type readFunc func(m *migration.Migration) ([]byte, error)

// Executor applies pending migrations one statement at a time.
type Executor struct {
	runner         StatementRunner
	tracker        MigrationTracker
	abortDivergent bool
	settings       map[string]string
	dryRun         bool
	onProgress     func(ProgressEvent)
	logger         *slog.Logger
	readSQL        readFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithAbortDivergent controls what happens when an applied migration's file
// has changed. true (the default) fails the run; false logs a warning and
// treats the migration as applied.
func WithAbortDivergent(b bool) Option {
	return func(e *Executor) { e.abortDivergent = b }
}

// WithSettings sets settings sent with every statement. A migration's own SET
// lines override them key by key.
func WithSettings(s map[string]string) Option {
	return func(e *Executor) { e.settings = s }
}

// WithDryRun enables dry-run mode where no SQL is executed.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor with the given statement runner, tracker, and options.
func New(runner StatementRunner, t MigrationTracker, opts ...Option) *Executor {
	e := &Executor{
		runner:         runner,
		tracker:        t,
		abortDivergent: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if e.readSQL == nil {
		e.readSQL = (*migration.Migration).Read
	}

	return e
}

// Apply makes sure the ledger table exists, loads the ledger and runs the
// catalog against it.
//
// Statements are dispatched one at a time. Cancelling ctx stops the run
// before the next statement, but a statement already sent to the database
// has taken effect and is not undone.
func (e *Executor) Apply(ctx context.Context, catalog []migration.Migration) (*Result, error) {
	if err := e.tracker.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := e.tracker.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, catalog, applied)
}

// Run evaluates every catalog entry, in order, against the ledger records in
// applied and executes the pending ones. The returned Result is non-nil
// whenever the catalog was valid, including on failure, and lists the
// migrations handled before the run stopped.
func (e *Executor) Run(
	ctx context.Context,
	catalog []migration.Migration,
	applied []tracker.AppliedMigration,
) (*Result, error) {
	if err := migration.ValidateOrder(catalog); err != nil {
		return nil, err
	}

	report := Inspect(catalog, applied)

	if len(report.Deleted) > 0 {
		d := report.Deleted[0]

		return nil, &DeletedMigrationError{Version: d.Version, MigrationName: d.MigrationName}
	}

	result := &Result{}

	for i := range report.Migrations {
		st := &report.Migrations[i]

		switch st.State {
		case StateApplied:
			e.logger.Debug("migration already applied", "version", st.Migration.Version, "file", st.Migration.Filename)
			result.Skipped = append(result.Skipped, st.Migration)
			e.fireProgress(ProgressEvent{Migration: &st.Migration, Status: StatusSkipped})

		case StateDivergent:
			if err := e.handleDivergent(st, result); err != nil {
				return result, err
			}

		case StatePending:
			if err := e.applyOne(ctx, &st.Migration, result); err != nil {
				return result, err
			}
		}
	}

	e.logger.Info("migration run finished",
		"applied", len(result.Applied),
		"skipped", len(result.Skipped),
		"divergent", len(result.Divergent),
		"dry_run", e.dryRun,
	)

	return result, nil
}

func (e *Executor) handleDivergent(st *MigrationState, result *Result) error {
	m := &st.Migration
	divErr := &DivergentMigrationError{
		Version:          m.Version,
		Filename:         m.Filename,
		RecordedChecksum: st.Record.Checksum,
		CurrentChecksum:  m.Checksum,
	}

	e.fireProgress(ProgressEvent{Migration: m, Status: StatusDivergent, Error: divErr})

	if e.abortDivergent {
		return divErr
	}

	e.logger.Warn("applied migration has changed, not re-running it",
		"version", m.Version,
		"file", m.Filename,
		"recorded_checksum", st.Record.Checksum,
		"current_checksum", m.Checksum,
	)

	result.Divergent = append(result.Divergent, *m)

	return nil
}

// applyOne reads, parses and executes one pending migration, then records it.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration, result *Result) error {
	content, err := e.readSQL(m)
	if err != nil {
		return err
	}

	parsed, err := parser.Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing migration %s: %w", m.Filename, err)
	}

	if e.dryRun {
		result.Pending = append(result.Pending, *m)
		e.fireProgress(ProgressEvent{Migration: m, Status: StatusPlanned})

		return nil
	}

	settings := MergeSettings(e.settings, parsed.Settings)

	e.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})
	e.logger.Info("applying migration", "version", m.Version, "file", m.Filename, "statements", len(parsed.Statements))

	start := time.Now()

	for i, stmt := range parsed.Statements {
		err := ctx.Err()
		if err == nil {
			e.logger.Debug("executing statement", "file", m.Filename, "index", i)
			err = e.runner.Exec(ctx, stmt, settings)
		}

		if err != nil {
			execErr := &StatementExecutionError{
				Migration:      *m,
				StatementIndex: i,
				Statement:      stmt,
				AppliedSoFar:   filenames(result.Applied),
				Err:            err,
			}

			e.fireProgress(ProgressEvent{
				Migration: m,
				Status:    StatusFailed,
				Duration:  time.Since(start),
				Error:     execErr,
			})

			return execErr
		}
	}

	if err := e.tracker.RecordApplied(ctx, tracker.RecordParams{
		Version:       m.Version,
		Checksum:      m.Checksum,
		MigrationName: m.Filename,
	}); err != nil {
		return &RecordError{Migration: *m, AppliedSoFar: filenames(result.Applied), Err: err}
	}

	duration := time.Since(start)
	result.Applied = append(result.Applied, *m)

	e.fireProgress(ProgressEvent{
		Migration: m,
		Status:    StatusCompleted,
		Duration:  duration,
	})

	return nil
}

// MergeSettings overlays file settings on global ones. File values win on
// key collisions. Neither input is modified.
func MergeSettings(global, file map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(file))

	for k, v := range global {
		merged[k] = v
	}

	for k, v := range file {
		merged[k] = v
	}

	return merged
}

func filenames(ms []migration.Migration) []string {
	names := make([]string, len(ms))
	for i := range ms {
		names[i] = ms[i].Filename
	}

	return names
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
