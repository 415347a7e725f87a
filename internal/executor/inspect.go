package executor

import (
	"github.com/aqasim81/chmigrate/internal/migration"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

// State is where a catalog migration stands relative to the ledger.
type State string

const (
	StatePending   State = "pending"
	StateApplied   State = "applied"
	StateDivergent State = "divergent"
)

// MigrationState pairs a catalog migration with its ledger record, if any.
type MigrationState struct {
	Migration migration.Migration
	State     State
	Record    *tracker.AppliedMigration
}

// Report compares a catalog with the ledger without touching the database.
type Report struct {
	Migrations []MigrationState
	// Deleted lists ledger records whose version has no file in the catalog.
	Deleted []tracker.AppliedMigration
}

// Inspect classifies every catalog migration as pending, applied or divergent
// and collects ledger records with no matching file. When the ledger holds
// more than one record for a version, the first one wins.
func Inspect(catalog []migration.Migration, applied []tracker.AppliedMigration) *Report {
	records := make(map[uint32]*tracker.AppliedMigration, len(applied))

	for i := range applied {
		if _, seen := records[applied[i].Version]; !seen {
			records[applied[i].Version] = &applied[i]
		}
	}

	onDisk := make(map[uint32]struct{}, len(catalog))
	report := &Report{Migrations: make([]MigrationState, 0, len(catalog))}

	for _, m := range catalog {
		onDisk[m.Version] = struct{}{}

		st := MigrationState{Migration: m, State: StatePending}

		if rec, ok := records[m.Version]; ok {
			st.Record = rec
			st.State = StateApplied

			if rec.Checksum != m.Checksum {
				st.State = StateDivergent
			}
		}

		report.Migrations = append(report.Migrations, st)
	}

	for _, a := range applied {
		if _, ok := onDisk[a.Version]; !ok {
			report.Deleted = append(report.Deleted, a)
		}
	}

	return report
}

// Pending returns the migrations that have no ledger record.
func (r *Report) Pending() []migration.Migration {
	var pending []migration.Migration

	for _, st := range r.Migrations {
		if st.State == StatePending {
			pending = append(pending, st.Migration)
		}
	}

	return pending
}
