package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/chmigrate/internal/database"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

func newSQLiteTracker(t *testing.T, opts ...tracker.Option) *tracker.Tracker {
	t.Helper()

	client, err := database.Open(context.Background(), database.Options{URL: "sqlite://:memory:"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return tracker.New(client, opts...)
}

func TestNew_defaults(t *testing.T) {
	t.Parallel()

	// nil client is accepted at construction time; errors surface on use.
	tr := tracker.New(nil)
	require.NotNil(t, tr)
	assert.Equal(t, tracker.DefaultTable, tr.Table())
}

func TestTracker_roundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := newSQLiteTracker(t)

	require.NoError(t, tr.EnsureTable(ctx))
	require.NoError(t, tr.EnsureTable(ctx), "EnsureTable is idempotent")

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	require.NoError(t, tr.RecordApplied(ctx, tracker.RecordParams{Version: 10, Checksum: "bbb", MigrationName: "010_b.sql"}))
	require.NoError(t, tr.RecordApplied(ctx, tracker.RecordParams{Version: 2, Checksum: "aaa", MigrationName: "002_a.sql"}))

	applied, err = tr.GetApplied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)

	assert.Equal(t, uint32(2), applied[0].Version, "ordered by version")
	assert.Equal(t, "aaa", applied[0].Checksum)
	assert.Equal(t, "002_a.sql", applied[0].MigrationName)
	assert.WithinDuration(t, time.Now().UTC(), applied[0].AppliedAt, time.Minute)
	assert.Equal(t, uint32(10), applied[1].Version)
}

func TestTracker_customTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := newSQLiteTracker(t, tracker.WithTable("schema_history"))

	require.NoError(t, tr.EnsureTable(ctx))
	require.NoError(t, tr.RecordApplied(ctx, tracker.RecordParams{Version: 1, Checksum: "c", MigrationName: "1_a.sql"}))

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 1)
}

func TestTracker_missingTable(t *testing.T) {
	t.Parallel()

	_, err := newSQLiteTracker(t).GetApplied(context.Background())

	var ce *database.ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "query", ce.Op)
}

func TestTracker_rejectsUnsafeTableName(t *testing.T) {
	t.Parallel()

	tr := newSQLiteTracker(t, tracker.WithTable("m; DROP TABLE users"))

	require.ErrorIs(t, tr.EnsureTable(context.Background()), tracker.ErrInvalidTableName)

	_, err := tr.GetApplied(context.Background())
	require.ErrorIs(t, err, tracker.ErrInvalidTableName)
}

func TestValidateTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		valid bool
	}{
		{name: "_migrations", valid: true},
		{name: "analytics.schema_migrations", valid: true},
		{name: "T1", valid: true},
		{name: "", valid: false},
		{name: "1abc", valid: false},
		{name: "a.b.c", valid: false},
		{name: "a-b", valid: false},
		{name: "a b", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tracker.ValidateTableName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tracker.ErrInvalidTableName)
			}
		})
	}
}
