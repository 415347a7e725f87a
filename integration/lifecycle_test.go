//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/chmigrate/internal/executor"
	"github.com/aqasim81/chmigrate/internal/migration"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

func TestApply_clickhouse_testdataMigrations(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupClickHouse(t))
	ctx := context.Background()
	tr := tracker.New(client)

	catalog, err := migration.Discover(filepath.Join("..", "testdata", "migrations"))
	require.NoError(t, err)

	var events []executor.ProgressEvent
	exec := executor.New(client, tr,
		executor.WithProgressCallback(func(e executor.ProgressEvent) {
			events = append(events, e)
		}),
	)

	result, err := exec.Apply(ctx, catalog)
	require.NoError(t, err)
	require.Len(t, result.Applied, 3)

	// Check progress events: 3 starting + 3 completed = 6.
	require.Len(t, events, 6)

	for i := 0; i < 3; i++ {
		assert.Equal(t, executor.StatusStarting, events[i*2].Status)
		assert.Equal(t, executor.StatusCompleted, events[i*2+1].Status)
	}

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 3)
	assert.Equal(t, uint32(10), applied[2].Version)
	assert.Equal(t, "010_events_by_day.sql", applied[2].MigrationName)
	assert.Equal(t, catalog[2].Checksum, applied[2].Checksum)

	assert.Equal(t, int64(1), QueryInt(t, client,
		"SELECT count() FROM system.columns WHERE table = 'events' AND name = 'country'"))
	assert.Equal(t, int64(1), QueryInt(t, client,
		"SELECT count() FROM system.tables WHERE name = 'events_by_day'"))

	// Second apply: everything skipped.
	result, err = executor.New(client, tr).Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Len(t, result.Skipped, 3)
}

func TestApply_clickhouse_fileSettingsScopedToMigration(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupClickHouse(t))
	ctx := context.Background()

	_, catalog := WriteMigrations(t, map[string]string{
		"1_events.sql": "CREATE TABLE e (id UInt32, v String) ENGINE = MergeTree ORDER BY id;\n" +
			"INSERT INTO e VALUES (1, 'a'), (2, 'b');",
		"2_sync.sql": "SET mutations_sync = 2;\nALTER TABLE e UPDATE v = 'z' WHERE id = 1;",
	})

	_, err := executor.New(client, tracker.New(client)).Apply(ctx, catalog)
	require.NoError(t, err)

	// mutations_sync = 2 makes the update visible as soon as the statement returns.
	assert.Equal(t, int64(1), QueryInt(t, client, "SELECT count() FROM e WHERE v = 'z'"))
}

func TestApply_clickhouse_divergentFile(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupClickHouse(t))
	ctx := context.Background()
	tr := tracker.New(client)

	dir, catalog := WriteMigrations(t, map[string]string{
		"1_a.sql": "CREATE TABLE a (id UInt32) ENGINE = Memory;",
	})

	_, err := executor.New(client, tr).Apply(ctx, catalog)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_a.sql"), []byte("CREATE TABLE a (id UInt64) ENGINE = Memory;"), 0o600))

	catalog, err = migration.Discover(dir)
	require.NoError(t, err)

	_, err = executor.New(client, tr).Apply(ctx, catalog)

	var divErr *executor.DivergentMigrationError
	require.ErrorAs(t, err, &divErr)
	assert.Equal(t, uint32(1), divErr.Version)

	result, err := executor.New(client, tr, executor.WithAbortDivergent(false)).Apply(ctx, catalog)
	require.NoError(t, err)
	require.Len(t, result.Divergent, 1)
}

func TestApply_postgres_partialFailure_earlierMigrationsTracked(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupPostgres(t))
	ctx := context.Background()
	tr := tracker.New(client)

	_, catalog := WriteMigrations(t, map[string]string{
		"1_users.sql": "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);",
		"2_bad.sql":   "CREATE TABLE posts (id SERIAL PRIMARY KEY);\nINSERT INTO missing VALUES (1);",
		"3_email.sql": "ALTER TABLE users ADD COLUMN email TEXT;",
	})

	result, err := executor.New(client, tr).Apply(ctx, catalog)

	var execErr *executor.StatementExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.StatementIndex)
	assert.Equal(t, []string{"1_users.sql"}, execErr.AppliedSoFar)
	require.NotNil(t, result)
	assert.Len(t, result.Applied, 1)

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, uint32(1), applied[0].Version)

	// The first statement of the failed migration is not rolled back.
	assert.Equal(t, int64(0), QueryInt(t, client, "SELECT count(*) FROM posts"))
}

func TestApply_postgres_dryRun_noChanges(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupPostgres(t))
	ctx := context.Background()
	tr := tracker.New(client)

	_, catalog := WriteMigrations(t, map[string]string{
		"1_users.sql": "CREATE TABLE users (id SERIAL PRIMARY KEY);",
	})

	result, err := executor.New(client, tr, executor.WithDryRun(true)).Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Len(t, result.Pending, 1)

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	assert.Equal(t, int64(0), QueryInt(t, client,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = 'users'"))
}

func TestApply_postgres_concurrentIndex_withoutSettings(t *testing.T) {
	t.Parallel()

	client := OpenClient(t, SetupPostgres(t))
	ctx := context.Background()

	_, catalog := WriteMigrations(t, map[string]string{
		"1_users.sql": "CREATE TABLE users (id SERIAL PRIMARY KEY, email TEXT);",
		"2_index.sql": "CREATE INDEX CONCURRENTLY idx_users_email ON users (email);",
	})

	result, err := executor.New(client, tracker.New(client)).Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 2)
}
