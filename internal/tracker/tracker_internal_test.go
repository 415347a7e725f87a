package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/chmigrate/internal/database"
)

type insertCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeClient struct {
	dialect database.Dialect
	execs   []string
	inserts []insertCall
	err     error
}

func (f *fakeClient) Exec(_ context.Context, stmt string, _ map[string]string) error {
	f.execs = append(f.execs, stmt)

	return f.err
}

func (f *fakeClient) Query(context.Context, string) (database.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Insert(_ context.Context, table string, columns []string, rows ...[]any) error {
	f.inserts = append(f.inserts, insertCall{table: table, columns: columns, rows: rows})

	return f.err
}

func (f *fakeClient) Ping(context.Context) error { return nil }
func (f *fakeClient) Close() error { return nil }
func (f *fakeClient) Dialect() database.Dialect { return f.dialect }

func TestCreateTableSQL_clickHouse(t *testing.T) {
	t.Parallel()

	ddl := createTableSQL(database.DialectClickHouse, "_migrations", "ReplicatedMergeTree('/ch/{shard}/m', '{replica}')")

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS _migrations")
	assert.Contains(t, ddl, "uid            UUID DEFAULT generateUUIDv4()")
	assert.Contains(t, ddl, "version        UInt32")
	assert.Contains(t, ddl, "applied_at     DateTime DEFAULT now()")
	assert.Contains(t, ddl, "ENGINE = ReplicatedMergeTree('/ch/{shard}/m', '{replica}')")
	assert.Contains(t, ddl, "ORDER BY tuple(applied_at)")
}

func TestCreateTableSQL_otherDialects(t *testing.T) {
	t.Parallel()

	pg := createTableSQL(database.DialectPostgres, "m", DefaultEngine)
	assert.Contains(t, pg, "TIMESTAMPTZ")
	assert.NotContains(t, pg, "ENGINE")

	lite := createTableSQL(database.DialectSQLite, "m", DefaultEngine)
	assert.Contains(t, lite, "CURRENT_TIMESTAMP")
	assert.NotContains(t, lite, "ENGINE")
}

func TestEnsureTable_usesEngine(t *testing.T) {
	t.Parallel()

	client := &fakeClient{dialect: database.DialectClickHouse}
	tr := New(client, WithEngine("ReplacingMergeTree"))

	require.NoError(t, tr.EnsureTable(context.Background()))
	require.Len(t, client.execs, 1)
	assert.Contains(t, client.execs[0], "ENGINE = ReplacingMergeTree")
}

func TestEnsureTable_failure_wrapsTableCreation(t *testing.T) {
	t.Parallel()

	client := &fakeClient{dialect: database.DialectClickHouse, err: errors.New("readonly")}

	err := New(client).EnsureTable(context.Background())
	require.ErrorIs(t, err, ErrTableCreation)
	assert.Contains(t, err.Error(), "readonly")
}

func TestRecordApplied_insertsRow(t *testing.T) {
	t.Parallel()

	uid := uuid.MustParse("6f1c4c5e-8a8b-4f2b-9d3e-1d2c3b4a5f60")
	client := &fakeClient{dialect: database.DialectClickHouse}
	tr := New(client, WithTable("db.ledger"))
	tr.newUID = func() uuid.UUID { return uid }

	err := tr.RecordApplied(context.Background(), RecordParams{Version: 7, Checksum: "abc", MigrationName: "007_x.sql"})
	require.NoError(t, err)

	require.Len(t, client.inserts, 1)
	call := client.inserts[0]
	assert.Equal(t, "db.ledger", call.table)
	assert.Equal(t, []string{"uid", "version", "checksum", "migration_name"}, call.columns)
	assert.Equal(t, [][]any{{uid, uint32(7), "abc", "007_x.sql"}}, call.rows)
}
