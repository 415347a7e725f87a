//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/chmigrate/internal/database"
	"github.com/aqasim81/chmigrate/internal/migration"
)

const (
	clickhouseImage = "clickhouse/clickhouse-server:24.8-alpine"
	postgresImage   = "postgres:16-alpine"
	testDB          = "migrate_test"
	testUser        = "migrate"
	testPassword    = "migrate"
)

// SetupClickHouse starts a ClickHouse container and returns its DSN.
// The container is terminated when the test completes.
func SetupClickHouse(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := tcclickhouse.Run(ctx, clickhouseImage,
		tcclickhouse.WithUsername("default"),
		tcclickhouse.WithPassword(""),
		testcontainers.WithEnv(map[string]string{"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1"}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	return dsn
}

// SetupPostgres starts a PostgreSQL 16 container and returns its DSN.
// The container is terminated when the test completes.
func SetupPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// OpenClient opens a database client for url, closed on cleanup.
func OpenClient(t *testing.T, url string) database.Client {
	t.Helper()

	client, err := database.Open(context.Background(), database.Options{URL: url, Timeout: 30 * time.Second})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// WriteMigrations writes files into a fresh directory and discovers them.
func WriteMigrations(t *testing.T, files map[string]string) (string, []migration.Migration) {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	catalog, err := migration.Discover(dir)
	require.NoError(t, err)

	return dir, catalog
}

// QueryInt returns the single integer produced by query.
func QueryInt(t *testing.T, client database.Client, query string) int64 {
	t.Helper()

	rows, err := client.Query(context.Background(), query)
	require.NoError(t, err)

	defer rows.Close() //nolint:errcheck // test helper

	require.True(t, rows.Next(), "query returned no rows: %s", query)

	var n int64

	switch client.Dialect() {
	case database.DialectClickHouse:
		var u uint64
		require.NoError(t, rows.Scan(&u))

		n = int64(u) //nolint:gosec // test counts are small
	default:
		require.NoError(t, rows.Scan(&n))
	}

	return n
}
