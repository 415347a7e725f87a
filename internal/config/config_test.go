package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/chmigrate/internal/config"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

func TestNew_returnsDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.New()

	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
	assert.Equal(t, "_migrations", cfg.Table)
	assert.Equal(t, "MergeTree", cfg.TableEngine)
	assert.True(t, cfg.AbortDivergent)
	assert.False(t, cfg.CreateDatabase)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Empty(t, cfg.Settings)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		content      string
		allowMissing bool
		writeFile    bool
		wantErr      bool
		errContains  string
		check        func(t *testing.T, cfg *config.Config)
	}{
		{
			name:      "valid file parses all fields",
			writeFile: true,
			content: `database_url: "clickhouse://default:@localhost:9000/analytics"
migrations_dir: "./db/migrations"
table: "schema_history"
table_engine: "ReplicatedMergeTree('/clickhouse/{shard}/schema_history', '{replica}')"
abort_divergent: false
create_database: true
database_engine: "Atomic"
timeout: "1m"
tls:
  ca_cert: "/etc/ssl/ca.pem"
  cert: "/etc/ssl/client.pem"
  key: "/etc/ssl/client.key"
settings:
  mutations_sync: "2"
  insert_quorum: auto
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "clickhouse://default:@localhost:9000/analytics", cfg.DatabaseURL)
				assert.Equal(t, "./db/migrations", cfg.MigrationsDir)
				assert.Equal(t, "schema_history", cfg.Table)
				assert.Equal(t, "ReplicatedMergeTree('/clickhouse/{shard}/schema_history', '{replica}')", cfg.TableEngine)
				assert.False(t, cfg.AbortDivergent)
				assert.True(t, cfg.CreateDatabase)
				assert.Equal(t, "Atomic", cfg.DatabaseEngine)
				assert.Equal(t, time.Minute, cfg.Timeout)
				assert.Equal(t, config.TLSFiles{CACert: "/etc/ssl/ca.pem", Cert: "/etc/ssl/client.pem", Key: "/etc/ssl/client.key"}, cfg.TLS)
				assert.Equal(t, map[string]string{"mutations_sync": "2", "insert_quorum": "auto"}, cfg.Settings)
			},
		},
		{
			name:      "partial file applies defaults",
			writeFile: true,
			content:   `database_url: "postgres://localhost/mydb"`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "postgres://localhost/mydb", cfg.DatabaseURL)
				assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
				assert.Equal(t, config.DefaultTable, cfg.Table)
				assert.Equal(t, config.DefaultTableEngine, cfg.TableEngine)
				assert.True(t, cfg.AbortDivergent, "unset abort_divergent keeps the default")
				assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
			},
		},
		{
			name:      "empty file returns defaults",
			writeFile: true,
			content:   "",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
				assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
			},
		},
		{
			name:         "missing file with allowMissing returns defaults",
			writeFile:    false,
			allowMissing: true,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
				assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
			},
		},
		{
			name:         "missing file without allowMissing returns error",
			writeFile:    false,
			allowMissing: false,
			wantErr:      true,
			errContains:  "reading config file",
		},
		{
			name:        "invalid YAML returns error",
			writeFile:   true,
			content:     "{{{invalid yaml",
			wantErr:     true,
			errContains: "parsing config file",
		},
		{
			name:        "invalid timeout duration returns error",
			writeFile:   true,
			content:     `timeout: "not-a-duration"`,
			wantErr:     true,
			errContains: "parsing timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, config.DefaultConfigFile)

			if tt.writeFile {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			cfg, err := config.Load(path, tt.allowMissing)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestMergeEnv_overridesFields(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "overrides database URL",
			env:  map[string]string{"CH_MIGRATIONS_DATABASE_URL": "clickhouse://env-host:9000/db"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "clickhouse://env-host:9000/db", cfg.DatabaseURL)
			},
		},
		{
			name: "overrides migrations dir",
			env:  map[string]string{"CH_MIGRATIONS_DIR": "/custom/path"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "/custom/path", cfg.MigrationsDir)
			},
		},
		{
			name: "overrides table and engine",
			env: map[string]string{
				"CH_MIGRATIONS_TABLE":        "ledger",
				"CH_MIGRATIONS_TABLE_ENGINE": "ReplacingMergeTree",
			},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "ledger", cfg.Table)
				assert.Equal(t, "ReplacingMergeTree", cfg.TableEngine)
			},
		},
		{
			name: "overrides booleans",
			env: map[string]string{
				"CH_MIGRATIONS_ABORT_DIVERGENT": "false",
				"CH_MIGRATIONS_CREATE_DATABASE": "1",
			},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.False(t, cfg.AbortDivergent)
				assert.True(t, cfg.CreateDatabase)
			},
		},
		{
			name: "overrides timeout and tls",
			env: map[string]string{
				"CH_MIGRATIONS_TIMEOUT":     "2m",
				"CH_MIGRATIONS_TLS_CA_CERT": "/ca.pem",
			},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, 2*time.Minute, cfg.Timeout)
				assert.Equal(t, "/ca.pem", cfg.TLS.CACert)
			},
		},
		{
			name: "unset env vars preserve original",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultMigrationsDir, cfg.MigrationsDir)
				assert.Equal(t, config.DefaultTable, cfg.Table)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := config.New()
			require.NoError(t, config.MergeEnv(cfg))

			tt.check(t, cfg)
		})
	}
}

func TestMergeEnv_invalidValues_returnError(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantMsg string
	}{
		{name: "bad boolean", env: "CH_MIGRATIONS_ABORT_DIVERGENT", value: "maybe", wantMsg: "CH_MIGRATIONS_ABORT_DIVERGENT"},
		{name: "bad create database", env: "CH_MIGRATIONS_CREATE_DATABASE", value: "yes please", wantMsg: "CH_MIGRATIONS_CREATE_DATABASE"},
		{name: "bad timeout", env: "CH_MIGRATIONS_TIMEOUT", value: "not-valid", wantMsg: "CH_MIGRATIONS_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			cfg := config.New()
			err := config.MergeEnv(cfg)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), tt.value)
			assert.True(t, cfg.AbortDivergent, "field left unchanged")
			assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
		})
	}
}

func TestParseSetting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantKey string
		wantVal string
		wantErr bool
	}{
		{in: "max_threads=4", wantKey: "max_threads", wantVal: "4"},
		{in: " a = b=c ", wantKey: "a", wantVal: "b=c"},
		{in: "empty=", wantKey: "empty", wantVal: ""},
		{in: "novalue", wantErr: true},
		{in: "=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			k, v, err := config.ParseSetting(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, k)
			assert.Equal(t, tt.wantVal, v)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.Table = "bad name"
	require.ErrorIs(t, cfg.Validate(), tracker.ErrInvalidTableName)

	cfg = config.New()
	cfg.TLS.Cert = "/client.pem"
	require.ErrorIs(t, cfg.Validate(), config.ErrIncompleteTLS)
}
