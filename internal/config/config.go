package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/chmigrate/internal/tracker"
)

// Default values for configuration fields.
const (
	DefaultConfigFile     = "chmigrate.yml"
	DefaultMigrationsDir  = "./migrations"
	DefaultTable          = tracker.DefaultTable
	DefaultTableEngine    = tracker.DefaultEngine
	DefaultAbortDivergent = true
	DefaultTimeout        = 30 * time.Second
)

// EnvPrefix prefixes every environment variable read by MergeEnv.
const EnvPrefix = "CH_MIGRATIONS_"

// ErrIncompleteTLS indicates a client certificate without its key or the reverse.
var ErrIncompleteTLS = errors.New("tls cert and key must be set together")

// TLSFiles names the PEM files used for TLS connections.
type TLSFiles struct {
	CACert string `yaml:"ca_cert"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
}

// Enabled reports whether any TLS file is configured.
func (t TLSFiles) Enabled() bool {
	return t.CACert != "" || t.Cert != "" || t.Key != ""
}

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL    string
	MigrationsDir  string
	Table          string
	TableEngine    string
	AbortDivergent bool
	CreateDatabase bool
	DatabaseEngine string
	Timeout        time.Duration
	TLS            TLSFiles
	// Settings are sent with every migration statement.
	Settings map[string]string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL    string            `yaml:"database_url"`
	MigrationsDir  string            `yaml:"migrations_dir"`
	Table          string            `yaml:"table"`
	TableEngine    string            `yaml:"table_engine"`
	AbortDivergent *bool             `yaml:"abort_divergent"`
	CreateDatabase bool              `yaml:"create_database"`
	DatabaseEngine string            `yaml:"database_engine"`
	Timeout        string            `yaml:"timeout"`
	TLS            TLSFiles          `yaml:"tls"`
	Settings       map[string]string `yaml:"settings"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir:  DefaultMigrationsDir,
		Table:          DefaultTable,
		TableEngine:    DefaultTableEngine,
		AbortDivergent: DefaultAbortDivergent,
		Timeout:        DefaultTimeout,
		Settings:       map[string]string{},
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.Table != "" {
		cfg.Table = raw.Table
	}

	if raw.TableEngine != "" {
		cfg.TableEngine = raw.TableEngine
	}

	if raw.AbortDivergent != nil {
		cfg.AbortDivergent = *raw.AbortDivergent
	}

	cfg.CreateDatabase = raw.CreateDatabase
	cfg.DatabaseEngine = raw.DatabaseEngine
	cfg.TLS = raw.TLS

	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout %q: %w", raw.Timeout, err)
		}

		cfg.Timeout = d
	}

	for k, v := range raw.Settings {
		cfg.Settings[k] = v
	}

	return cfg, nil
}

// MergeEnv overrides config fields from CH_MIGRATIONS_* environment variables.
// A boolean or duration value that does not parse is an error.
func MergeEnv(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_URL":    &cfg.DatabaseURL,
		"DIR":             &cfg.MigrationsDir,
		"TABLE":           &cfg.Table,
		"TABLE_ENGINE":    &cfg.TableEngine,
		"DATABASE_ENGINE": &cfg.DatabaseEngine,
		"TLS_CA_CERT":     &cfg.TLS.CACert,
		"TLS_CERT":        &cfg.TLS.Cert,
		"TLS_KEY":         &cfg.TLS.Key,
	}

	for name, field := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*field = v
		}
	}

	bools := []struct {
		name  string
		field *bool
	}{
		{"ABORT_DIVERGENT", &cfg.AbortDivergent},
		{"CREATE_DATABASE", &cfg.CreateDatabase},
	}

	for _, b := range bools {
		v := os.Getenv(EnvPrefix + b.name)
		if v == "" {
			continue
		}

		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s %q: %w", EnvPrefix, b.name, v, err)
		}

		*b.field = parsed
	}

	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sTIMEOUT %q: %w", EnvPrefix, v, err)
		}

		cfg.Timeout = d
	}

	return nil
}

// ParseSetting splits a "key=value" pair as given on the command line.
func ParseSetting(s string) (string, string, error) {
	k, v, found := strings.Cut(s, "=")
	k = strings.TrimSpace(k)

	if !found || k == "" {
		return "", "", fmt.Errorf("invalid setting %q: want key=value", s)
	}

	return k, strings.TrimSpace(v), nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if err := tracker.ValidateTableName(c.Table); err != nil {
		return err
	}

	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return ErrIncompleteTLS
	}

	return nil
}
