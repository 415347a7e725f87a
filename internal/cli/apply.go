package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/chmigrate/internal/config"
	"github.com/aqasim81/chmigrate/internal/database"
	"github.com/aqasim81/chmigrate/internal/executor"
	"github.com/aqasim81/chmigrate/internal/migration"
	"github.com/aqasim81/chmigrate/internal/tracker"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, CH_MIGRATIONS_DATABASE_URL, or database_url in config)",
)

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Aliases: []string{"apply", "up"},
	Short:   "Apply pending migrations",
	Long: `Apply pending migrations in version order, one statement at a time.

Migrations already in the ledger are skipped. A migration whose file changed
after it was applied stops the run unless --abort-divergent=false is given, in
which case it is reported and left alone. If a statement fails the run stops
there; statements that already ran are not rolled back, so fix the file to be
safe to re-run and run migrate again.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	migrateCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	migrateCmd.Flags().Bool("abort-divergent", config.DefaultAbortDivergent, "fail when an applied migration has changed")
	migrateCmd.Flags().StringArray("setting", nil, "setting sent with every statement, as key=value (repeatable)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	abortDivergent := cfg.AbortDivergent
	if cmd.Flags().Changed("abort-divergent") {
		abortDivergent, _ = cmd.Flags().GetBool("abort-divergent")
	}

	settings, err := globalSettings(cmd, cfg)
	if err != nil {
		return err
	}

	catalog, err := discover(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	client, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // best-effort close on return

	return executeMigrations(ctx, cmd.OutOrStdout(), client, catalog, migrateOpts{
		table:          cfg.Table,
		engine:         cfg.TableEngine,
		abortDivergent: abortDivergent,
		settings:       settings,
		dryRun:         dryRun,
	})
}

type migrateOpts struct {
	table          string
	engine         string
	abortDivergent bool
	settings       map[string]string
	dryRun         bool
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// globalSettings merges config settings with --setting flags; flags win.
func globalSettings(cmd *cobra.Command, cfg *config.Config) (map[string]string, error) {
	settings := make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		settings[k] = v
	}

	if cmd.Flags().Lookup("setting") == nil {
		return settings, nil
	}

	pairs, _ := cmd.Flags().GetStringArray("setting")
	for _, p := range pairs {
		k, v, err := config.ParseSetting(p)
		if err != nil {
			return nil, err
		}

		settings[k] = v
	}

	return settings, nil
}

func discover(dir string) ([]migration.Migration, error) {
	catalog, err := migration.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	return catalog, nil
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (database.Client, error) {
	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}

	client, err := database.Open(ctx, database.Options{
		URL:            cfg.DatabaseURL,
		TLS:            tlsConfig,
		Timeout:        cfg.Timeout,
		CreateDatabase: cfg.CreateDatabase,
		DatabaseEngine: cfg.DatabaseEngine,
		Logger:         appLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return client, nil
}

func newTracker(client database.Client, table, engine string) *tracker.Tracker {
	return tracker.New(client,
		tracker.WithTable(table),
		tracker.WithEngine(engine),
		tracker.WithLogger(appLogger),
	)
}

func executeMigrations(
	ctx context.Context,
	out io.Writer,
	client database.Client,
	catalog []migration.Migration,
	opts migrateOpts,
) error {
	t := newTracker(client, opts.table, opts.engine)

	exec := executor.New(client, t,
		executor.WithAbortDivergent(opts.abortDivergent),
		executor.WithSettings(opts.settings),
		executor.WithDryRun(opts.dryRun),
		executor.WithLogger(appLogger),
		executor.WithProgressCallback(func(event executor.ProgressEvent) {
			switch event.Status {
			case executor.StatusStarting:
				fmt.Fprintf(out, "  Applying %s ... ", event.Migration.Filename)
			case executor.StatusCompleted:
				fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
			case executor.StatusFailed:
				fmt.Fprintf(out, "FAILED\n")
				fmt.Fprintf(out, "    Error: %v\n", event.Error)
			case executor.StatusDivergent:
				fmt.Fprintf(out, "  Changed since applied: %s\n", event.Migration.Filename)
			case executor.StatusPlanned:
				fmt.Fprintf(out, "  Would apply %s\n", event.Migration.Filename)
			}
		}),
	)

	if opts.dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	result, err := exec.Apply(ctx, catalog)
	if err != nil {
		return err
	}

	switch {
	case opts.dryRun:
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied, %d already applied.\n",
			len(result.Pending), len(result.Skipped)+len(result.Divergent))
	case len(result.Applied) == 0:
		fmt.Fprintf(out, "\nNothing to do: %d already applied.\n", len(result.Skipped)+len(result.Divergent))
	default:
		fmt.Fprintf(out, "\nMigrate complete: %d applied, %d skipped.\n",
			len(result.Applied), len(result.Skipped)+len(result.Divergent))
	}

	return nil
}
