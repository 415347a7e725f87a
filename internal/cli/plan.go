package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aqasim81/chmigrate/internal/executor"
	"github.com/aqasim81/chmigrate/internal/migration"
	"github.com/aqasim81/chmigrate/internal/parser"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show execution plan for pending migrations",
	Long: `Display the migrations migrate would apply, in execution order, with
each file's statements and the settings they will run with. Nothing is
executed.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	planCmd.Flags().Bool("statements", false, "print every statement, not just counts")
	planCmd.Flags().StringArray("setting", nil, "setting sent with every statement, as key=value (repeatable)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	showStatements, _ := cmd.Flags().GetBool("statements")

	settings, err := globalSettings(cmd, cfg)
	if err != nil {
		return err
	}

	catalog, err := discover(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	client, err := connectDB(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // best-effort close on return

	t := newTracker(client, cfg.Table, cfg.TableEngine)

	if err := t.EnsureTable(ctx); err != nil {
		return err
	}

	applied, err := t.GetApplied(ctx)
	if err != nil {
		return err
	}

	report := executor.Inspect(catalog, applied)

	if len(report.Deleted) > 0 {
		d := report.Deleted[0]

		return &executor.DeletedMigrationError{Version: d.Version, MigrationName: d.MigrationName}
	}

	return printPlan(cmd.OutOrStdout(), report.Pending(), settings, showStatements)
}

func printPlan(out io.Writer, pending []migration.Migration, global map[string]string, showStatements bool) error {
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")

		return nil
	}

	for i := range pending {
		m := &pending[i]

		content, err := m.Read()
		if err != nil {
			return err
		}

		parsed, err := parser.Parse(string(content))
		if err != nil {
			return fmt.Errorf("parsing migration %s: %w", m.Filename, err)
		}

		fmt.Fprintf(out, "%d. %s (%d statement(s))\n", i+1, m.Filename, len(parsed.Statements))

		if settings := executor.MergeSettings(global, parsed.Settings); len(settings) > 0 {
			fmt.Fprintf(out, "   settings: %s\n", formatSettings(settings))
		}

		if showStatements {
			for j, stmt := range parsed.Statements {
				fmt.Fprintf(out, "   [%d] %s\n", j+1, stmt)
			}
		}
	}

	fmt.Fprintf(out, "\n%d migration(s) pending.\n", len(pending))

	return nil
}

func formatSettings(settings map[string]string) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + settings[k]
	}

	return strings.Join(pairs, ", ")
}
