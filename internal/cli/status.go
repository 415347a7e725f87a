package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/chmigrate/internal/executor"
)

var errUnknownFormat = errors.New("unknown output format (want text or json)")

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display every migration file with its state (applied, pending or
divergent) and list ledger entries whose file has been deleted.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "text", "output format (text, json)")
	rootCmd.AddCommand(statusCmd)
}

type statusEntry struct {
	Version   uint32     `json:"version"`
	Filename  string     `json:"filename"`
	State     string     `json:"state"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

type statusOutput struct {
	Migrations []statusEntry `json:"migrations"`
	Deleted    []statusEntry `json:"deleted"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
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

	if format == "json" {
		return writeStatusJSON(cmd.OutOrStdout(), report)
	}

	return writeStatusText(cmd.OutOrStdout(), report)
}

func buildStatus(report *executor.Report) statusOutput {
	out := statusOutput{
		Migrations: make([]statusEntry, 0, len(report.Migrations)),
		Deleted:    make([]statusEntry, 0, len(report.Deleted)),
	}

	for _, st := range report.Migrations {
		e := statusEntry{Version: st.Migration.Version, Filename: st.Migration.Filename, State: string(st.State)}
		if st.Record != nil {
			at := st.Record.AppliedAt
			e.AppliedAt = &at
		}

		out.Migrations = append(out.Migrations, e)
	}

	for _, d := range report.Deleted {
		at := d.AppliedAt
		out.Deleted = append(out.Deleted, statusEntry{
			Version:   d.Version,
			Filename:  d.MigrationName,
			State:     "deleted",
			AppliedAt: &at,
		})
	}

	return out
}

func writeStatusJSON(w io.Writer, report *executor.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(buildStatus(report))
}

func writeStatusText(w io.Writer, report *executor.Report) error {
	status := buildStatus(report)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "VERSION\tFILE\tSTATE\tAPPLIED AT")

	for _, e := range append(status.Migrations, status.Deleted...) {
		at := "-"
		if e.AppliedAt != nil {
			at = e.AppliedAt.UTC().Format(time.DateTime)
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Version, e.Filename, e.State, at)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	pending := len(report.Pending())
	fmt.Fprintf(w, "\n%d migration(s), %d pending, %d deleted.\n", len(status.Migrations), pending, len(status.Deleted))

	return nil
}
