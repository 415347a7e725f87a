package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/chmigrate/internal/parser"
)

var checkCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "check [migration-dir]",
	Short: "Validate migration files without a database",
	Long: `Discover and parse every migration file: filenames, duplicate versions,
unterminated comments and string literals. No database connection is made,
which makes check suitable for CI.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(checkCmd)
}

// errCheckFailed is returned when at least one migration file fails to parse.
var errCheckFailed = errors.New("migration check failed")

func runCheck(cmd *cobra.Command, args []string) error {
	dir := AppConfig.MigrationsDir
	if len(args) > 0 {
		dir = args[0]
	}

	catalog, err := discover(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0

	for i := range catalog {
		m := &catalog[i]

		content, err := m.Read()
		if err != nil {
			return err
		}

		parsed, err := parser.Parse(string(content))
		if err != nil {
			fmt.Fprintf(out, "  FAIL %s: %v\n", m.Filename, err)

			failed++

			continue
		}

		fmt.Fprintf(out, "  ok   %s (%d statement(s), %d setting(s))\n",
			m.Filename, len(parsed.Statements), len(parsed.Settings))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s) invalid", errCheckFailed, failed, len(catalog))
	}

	fmt.Fprintf(out, "\n%d migration(s) OK.\n", len(catalog))

	return nil
}
