package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const migrationExt = ".sql"

// Discover scans dir for "{version}_{description}.sql" files and returns them
// sorted by version. Subdirectories and files without the .sql extension are
// ignored; a .sql file with a malformed version prefix or a version used twice
// fails the whole discovery.
func Discover(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: fmt.Errorf("%w: %w", ErrMigrationsDirNotFound, err)}
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), migrationExt) {
			continue
		}

		m, err := readMigration(dir, entry.Name())
		if err != nil {
			return nil, &DiscoveryError{Dir: dir, Files: []string{entry.Name()}, Err: err}
		}

		migrations = append(migrations, m)
	}

	if len(migrations) == 0 {
		return nil, &DiscoveryError{Dir: dir, Err: ErrNoMigrationsFound}
	}

	sorted := Sort(migrations)

	if err := ValidateOrder(sorted); err != nil {
		var de *DiscoveryError
		if errors.As(err, &de) {
			de.Dir = dir
		}

		return nil, err
	}

	return sorted, nil
}

// ParseFilename extracts the version and description from a migration filename.
func ParseFilename(filename string) (uint32, string, error) {
	base := strings.TrimSuffix(filename, migrationExt)

	prefix, name, found := strings.Cut(base, "_")
	if !found {
		return 0, "", fmt.Errorf("%w: missing \"_\" after the version", ErrInvalidFilename)
	}

	if prefix == "" || strings.TrimLeft(prefix, "0123456789") != "" {
		return 0, "", fmt.Errorf("%w: version %q is not a non-negative integer", ErrInvalidFilename, prefix)
	}

	v, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("%w: version %q out of range", ErrInvalidFilename, prefix)
	}

	return uint32(v), name, nil
}

// readMigration reads a migration file and builds a Migration with its checksum.
func readMigration(dir, filename string) (Migration, error) {
	version, name, err := ParseFilename(filename)
	if err != nil {
		return Migration{}, err
	}

	path := filepath.Join(dir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, fmt.Errorf("reading migration file %s: %w", path, err)
	}

	return Migration{
		Version:  version,
		Name:     name,
		Filename: filename,
		FilePath: path,
		Checksum: ComputeChecksum(data),
	}, nil
}
