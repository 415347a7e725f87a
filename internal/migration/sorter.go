package migration

import (
	"fmt"
	"sort"
)

// Sort returns a new slice of migrations sorted by numeric Version.
// The sort is stable to preserve insertion order for equal versions.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return sorted
}

// ValidateOrder checks that versions are strictly ascending. Equal neighbours
// are reported with both filenames.
func ValidateOrder(migrations []Migration) error {
	for i := 1; i < len(migrations); i++ {
		prev, cur := &migrations[i-1], &migrations[i]

		switch {
		case cur.Version == prev.Version:
			return &DiscoveryError{
				Files: []string{prev.Filename, cur.Filename},
				Err:   fmt.Errorf("%w %d", ErrDuplicateVersion, cur.Version),
			}
		case cur.Version < prev.Version:
			return &DiscoveryError{
				Files: []string{prev.Filename, cur.Filename},
				Err:   ErrNotSorted,
			}
		}
	}

	return nil
}
