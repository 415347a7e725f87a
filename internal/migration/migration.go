package migration

import (
	"fmt"
	"os"

	"github.com/go-faster/city"
)

// Migration represents a single versioned migration file discovered on disk.
type Migration struct {
	Version  uint32 // 7 for 007_add_index.sql
	Name     string // "add_index"
	Filename string // "007_add_index.sql", recorded in the ledger
	FilePath string // Path to the file
	Checksum string // CityHash128 of the raw file bytes
}

// Read returns the raw content of the migration file. The content must still
// match the checksum taken at discovery time.
func (m *Migration) Read() ([]byte, error) {
	data, err := os.ReadFile(m.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading migration file %s: %w", m.FilePath, err)
	}

	if ComputeChecksum(data) != m.Checksum {
		return nil, fmt.Errorf("%s: %w", m.Filename, ErrContentChanged)
	}

	return data, nil
}

// ComputeChecksum returns the 128-bit CityHash (ClickHouse variant) of content
// as 32 lowercase hex characters. It covers the exact bytes, so whitespace and
// comment edits are detected too.
func ComputeChecksum(content []byte) string {
	h := city.CH128(content)

	return fmt.Sprintf("%016x%016x", h.High, h.Low)
}
