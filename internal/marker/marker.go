// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

// Package marker persists the identifier of the last product row that made
// it into a completed CSV snapshot. The value on disk only ever grows, and
// it is advanced strictly after the snapshot file is in place, so a crash at
// any point leaves the agent re-exporting rows rather than skipping them.
package marker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrRegress is returned when a save would move the marker backwards.
var ErrRegress = fmt.Errorf("marker value regression")

// Store reads and writes the last-exported-id file.
type Store struct {
	path string
}

// NewStore returns a marker store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the marker file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the last exported identifier. A missing file means no prior
// export and yields 0. A file whose content does not parse as an integer is
// treated the same way.
func (s *Store) Load() (int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read marker file: %w", err)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		// Garbage content restarts the export from the beginning rather
		// than wedging the loop.
		return 0, nil
	}
	return id, nil
}

// Save overwrites the marker with id. The write goes through a temp file in
// the same directory followed by a rename, so a partially written marker is
// never durable. Saving a value below the current one fails with ErrRegress.
func (s *Store) Save(id int64) error {
	current, err := s.Load()
	if err != nil {
		return err
	}
	if id < current {
		return fmt.Errorf("%w: have %d, refusing %d", ErrRegress, current, id)
	}
	if id == current {
		return nil
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.FormatInt(id, 10) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write marker file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync marker file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close marker file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace marker file: %w", err)
	}
	return nil
}
