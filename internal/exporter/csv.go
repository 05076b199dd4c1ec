// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package exporter

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Base column names of the snapshot, ahead of the per-action measurement
// columns. The spaced names are the contract with the traceability app.
var baseColumns = []string{"id", "created_at", "number", "status", "housing no", "pcb no", "arm no"}

// Columns returns the full CSV header for the given action catalog. A
// MinMax action contributes "<name> .min", "<name>", "<name> .max"; any
// other action contributes just its name.
func Columns(actions []Action) []string {
	cols := make([]string, 0, len(baseColumns)+3*len(actions))
	cols = append(cols, baseColumns...)
	for _, a := range actions {
		if a.MinMax {
			cols = append(cols, a.Name+" .min", a.Name, a.Name+" .max")
		} else {
			cols = append(cols, a.Name)
		}
	}
	return cols
}

// WriteSnapshot serializes products into a new timestamp-named CSV file in
// dir. The file is written to a temp name and renamed into place only after
// a full flush and sync, so an interrupted cycle never leaves a partial
// snapshot behind. Products must already be sorted ascending by id.
func WriteSnapshot(dir string, actions []Action, products []Product, now time.Time) (*Snapshot, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("no products to write")
	}

	filename := fmt.Sprintf("products_%s.csv", now.Format("20060102T150405"))
	finalPath := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	writer := csv.NewWriter(tmp)

	if err := writer.Write(Columns(actions)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range products {
		if err := writer.Write(productRecord(p, actions)); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to finalize snapshot file: %w", err)
	}

	return &Snapshot{
		Path:     finalPath,
		RowCount: len(products),
		MaxID:    products[len(products)-1].ID,
	}, nil
}

// productRecord flattens one product into CSV fields matching Columns.
func productRecord(p Product, actions []Action) []string {
	record := make([]string, 0, len(baseColumns)+3*len(actions))
	record = append(record,
		strconv.FormatInt(p.ID, 10),
		formatTimestamp(p.CreatedAt),
		p.Number,
		p.Status,
		p.Housing,
		p.PCB,
		p.Arm,
	)

	for _, a := range actions {
		m, ok := p.Results[a.Name]
		if a.MinMax {
			if ok {
				record = append(record, formatFloat(m.Min), formatFloat(m.Value), formatFloat(m.Max))
			} else {
				record = append(record, "", "", "")
			}
		} else {
			if ok {
				record = append(record, formatFloat(m.Value))
			} else {
				record = append(record, "")
			}
		}
	}

	return record
}

// formatTimestamp formats a timestamp for CSV.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatFloat formats a nullable measurement value for CSV.
func formatFloat(f sql.NullFloat64) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}
