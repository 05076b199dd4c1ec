// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package exporter

import (
	"database/sql"
	"time"
)

// Product is one finished-product row plus its merged measurement results.
type Product struct {
	ID        int64
	CreatedAt time.Time
	Number    string
	Status    string // "OK" or "NOK", decoded from the raw status code
	Housing   string
	PCB       string
	Arm       string

	// Results holds per-action measurements keyed by action name.
	Results map[string]Measurement
}

// Measurement is one test-station result attached to a product.
type Measurement struct {
	Min   sql.NullFloat64
	Max   sql.NullFloat64
	Value sql.NullFloat64
}

// Action is one entry of the station action catalog. The catalog fixes the
// column order of the CSV output; MinMax actions additionally emit ".min"
// and ".max" companion columns.
type Action struct {
	ID     int64
	Name   string
	MinMax bool
}

// Snapshot describes a completed CSV file.
type Snapshot struct {
	Path     string
	RowCount int
	MaxID    int64
}
