// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/fabtrak/trace-exporter/internal/config"
)

// Exporter fetches new product rows and their measurement results from the
// source database. It holds the connection for a single cycle only.
type Exporter struct {
	db     *sql.DB
	config *config.Config
	logger *zap.Logger
}

// NewExporter wraps an open database handle for one export cycle.
func NewExporter(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// Close releases the database handle.
func (e *Exporter) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Actions loads the station action catalog, ordered the way the stations
// run them. The order fixes the measurement column order of the CSV output.
func (e *Exporter) Actions(ctx context.Context) ([]Action, error) {
	query := fmt.Sprintf("SELECT id, name, minmax FROM %s ORDER BY action_order",
		e.config.ActionsTable)

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("action catalog query failed: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var minmax sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Name, &minmax); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		a.MinMax = minmax.Valid && minmax.Int64 == 1
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("action row iteration error: %w", err)
	}

	return actions, nil
}

// Products fetches up to BatchSize product rows with id strictly greater
// than lastID, ascending by id, and merges each row's measurement results.
func (e *Exporter) Products(ctx context.Context, lastID int64) ([]Product, error) {
	query, args := e.productQuery(lastID)

	e.logger.Debug("Querying products",
		zap.Int64("last_id", lastID),
		zap.Int("batch_size", e.config.BatchSize),
		zap.String("query", query))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	defer rows.Close()

	type rawProduct struct {
		product   Product
		processID sql.NullInt64
	}

	var raw []rawProduct
	for rows.Next() {
		var r rawProduct
		var created sql.NullTime
		var status sql.NullInt64
		var housing, pcb, arm sql.NullString

		if err := rows.Scan(&r.product.ID, &created, &r.processID,
			&r.product.Number, &status, &housing, &pcb, &arm); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}

		if created.Valid {
			r.product.CreatedAt = created.Time
		}
		if status.Valid {
			r.product.Status = DecodeStatus(status.Int64)
		} else {
			// A row with no status code never passed its final check.
			r.product.Status = "NOK"
		}
		r.product.Housing = housing.String
		r.product.PCB = pcb.String
		r.product.Arm = arm.String

		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product row iteration error: %w", err)
	}

	products := make([]Product, 0, len(raw))
	for _, r := range raw {
		if r.processID.Valid {
			results, err := e.results(ctx, r.processID.Int64)
			if err != nil {
				return nil, err
			}
			r.product.Results = results
		}
		products = append(products, r.product)
	}

	return products, nil
}

// results fetches the measurement rows recorded for one product's process.
func (e *Exporter) results(ctx context.Context, processID int64) (map[string]Measurement, error) {
	var query string
	switch e.config.Driver {
	case config.DriverMySQL:
		query = fmt.Sprintf("SELECT action, `min`, `max`, `value` FROM %s WHERE process_id = ?",
			e.config.ResultsTable)
	default:
		query = fmt.Sprintf("SELECT action, [min], [max], [value] FROM %s WHERE process_id = @p1",
			e.config.ResultsTable)
	}

	rows, err := e.db.QueryContext(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("results query failed for process %d: %w", processID, err)
	}
	defer rows.Close()

	results := make(map[string]Measurement)
	for rows.Next() {
		var action string
		var m Measurement
		if err := rows.Scan(&action, &m.Min, &m.Max, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results[action] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result row iteration error: %w", err)
	}

	return results, nil
}

// productQuery builds the dialect-specific batch query. SQL Server caps the
// batch with TOP, MySQL with LIMIT, and the placeholder styles differ.
func (e *Exporter) productQuery(lastID int64) (string, []interface{}) {
	cols := "id, created_at, process_id, number, status, housing, pcb, arm"

	switch e.config.Driver {
	case config.DriverMySQL:
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id > ? ORDER BY id ASC LIMIT ?",
			cols, e.config.ProductTable)
		return query, []interface{}{lastID, e.config.BatchSize}
	default:
		query := fmt.Sprintf("SELECT TOP (@p1) %s FROM %s WHERE id > @p2 ORDER BY id ASC",
			cols, e.config.ProductTable)
		return query, []interface{}{e.config.BatchSize, lastID}
	}
}

// DecodeStatus maps the raw numeric station status to the OK/NOK flag the
// traceability app expects. The second decimal digit carries the pass/fail
// result; 3 means pass.
func DecodeStatus(status int64) string {
	s := strconv.FormatInt(status, 10)
	if len(s) >= 2 && s[1] == '3' {
		return "OK"
	}
	return "NOK"
}
