// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

// Package poller drives the fetch-export-persist cycle on a fixed interval.
// Each cycle is independent: it opens its own database connection, writes at
// most one CSV snapshot, and advances the marker only after the snapshot is
// fully in place. A failed cycle changes nothing on disk.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fabtrak/trace-exporter/internal/config"
	"github.com/fabtrak/trace-exporter/internal/exporter"
	"github.com/fabtrak/trace-exporter/internal/marker"
)

// Source provides the per-cycle database reads. *exporter.Exporter is the
// production implementation; tests substitute their own.
type Source interface {
	Actions(ctx context.Context) ([]exporter.Action, error)
	Products(ctx context.Context, lastID int64) ([]exporter.Product, error)
	Close() error
}

// SourceFactory opens a fresh Source for one cycle. The connection is not
// held across the wait interval.
type SourceFactory func(ctx context.Context) (Source, error)

// Mirror pushes a finished snapshot off-site after the local commit.
type Mirror interface {
	MirrorSnapshot(ctx context.Context, path string) error
}

// Cycle is one fetch-export-persist unit of work.
type Cycle struct {
	cfg    *config.Config
	marker *marker.Store
	open   SourceFactory
	mirror Mirror // optional
	logger *zap.Logger
	now    func() time.Time
}

// NewCycle assembles a cycle from its collaborators. mirror may be nil.
func NewCycle(cfg *config.Config, markerStore *marker.Store, open SourceFactory, mirror Mirror, logger *zap.Logger) *Cycle {
	return &Cycle{
		cfg:    cfg,
		marker: markerStore,
		open:   open,
		mirror: mirror,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one cycle. It returns the snapshot written, or nil when no
// new rows were found. On error the marker file and output directory are
// untouched, with one exception: a marker write that fails after the
// snapshot rename leaves the file in place, and the rows are re-exported
// next cycle.
func (c *Cycle) Run(ctx context.Context) (*exporter.Snapshot, error) {
	lastID, err := c.marker.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load marker: %w", err)
	}

	src, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	actions, err := src.Actions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load action catalog: %w", err)
	}

	products, err := src.Products(ctx, lastID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	if len(products) == 0 {
		c.logger.Info("No new records", zap.Int64("last_id", lastID))
		return nil, nil
	}

	snapshot, err := exporter.WriteSnapshot(c.cfg.OutputDir, actions, products, c.now())
	if err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	// Marker update strictly after the snapshot rename. If this fails the
	// snapshot stays and the same rows come out again next cycle, which the
	// downstream app tolerates; a skipped row would not be.
	if err := c.marker.Save(snapshot.MaxID); err != nil {
		return snapshot, fmt.Errorf("snapshot written but marker update failed: %w", err)
	}

	c.logger.Info("Exported products",
		zap.Int("rows", snapshot.RowCount),
		zap.Int64("max_id", snapshot.MaxID),
		zap.String("file", snapshot.Path))

	if c.mirror != nil {
		if err := c.mirror.MirrorSnapshot(ctx, snapshot.Path); err != nil {
			// The local file and marker are already committed; mirroring is
			// best effort.
			c.logger.Warn("Failed to mirror snapshot",
				zap.String("file", snapshot.Path),
				zap.Error(err))
		}
	}

	return snapshot, nil
}
