// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/fabtrak/trace-exporter/internal/config"
)

const (
	dbPoolSize = 2
	dbConnLife = 30 * time.Minute
	dbTimeout  = 5
)

var ErrBadHostname = fmt.Errorf("hostname is required")

// SQLClient wraps a database/sql handle for the configured driver. The agent
// opens one per cycle and closes it before the wait, so the pool is kept
// deliberately small.
type SQLClient struct {
	db      *sql.DB
	timeout time.Duration
	driver  string
}

// Driver returns the driver name the client was opened with.
func (sc *SQLClient) Driver() string {
	if sc == nil {
		return ""
	}
	return sc.driver
}

func (sc *SQLClient) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), sc.timeout)
}

func (sc *SQLClient) Close() error {
	if sc.db != nil {
		err := sc.db.Close()
		sc.db = nil
		return err
	}
	return nil
}

func (sc *SQLClient) GetDB() *sql.DB {
	return sc.db
}

func (sc *SQLClient) Ping() error {
	ctx, cancel := sc.context()
	defer cancel()
	return sc.db.PingContext(ctx)
}

// NewSQLClient opens and pings a connection using the configured driver and
// DSN. timeout is the per-operation timeout in seconds.
func NewSQLClient(cfg *config.Config, timeout int) (*SQLClient, error) {
	if cfg.DBHost == "" {
		return nil, ErrBadHostname
	}

	switch cfg.Driver {
	case config.DriverSQLServer, config.DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (must be %s or %s)",
			cfg.Driver, config.DriverSQLServer, config.DriverMySQL)
	}

	db, err := sql.Open(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(dbConnLife)
	db.SetMaxOpenConns(dbPoolSize)
	db.SetMaxIdleConns(dbPoolSize)

	if timeout < 1 {
		timeout = dbTimeout
	}

	sc := &SQLClient{
		db:      db,
		timeout: time.Duration(timeout) * time.Second,
		driver:  cfg.Driver,
	}

	if err = sc.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sc, nil
}
