// Package storage implements the workflow and execution stores on
// PostgreSQL using Bun.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Config holds database connection settings.
type Config struct {
	URL             string
	MaxConnections  int
	MaxIdleTime     time.Duration
	MaxConnLifetime time.Duration
	Debug           bool
}

// Connect opens a Bun database handle and verifies the connection.
func Connect(cfg Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL)))
	if cfg.MaxConnections > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxConnections)
		sqldb.SetMaxIdleConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
	if cfg.MaxConnLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}
