package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool sizing for the sync workload: change-feed scans and push upserts are
// short-lived, so a modest pool with recycled connections is enough.
const (
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 5 * time.Minute
	dbPingTimeout     = 5 * time.Second
)

// NewDB opens a MySQL connection pool for the vault schema. The DSN must
// carry parseTime=true so DATETIME(6) columns scan into time.Time at full
// microsecond precision; without it every change-feed timestamp comes back
// as []byte.
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		slog.Warn("database unreachable at startup, continuing", "error", err)
	}

	return db, nil
}
