// Package database provides the pure-Go SQLite client and idempotent schema
// application used by the queue store and gallery (spec §6.6).
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed schema.sql
var schemaSQL string

// Config holds the on-disk SQLite connection settings.
type Config struct {
	// Path is the filesystem path to the database file, e.g.
	// "<storage root>/gallery.db" (spec §6.5).
	Path string

	MaxOpenConns int
	MaxIdleConns int
}

// DefaultConfig returns sane single-process pool settings; SQLite serializes
// writers regardless of pool size, but readers benefit from a small pool.
func DefaultConfig(path string) Config {
	return Config{Path: path, MaxOpenConns: 4, MaxIdleConns: 4}
}

// Client wraps the database/sql handle used across the store layer.
type Client struct {
	db *sql.DB
}

// DB returns the underlying connection pool for direct queries.
func (c *Client) DB() *sql.DB { return c.db }

// NewClient opens the SQLite file at cfg.Path, applies the idempotent
// schema, and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already-open handle (used by tests with an
// in-memory database).
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// HealthStatus reports connectivity and pool statistics.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    int64         `json:"responseTimeMs"`
	OpenConnections int           `json:"openConnections"`
	InUse           int           `json:"inUse"`
	Idle            int           `json:"idle"`
}

// Health checks connectivity and returns pool statistics.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start).Milliseconds()}, err
	}
	stats := db.Stats()
	return &HealthStatus{
		Status: "healthy", ResponseTime: time.Since(start).Milliseconds(),
		OpenConnections: stats.OpenConnections, InUse: stats.InUse, Idle: stats.Idle,
	}, nil
}
