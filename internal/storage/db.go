// Package storage owns the DuckDB connection used to execute compiled
// report queries, plus the schema migrations and demo seed data.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/kyleking/report-engine/internal/config"
)

// DB wraps a pooled DuckDB connection
type DB struct {
	db   *sql.DB
	path string
}

// NewDB opens the database at the configured path with connection
// pooling and verifies the connection
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(parseDurationOr(cfg.ConnMaxLifetime, 30*time.Minute))
	db.SetConnMaxIdleTime(parseDurationOr(cfg.ConnMaxIdleTime, 5*time.Minute))

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db, path: cfg.Path}, nil
}

// Initialize applies any pending schema migrations
func (d *DB) Initialize(ctx context.Context) error {
	return NewMigrationManager(d.db).MigrateUp(ctx)
}

// Conn exposes the underlying pool for transaction control
func (d *DB) Conn() *sql.DB {
	return d.db
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Close closes the connection pool
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}

	return d.db.Close()
}

// QueryRows runs one parameterized query inside a read transaction and
// returns the column names plus every row with values in column order.
// Driver byte slices are normalized to strings so downstream formatting
// sees comparable types.
func (d *DB) QueryRows(ctx context.Context, query string, args ...interface{}) ([]string, [][]interface{}, error) {
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}

	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var results [][]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}

		results = append(results, values)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed while reading rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	return columns, results, nil
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
