package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationManager handles database schema migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// GetMigrations returns all available migrations in order
func (m *MigrationManager) GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Initial reporting schema",
			Up: `
				CREATE TABLE IF NOT EXISTS customers (
					uuid VARCHAR PRIMARY KEY,
					name VARCHAR NOT NULL,
					email VARCHAR,
					country VARCHAR,
					created_at TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS orders (
					id INTEGER PRIMARY KEY,
					customer_uuid VARCHAR,
					status VARCHAR NOT NULL,
					total DECIMAL(12,2),
					discount_rate DOUBLE,
					metadata VARCHAR,
					created_at TIMESTAMP,
					FOREIGN KEY (customer_uuid) REFERENCES customers(uuid)
				);

				CREATE TABLE IF NOT EXISTS order_items (
					id INTEGER PRIMARY KEY,
					order_id INTEGER,
					sku VARCHAR NOT NULL,
					quantity INTEGER,
					unit_price DECIMAL(12,2),
					FOREIGN KEY (order_id) REFERENCES orders(id)
				);

				CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_uuid);
				CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
				CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
				CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_order_items_order;
				DROP INDEX IF EXISTS idx_orders_created_at;
				DROP INDEX IF EXISTS idx_orders_status;
				DROP INDEX IF EXISTS idx_orders_customer;
				DROP TABLE IF EXISTS order_items;
				DROP TABLE IF EXISTS orders;
				DROP TABLE IF EXISTS customers;
			`,
		},

		// Future migrations can be added here
	}
}

// InitializeMigrationTable creates the migration tracking table
func (m *MigrationManager) InitializeMigrationTable(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := m.db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns a list of applied migration versions
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	query := "SELECT version FROM schema_migrations ORDER BY version"

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	defer rows.Close()

	var versions []int

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}

		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while reading migration versions: %w", err)
	}

	sort.Ints(versions)

	return versions, nil
}

// MigrateUp applies all pending migrations in version order
func (m *MigrationManager) MigrateUp(ctx context.Context) error {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}

	for _, migration := range m.GetMigrations() {
		if appliedSet[migration.Version] {
			continue
		}

		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("migration v%d (%s) failed: %w",
				migration.Version, migration.Description, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records it in a single transaction
func (m *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// CurrentVersion returns the highest applied migration version, or zero
// when the database is empty
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	if len(applied) == 0 {
		return 0, nil
	}

	return applied[len(applied)-1], nil
}
