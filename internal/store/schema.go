package store

import (
	"context"
	"fmt"
)

// =============================================================================
// Schema Migration
// =============================================================================

// migrations are applied in order; every statement is idempotent.
//
// Parent references are plain nullable columns without FOREIGN KEY clauses:
// referential integrity and cascades are the engine's job, and DuckDB does
// not support ON DELETE CASCADE.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "entity_seq",
		sql:  `CREATE SEQUENCE IF NOT EXISTS entity_seq START 1`,
	},
	{
		name: "storages",
		sql: `CREATE TABLE IF NOT EXISTS storages (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			description VARCHAR NOT NULL DEFAULT '',
			parent_id VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	},
	{
		name: "spaces",
		sql: `CREATE TABLE IF NOT EXISTS spaces (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			size DOUBLE,
			description VARCHAR NOT NULL DEFAULT '',
			storage_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	},
	{
		name: "products",
		sql: `CREATE TABLE IF NOT EXISTS products (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			price DOUBLE,
			description VARCHAR NOT NULL DEFAULT '',
			space_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	},
	{
		name: "attributes",
		sql: `CREATE TABLE IF NOT EXISTS attributes (
			product_id VARCHAR NOT NULL,
			attr_key VARCHAR NOT NULL,
			value_type VARCHAR NOT NULL,
			value_text VARCHAR,
			value_number DOUBLE,
			value_bool BOOLEAN,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (product_id, attr_key)
		)`,
	},
	{
		name: "hierarchy_lock",
		sql: `CREATE TABLE IF NOT EXISTS hierarchy_lock (
			id INTEGER PRIMARY KEY,
			version BIGINT NOT NULL
		)`,
	},
	{
		name: "hierarchy_lock.row",
		sql:  `INSERT OR IGNORE INTO hierarchy_lock (id, version) VALUES (1, 0)`,
	},
}

// Migrate creates the schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

// IsEmpty reports whether no storage exists yet.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM storages`).Scan(&n); err != nil {
		return false, fmt.Errorf("count storages: %w", err)
	}
	return n == 0, nil
}
