package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Timestamps are stored as unix nanoseconds so both dialects round-trip them
// without driver-specific time parsing.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		sku VARCHAR(128) NOT NULL,
		barcode VARCHAR(128) NULL,
		name VARCHAR(255) NOT NULL,
		unit VARCHAR(64) NOT NULL,
		threshold INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		image_ref VARCHAR(1024) NOT NULL DEFAULT '',
		version INT NOT NULL DEFAULT 0,
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_items_sku (sku),
		UNIQUE KEY uq_items_barcode (barcode)
	)`,
	`CREATE TABLE IF NOT EXISTS item_locations (
		item_id VARCHAR(64) NOT NULL,
		location_id VARCHAR(64) NOT NULL,
		position INT NOT NULL,
		quantity INT NOT NULL,
		PRIMARY KEY (item_id, location_id),
		KEY idx_item_locations_location (location_id)
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address VARCHAR(1024) NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_locations_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		kind VARCHAR(16) NOT NULL,
		item_id VARCHAR(64) NOT NULL,
		from_location_id VARCHAR(64) NULL,
		to_location_id VARCHAR(64) NULL,
		quantity INT NOT NULL,
		note TEXT NOT NULL,
		photo_ref VARCHAR(1024) NOT NULL DEFAULT '',
		vendor_name VARCHAR(255) NULL,
		serial_number VARCHAR(255) NULL,
		reason VARCHAR(32) NULL,
		repair_ticket_id VARCHAR(64) NULL,
		status VARCHAR(16) NOT NULL,
		approved_by VARCHAR(64) NULL,
		approved_at BIGINT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_stock_transactions_id (id),
		KEY idx_stock_transactions_item (item_id),
		KEY idx_stock_transactions_kind_status (kind, status)
	)`,
	`CREATE TABLE IF NOT EXISTS repair_tickets (
		seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		item_id VARCHAR(64) NOT NULL,
		location_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		vendor_name VARCHAR(255) NOT NULL,
		serial_number VARCHAR(255) NOT NULL DEFAULT '',
		note TEXT NOT NULL,
		photo_ref VARCHAR(1024) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		sent_at BIGINT NOT NULL,
		returned_at BIGINT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_repair_tickets_id (id),
		KEY idx_repair_tickets_status (status)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT NOT NULL PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		barcode TEXT NULL UNIQUE,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		status TEXT NOT NULL,
		image_ref TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS item_locations (
		item_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (item_id, location_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_item_locations_location ON item_locations (location_id)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		item_id TEXT NOT NULL,
		from_location_id TEXT NULL,
		to_location_id TEXT NULL,
		quantity INTEGER NOT NULL,
		note TEXT NOT NULL,
		photo_ref TEXT NOT NULL DEFAULT '',
		vendor_name TEXT NULL,
		serial_number TEXT NULL,
		reason TEXT NULL,
		repair_ticket_id TEXT NULL,
		status TEXT NOT NULL,
		approved_by TEXT NULL,
		approved_at INTEGER NULL,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_item ON stock_transactions (item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_kind_status ON stock_transactions (kind, status)`,
	`CREATE TABLE IF NOT EXISTS repair_tickets (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		item_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		vendor_name TEXT NOT NULL,
		serial_number TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL,
		photo_ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		returned_at INTEGER NULL,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_repair_tickets_status ON repair_tickets (status)`,
}

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	var stmts []string
	switch dialect {
	case DialectMySQL:
		stmts = mysqlSchema
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unknown dialect %q", dialect)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
