package store

import (
	"context"
	"database/sql"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS boards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT 'My Board',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		UNIQUE (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		board_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (board_id) REFERENCES boards(id)
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		column_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (column_id) REFERENCES columns(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_boards_user_id ON boards(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_columns_board_id ON columns(board_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_column_id ON cards(column_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS boards (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL DEFAULT 'My Board',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		id BIGSERIAL PRIMARY KEY,
		board_id BIGINT NOT NULL REFERENCES boards(id),
		title TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id BIGSERIAL PRIMARY KEY,
		column_id BIGINT NOT NULL REFERENCES columns(id),
		title TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_boards_user_id ON boards(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_columns_board_id ON columns(board_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_column_id ON cards(column_id)`,
}

// EnsureSchema applies the idempotent DDL for the given driver in one
// transaction.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	var statements []string
	switch driver {
	case DriverSQLite:
		statements = sqliteSchema
	case DriverPostgres:
		statements = postgresSchema
	default:
		return fmt.Errorf("unsupported db driver: %s", driver)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
