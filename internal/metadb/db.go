// Package metadb хранит метаданные писем в SQLite для статистики,
// потоков и триажа без обращения к векторной базе.
package metadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ErrNotFound - запрошенной записи нет в базе
var ErrNotFound = errors.New("not found")

// DB - база метаданных писем
type DB struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// Open открывает (и при необходимости создаёт) базу по пути path
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite: один писатель
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("metadata db ready", "path", path)
	return &DB{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Close закрывает соединение
func (d *DB) Close() error {
	return d.db.Close()
}

type migration struct {
	version int
	up      string
}

var migrations = []migration{
	{
		version: 1,
		up: `
CREATE TABLE IF NOT EXISTS emails (
    message_id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL,
    date TEXT NOT NULL,
    date_timestamp INTEGER NOT NULL,
    from_email TEXT NOT NULL,
    from_domain TEXT NOT NULL,
    to_emails TEXT,
    subject TEXT,
    snippet TEXT,
    label_ids TEXT,
    is_unread INTEGER DEFAULT 0,
    is_starred INTEGER DEFAULT 0,
    has_attachments INTEGER DEFAULT 0,
    is_from_me INTEGER DEFAULT 0,
    indexed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_date ON emails(date_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_thread ON emails(thread_id);
CREATE INDEX IF NOT EXISTS idx_domain ON emails(from_domain);
CREATE INDEX IF NOT EXISTS idx_unread ON emails(is_unread);
`,
	},
}

// migrate применяет недостающие миграции по таблице schema_version
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		log.Debug("applied migration", "version", m.version)
	}
	return nil
}
