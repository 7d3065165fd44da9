package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hostellite/internal/logging"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const memoryPath = ":memory:"

// DB is the local sqlite ledger of payments whose booking confirmation failed.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// migrations are applied in order; the index+1 is the schema version stored
// in PRAGMA user_version. Append only.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS confirmation_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id TEXT NOT NULL,
            payment_intent_id TEXT NOT NULL UNIQUE,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE INDEX IF NOT EXISTS idx_confirmation_tasks_status ON confirmation_tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmation_tasks_next_retry ON confirmation_tasks(next_retry_at)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_confirmation_tasks_booking ON confirmation_tasks(booking_id)`,
	},
}

// NewDB opens the ledger at path, creating parent directories and bringing
// the schema up to date.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on"
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn += "&_journal_mode=WAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path, logger: logging.Component(logger, "database")}
	if err := db.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SchemaVersion is the number of migrations applied to the open database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v+1, err)
		}
		for _, q := range migrations[v] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("exec migration %d %s: %w", v+1, trimSQL(q), err)
			}
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v+1, err)
		}
	}

	db.logger.Info().Str("path", db.path).Int("from", current).Int("schema_version", len(migrations)).Msg("Ledger opened")
	return nil
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

// Path is the file the database was opened from, or ":memory:".
func (db *DB) Path() string {
	return db.path
}
