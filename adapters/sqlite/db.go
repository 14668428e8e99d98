// Package sqlite stores actor storage and actor logs in a single SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pactor_kv (
	key      TEXT PRIMARY KEY,
	value    BLOB NOT NULL,
	revision INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pactor_streams (
	actor TEXT PRIMARY KEY,
	base  INTEGER NOT NULL DEFAULT 0,
	head  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pactor_log (
	actor    TEXT NOT NULL,
	idx      INTEGER NOT NULL,
	entry_id TEXT NOT NULL,
	sender   TEXT NOT NULL,
	kind     TEXT NOT NULL,
	data     BLOB NOT NULL,
	callback INTEGER NOT NULL,
	PRIMARY KEY (actor, idx)
);

-- outlives trimmed log rows so late duplicate appends are still detected
CREATE TABLE IF NOT EXISTS pactor_entry_ids (
	entry_id TEXT PRIMARY KEY,
	actor    TEXT NOT NULL,
	idx      INTEGER NOT NULL
);
`

type Options struct {
	Logger *slog.Logger
}

// DB implements kv.Store, kv.Batcher and journal.Log on one SQLite file.
type DB struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the database at path and ensures its schema.
func Open(path string, opts Options) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; transactions never wait on each other
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	opts.Logger.Debug("sqlite opened", slog.String("path", path))
	return &DB{db: sqlDB, log: opts.Logger}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
