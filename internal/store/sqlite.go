package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is
// accepted and pinned to a single connection so every query sees the same
// database.
func OpenSQLite(path string) (*sqliteBackend, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Name() string { return "sqlite" }

func (b *sqliteBackend) Close() error { return b.db.Close() }

func (b *sqliteBackend) Load(ctx context.Context, namespace string) (map[string][]byte, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM entries WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to load dashboard entries", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to scan dashboard entry", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to load dashboard entries", err)
	}
	return out, nil
}

func (b *sqliteBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO entries (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UnixMilli())
	if err != nil {
		return errs.NewDatabaseError("write", "failed to write dashboard entry", err)
	}
	return nil
}

func (b *sqliteBackend) Delete(ctx context.Context, namespace string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("delete", "failed to begin delete", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM entries WHERE namespace = ? AND key = ?`)
	if err != nil {
		return errs.NewDatabaseError("delete", "failed to prepare delete", err)
	}
	defer stmt.Close()
	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, namespace, key); err != nil {
			return errs.NewDatabaseError("delete", "failed to delete dashboard entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("delete", "failed to commit delete", err)
	}
	return nil
}

func (b *sqliteBackend) Replace(ctx context.Context, namespace string, entries map[string][]byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("replace", "failed to begin replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ?`, namespace); err != nil {
		return errs.NewDatabaseError("replace", "failed to clear namespace", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errs.NewDatabaseError("replace", "failed to prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for key, value := range entries {
		if _, err := stmt.ExecContext(ctx, namespace, key, value, now); err != nil {
			return errs.NewDatabaseError("replace", "failed to insert dashboard entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("replace", "failed to commit replace", err)
	}
	return nil
}
