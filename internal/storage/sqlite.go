package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps files as rows of a single table in a SQLite database.
type SQLite struct {
	*sql.DB
	Path string
}

// DefaultDBPath returns the default database path: ~/.vaultactivity/activity.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".vaultactivity", "activity.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*SQLite, error) {
	return open(":memory:")
}

func open(path string) (*SQLite, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &SQLite{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *SQLite) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (db *SQLite) Exists(ctx context.Context, path string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE path = ?`, path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check file: %w", err)
	}
	return count > 0, nil
}

func (db *SQLite) Read(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	err := db.QueryRowContext(ctx, `SELECT content FROM files WHERE path = ?`, path).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (db *SQLite) Write(ctx context.Context, path string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO files (path, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`, path, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
