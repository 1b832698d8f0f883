package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/lib/pq"
)

const postgresTableName = "vaultactivity_files"

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Postgres keeps files as rows of a Postgres table. The connection is opened
// and the table created on first use.
type Postgres struct {
	dsn    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgres returns a backend for dsn without connecting.
func NewPostgres(dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	return &Postgres{dsn: dsn, openDB: sql.Open}, nil
}

func (p *Postgres) ensureReady(ctx context.Context) error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = fmt.Errorf("open postgres: %w", err)
			return
		}
		_, err = db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS `+postgresTableName+` (
				path       TEXT PRIMARY KEY,
				content    BYTEA NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)
		if err != nil {
			db.Close()
			p.initErr = fmt.Errorf("create %s: %w", postgresTableName, err)
			return
		}
		p.db = db
	})
	return p.initErr
}

func (p *Postgres) Exists(ctx context.Context, path string) (bool, error) {
	if err := p.ensureReady(ctx); err != nil {
		return false, err
	}
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+postgresTableName+` WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check file: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Read(ctx context.Context, path string) ([]byte, error) {
	if err := p.ensureReady(ctx); err != nil {
		return nil, err
	}
	var content []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT content FROM `+postgresTableName+` WHERE path = $1`, path).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (p *Postgres) Write(ctx context.Context, path string, data []byte) error {
	if err := p.ensureReady(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO `+postgresTableName+` (path, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (path)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`, path, data)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
