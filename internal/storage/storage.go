// Package storage provides the key-value file surfaces the activity
// database can be persisted to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNotExist is returned by Read when nothing is stored under the key.
	ErrNotExist = errors.New("storage: key does not exist")
	// ErrUnsupported is returned by Build for an unknown DSN scheme.
	ErrUnsupported = errors.New("storage: unsupported backend")
)

// Backend stores whole files by path.
type Backend interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Close() error
}

// Build picks a backend from a DSN:
//
//	""  or file:///dir or a bare path  files on disk (relative keys resolve under root or dir)
//	memory://                          in-memory files
//	sqlite:///path/to/activity.db      SQLite key-value table
//	postgres://...                     Postgres key-value table
func Build(dsn, root string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewOS(root), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "":
		return NewOS(dsn), nil
	case "file":
		if p := dsnPath(parsed); p != "" {
			return NewOS(p), nil
		}
		return NewOS(root), nil
	case "memory", "mem":
		return NewMemory(), nil
	case "sqlite":
		p := dsnPath(parsed)
		if p == "" {
			if p, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		return Open(p)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, parsed.Scheme)
	}
}

func dsnPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}
