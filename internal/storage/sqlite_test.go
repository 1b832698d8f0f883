package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion = %d, want 1", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"schema_versions", "files"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 1", v)
	}
}

func TestSQLiteReadWrite(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	ok, err := db.Exists(ctx, "data.json")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatal("expected data.json to be absent")
	}
	if _, err := db.Read(ctx, "data.json"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read missing: err = %v, want ErrNotExist", err)
	}

	if err := db.Write(ctx, "data.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := db.Write(ctx, "data.json", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := db.Read(ctx, "data.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("Read = %s, want {\"a\":2}", got)
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
