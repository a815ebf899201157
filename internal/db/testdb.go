package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB returns an in-memory database with the schema applied. It is
// closed when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()
	return newTestDB(t, ":memory:")
}

// NewTestFileDB is NewTestDB backed by a file in the test's temp dir, for
// tests that need more than one connection.
func NewTestFileDB(t testing.TB) *sql.DB {
	t.Helper()
	return newTestDB(t, filepath.Join(t.TempDir(), "boro.sqlite3"))
}

func newTestDB(t testing.TB, path string) *sql.DB {
	t.Helper()

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("open test db %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := EnsureSchema(conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}
