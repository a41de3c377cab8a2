// Package testutil provides throwaway databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"qrshare/internal/db"
)

// NewDB opens a migrated database in a fresh temp dir. It is closed when the
// test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	return NewDBWithOptions(t, func(*db.Options) {})
}

// NewDBWithOptions is NewDB with a hook to adjust the engine options.
func NewDBWithOptions(t testing.TB, adjust func(*db.Options)) *sql.DB {
	t.Helper()

	opts := db.DefaultOptions(filepath.Join(t.TempDir(), "test.db"))
	opts.MaxOpenConns = 8
	opts.BusyTimeout = 10 * time.Second
	adjust(&opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbc, err := db.Open(ctx, opts)
	if err != nil {
		t.Fatalf("db.Open() error = %+v", err)
	}
	t.Cleanup(func() { dbc.Close() })

	if err := db.Migrate(ctx, dbc); err != nil {
		t.Fatalf("db.Migrate() error = %+v", err)
	}
	return dbc
}

// AddUser inserts a user row directly.
func AddUser(t testing.TB, dbc *sql.DB, id int64, token, name string) {
	t.Helper()
	_, err := dbc.Exec(`INSERT INTO users(id, auth_token, display_name, created_at) VALUES(?,?,?,?)`,
		id, token, name, time.Now().Unix())
	if err != nil {
		t.Fatalf("insert user %d: %+v", id, err)
	}
}
