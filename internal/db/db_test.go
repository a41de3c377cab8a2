package db_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"qrshare/internal/db"
	"qrshare/internal/testutil"
)

func TestDSN(t *testing.T) {
	dsn := db.DefaultOptions("/tmp/x.db").DSN()

	for _, want := range []string{
		"busy_timeout%2830000%29",
		"journal_mode%28WAL%29",
		"synchronous%28NORMAL%29",
		"wal_autocheckpoint%281000%29",
		"_txlock=immediate",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
	if !strings.HasPrefix(dsn, "/tmp/x.db?") {
		t.Errorf("DSN %q should start with the path", dsn)
	}
	if strings.Index(dsn, "busy_timeout") > strings.Index(dsn, "journal_mode") {
		t.Errorf("busy_timeout must be applied before journal_mode: %q", dsn)
	}
}

func TestReadSettings(t *testing.T) {
	dbc := testutil.NewDB(t)

	s, err := db.ReadSettings(context.Background(), dbc)
	if err != nil {
		t.Fatalf("ReadSettings() error = %+v", err)
	}
	if s.JournalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", s.JournalMode)
	}
	if s.Synchronous != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", s.Synchronous)
	}
	if s.BusyTimeoutMillis != 10000 {
		t.Errorf("busy_timeout = %d, want 10000", s.BusyTimeoutMillis)
	}
	if s.WALAutoCheckpoint != 1000 {
		t.Errorf("wal_autocheckpoint = %d, want 1000", s.WALAutoCheckpoint)
	}
	if !s.ForeignKeys {
		t.Error("foreign_keys should be on")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbc := testutil.NewDB(t)
	if err := db.Migrate(context.Background(), dbc); err != nil {
		t.Fatalf("second Migrate() error = %+v", err)
	}
}

func TestBusyWriterIsClassified(t *testing.T) {
	dbc := testutil.NewDBWithOptions(t, func(o *db.Options) {
		o.BusyTimeout = 100 * time.Millisecond
	})
	testutil.AddUser(t, dbc, 1, "tok", "one")

	ctx := context.Background()
	tx, err := dbc.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %+v", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE users SET display_name = 'held' WHERE id = 1`); err != nil {
		t.Fatalf("update in tx: %+v", err)
	}

	start := time.Now()
	_, err = dbc.ExecContext(ctx, `UPDATE users SET display_name = 'blocked' WHERE id = 1`)
	if err == nil {
		t.Fatal("expected a busy error while another writer holds the lock")
	}
	if !errors.Is(db.Classify(err), db.ErrBusy) {
		t.Errorf("Classify(%v) is not ErrBusy", err)
	}
	if waited := time.Since(start); waited < 80*time.Millisecond {
		t.Errorf("writer failed after %v, expected it to wait for the busy timeout", waited)
	}
}

func TestReadersDoNotBlockOnWriter(t *testing.T) {
	dbc := testutil.NewDBWithOptions(t, func(o *db.Options) {
		o.BusyTimeout = 100 * time.Millisecond
	})
	testutil.AddUser(t, dbc, 1, "tok", "before")

	ctx := context.Background()
	tx, err := dbc.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %+v", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE users SET display_name = 'after' WHERE id = 1`); err != nil {
		t.Fatalf("update in tx: %+v", err)
	}

	var name string
	if err := dbc.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = 1`).Scan(&name); err != nil {
		t.Fatalf("read during write: %+v", err)
	}
	if name != "before" {
		t.Errorf("reader saw %q, want the committed value %q", name, "before")
	}
}

func TestClassify(t *testing.T) {
	if db.Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	other := errors.New("boom")
	if got := db.Classify(other); got != other {
		t.Errorf("Classify(other) = %v, want it unchanged", got)
	}
	if db.IsForeignKey(other) {
		t.Error("IsForeignKey(other) should be false")
	}
}
