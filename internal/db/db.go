// Package db owns the single SQLite handle shared by every store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrBusy reports that a write could not take the database lock within the
// configured busy timeout. Callers may retry.
var ErrBusy = errors.New("database is busy")

// Options configures the storage engine.
type Options struct {
	Path           string
	MaxOpenConns   int
	BusyTimeout    time.Duration
	WALCheckpoint  int // pages between automatic checkpoints
	RelaxedSync    bool
	ImmediateLocks bool
}

// DefaultOptions mirrors the production tuning: WAL, NORMAL sync, 30s busy
// wait, checkpoint every 1000 pages.
func DefaultOptions(path string) Options {
	return Options{
		Path:           path,
		MaxOpenConns:   20,
		BusyTimeout:    30 * time.Second,
		WALCheckpoint:  1000,
		RelaxedSync:    true,
		ImmediateLocks: true,
	}
}

// DSN renders the modernc.org/sqlite connection string. Pragmas are part of
// the DSN so every pooled connection gets them, not just the first one.
func (o Options) DSN() string {
	q := url.Values{}
	// busy_timeout goes first so the journal_mode switch can wait on a
	// concurrent opener instead of failing.
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	if o.RelaxedSync {
		q.Add("_pragma", "synchronous(NORMAL)")
	} else {
		q.Add("_pragma", "synchronous(FULL)")
	}
	q.Add("_pragma", "wal_autocheckpoint("+strconv.Itoa(o.WALCheckpoint)+")")
	q.Add("_pragma", "foreign_keys(1)")
	if o.ImmediateLocks {
		q.Set("_txlock", "immediate")
	}
	return o.Path + "?" + q.Encode()
}

// Open opens the database and verifies the connection.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Path, err)
	}
	return db, nil
}

// Settings are the engine-level values actually in effect on a connection.
type Settings struct {
	JournalMode       string
	Synchronous       int
	BusyTimeoutMillis int
	WALAutoCheckpoint int
	ForeignKeys       bool
}

// ReadSettings queries the pragmas on one pooled connection.
func ReadSettings(ctx context.Context, db *sql.DB) (Settings, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return Settings{}, err
	}
	defer conn.Close()

	var s Settings
	var fk int
	queries := []struct {
		q    string
		dest any
	}{
		{`PRAGMA journal_mode`, &s.JournalMode},
		{`PRAGMA synchronous`, &s.Synchronous},
		{`PRAGMA busy_timeout`, &s.BusyTimeoutMillis},
		{`PRAGMA wal_autocheckpoint`, &s.WALAutoCheckpoint},
		{`PRAGMA foreign_keys`, &fk},
	}
	for _, p := range queries {
		if err := conn.QueryRowContext(ctx, p.q).Scan(p.dest); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", p.q, err)
		}
	}
	s.ForeignKeys = fk == 1
	return s, nil
}

// Classify maps driver lock errors to ErrBusy and leaves everything else
// untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
	}
	return err
}

// IsForeignKey reports whether err is a foreign key violation.
func IsForeignKey(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}
