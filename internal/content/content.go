// Package content stores the single shareable text each user publishes.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qrshare/internal/db"
	"qrshare/internal/models"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrForbidden is returned when a caller writes someone else's content.
	ErrForbidden = errors.New("cannot modify content of another user")
	ErrTooLarge  = errors.New("content too large")
)

// DefaultMaxBytes bounds a single text payload.
const DefaultMaxBytes = 64 << 10

type Store struct {
	db       *sql.DB
	now      func() time.Time
	maxBytes int
}

type Option func(*Store)

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxBytes sets the largest accepted text. Zero or less disables the check.
func WithMaxBytes(n int) Option {
	return func(s *Store) { s.maxBytes = n }
}

func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now, maxBytes: DefaultMaxBytes}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the current content of ownerID. An existing owner without
// content yields a record with Empty set and a nil error.
func (s *Store) Get(ctx context.Context, ownerID int64) (models.Content, error) {
	var (
		text      sql.NullString
		updatedAt sql.NullInt64
	)
	// One statement so the user check and the content row come from the same
	// snapshot.
	err := s.db.QueryRowContext(ctx, `SELECT c.text, c.updated_at
		FROM users u LEFT JOIN content c ON c.owner_id = u.id
		WHERE u.id = ?`, ownerID).Scan(&text, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Content{}, ErrNotFound
	} else if err != nil {
		return models.Content{}, fmt.Errorf("get content %d: %w", ownerID, db.Classify(err))
	}

	if !text.Valid {
		return models.Content{OwnerID: ownerID, Empty: true}, nil
	}
	return models.Content{OwnerID: ownerID, Text: text.String, UpdatedAt: updatedAt.Int64}, nil
}

// Set replaces the content of ownerID on behalf of callerID and returns the
// row as committed. updated_at never moves backwards for an owner, even if
// the wall clock does.
func (s *Store) Set(ctx context.Context, callerID, ownerID int64, text string) (models.Content, error) {
	if callerID != ownerID {
		return models.Content{}, ErrForbidden
	}
	if s.maxBytes > 0 && len(text) > s.maxBytes {
		return models.Content{}, ErrTooLarge
	}

	c := models.Content{OwnerID: ownerID}
	err := s.db.QueryRowContext(ctx, `INSERT INTO content(owner_id, text, updated_at) VALUES(?,?,?)
		ON CONFLICT(owner_id) DO UPDATE SET
			text = excluded.text,
			updated_at = MAX(excluded.updated_at, content.updated_at)
		RETURNING text, updated_at`,
		ownerID, text, s.now().Unix()).Scan(&c.Text, &c.UpdatedAt)
	if db.IsForeignKey(err) {
		return models.Content{}, ErrNotFound
	} else if err != nil {
		return models.Content{}, fmt.Errorf("set content %d: %w", ownerID, db.Classify(err))
	}
	return c, nil
}
