// Package auth resolves (id, token) credentials against the users table.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"qrshare/internal/db"
	"qrshare/internal/models"
)

var (
	// ErrAuthFailure is returned for an unknown id and for a wrong token
	// alike, so callers cannot tell the two apart.
	ErrAuthFailure = errors.New("unauthorized")
	ErrNotFound    = errors.New("user not found")
)

// dummyDigest is compared against when the id does not exist.
var dummyDigest = blake2b.Sum256([]byte("qrshare:no-such-user"))

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Authenticate returns the user owning id if token matches its stored token.
// Both tokens are reduced to fixed-size digests before a constant-time
// compare, so neither token length nor user existence shows in timing.
func (s *Store) Authenticate(ctx context.Context, id int64, token string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, auth_token, display_name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.AuthToken, &u.DisplayName, &u.CreatedAt)

	want := dummyDigest
	found := false
	switch {
	case err == nil:
		want = blake2b.Sum256([]byte(u.AuthToken))
		found = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("authenticate %d: %w", id, db.Classify(err))
	}

	got := blake2b.Sum256([]byte(token))
	match := subtle.ConstantTimeCompare(got[:], want[:]) == 1
	u.AuthToken = ""
	if !found || !match || token == "" {
		return nil, ErrAuthFailure
	}
	return &u, nil
}

// PublicProfile returns the displayable attributes of id.
func (s *Store) PublicProfile(ctx context.Context, id int64) (*models.PublicProfile, error) {
	var p models.PublicProfile
	err := s.db.QueryRowContext(ctx, `SELECT u.id, u.display_name, u.created_at,
		EXISTS(SELECT 1 FROM content c WHERE c.owner_id = u.id)
		FROM users u WHERE u.id = ?`, id).
		Scan(&p.ID, &p.DisplayName, &p.CreatedAt, &p.HasContent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("profile %d: %w", id, db.Classify(err))
	}
	return &p, nil
}

// Provision creates id or replaces its token and display name. It is the
// out-of-band account step and is not reachable through the HTTP API.
func (s *Store) Provision(ctx context.Context, id int64, displayName, token string) error {
	if token == "" {
		return errors.New("provision: empty token")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, auth_token, display_name, created_at)
		VALUES(?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET auth_token=excluded.auth_token, display_name=excluded.display_name`,
		id, token, displayName, s.now().Unix())
	if err != nil {
		return fmt.Errorf("provision %d: %w", id, db.Classify(err))
	}
	return nil
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() string {
	b := make([]byte, 32)
	// rand.Read never returns an error.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
