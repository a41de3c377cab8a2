// Package service is the operation boundary: every call authenticates the
// caller before it touches content or profiles, and every failure leaves
// here as one of the sentinel errors below.
package service

import (
	"context"
	"errors"
	"log/slog"

	"qrshare/internal/auth"
	"qrshare/internal/content"
	"qrshare/internal/db"
	"qrshare/internal/models"
)

var (
	ErrAuthFailure = errors.New("unauthorized")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrTooLarge    = errors.New("content too large")
	// ErrBusy is retryable; the storage engine already waited its busy timeout.
	ErrBusy = errors.New("storage busy, retry later")
)

// Credentials identify the caller of every operation.
type Credentials struct {
	ID    int64
	Token string
}

type Authenticator interface {
	Authenticate(ctx context.Context, id int64, token string) (*models.User, error)
	PublicProfile(ctx context.Context, id int64) (*models.PublicProfile, error)
}

type ContentStore interface {
	Get(ctx context.Context, ownerID int64) (models.Content, error)
	Set(ctx context.Context, callerID, ownerID int64, text string) (models.Content, error)
}

type Service struct {
	users   Authenticator
	content ContentStore
	log     *slog.Logger
}

func New(users Authenticator, content ContentStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, content: content, log: log}
}

// Authenticate resolves cred or fails with ErrAuthFailure.
func (s *Service) Authenticate(ctx context.Context, cred Credentials) (*models.User, error) {
	u, err := s.users.Authenticate(ctx, cred.ID, cred.Token)
	if err != nil {
		return nil, s.mapErr(ctx, "authenticate", err)
	}
	return u, nil
}

// Ping is the liveness probe; it only proves the credentials are valid.
func (s *Service) Ping(ctx context.Context, cred Credentials) error {
	_, err := s.Authenticate(ctx, cred)
	return err
}

// FollowedContent returns the content of followID. Any authenticated caller
// may read any owner; follow relations are not checked server side.
func (s *Service) FollowedContent(ctx context.Context, cred Credentials, followID int64) (models.Content, error) {
	if _, err := s.Authenticate(ctx, cred); err != nil {
		return models.Content{}, err
	}
	c, err := s.content.Get(ctx, followID)
	if err != nil {
		return models.Content{}, s.mapErr(ctx, "get content", err)
	}
	return c, nil
}

// UpdateContent replaces ownerID's content; ownerID must be the caller.
func (s *Service) UpdateContent(ctx context.Context, cred Credentials, ownerID int64, text string) (models.Content, error) {
	u, err := s.Authenticate(ctx, cred)
	if err != nil {
		return models.Content{}, err
	}
	c, err := s.content.Set(ctx, u.ID, ownerID, text)
	if err != nil {
		return models.Content{}, s.mapErr(ctx, "set content", err)
	}
	return c, nil
}

// Profile returns the public profile of targetID.
func (s *Service) Profile(ctx context.Context, cred Credentials, targetID int64) (*models.PublicProfile, error) {
	if _, err := s.Authenticate(ctx, cred); err != nil {
		return nil, err
	}
	p, err := s.users.PublicProfile(ctx, targetID)
	if err != nil {
		return nil, s.mapErr(ctx, "get profile", err)
	}
	return p, nil
}

func (s *Service) mapErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, auth.ErrAuthFailure):
		return ErrAuthFailure
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, content.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, content.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, content.ErrTooLarge):
		return ErrTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.InfoContext(ctx, "request ended before storage finished", "op", op, "error", err)
		return err
	case errors.Is(err, db.ErrBusy):
		s.log.WarnContext(ctx, "storage busy", "component", "db", "op", op, "error", err)
		return ErrBusy
	}
	s.log.ErrorContext(ctx, "storage failure", "component", "db", "op", op, "error", err)
	return err
}
