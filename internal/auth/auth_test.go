package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"qrshare/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	dbc := testutil.NewDB(t)
	testutil.AddUser(t, dbc, 1, "s3cret-token", "alice")
	testutil.AddUser(t, dbc, 2, "other-token", "bob")
	store := NewStore(dbc)

	tests := []struct {
		name    string
		id      int64
		token   string
		wantErr error
	}{
		{"valid", 1, "s3cret-token", nil},
		{"valid_second_user", 2, "other-token", nil},
		{"wrong_token", 1, "s3cret-tokem", ErrAuthFailure},
		{"other_users_token", 1, "other-token", ErrAuthFailure},
		{"prefix_of_token", 1, "s3cret", ErrAuthFailure},
		{"empty_token", 1, "", ErrAuthFailure},
		{"unknown_id", 999999, "s3cret-token", ErrAuthFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := store.Authenticate(context.Background(), tt.id, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if u != nil {
					t.Errorf("Authenticate() returned a user on failure: %+v", u)
				}
				return
			}
			if u.ID != tt.id {
				t.Errorf("got id %d, want %d", u.ID, tt.id)
			}
			if u.AuthToken != "" {
				t.Error("returned user still carries its token")
			}
		})
	}
}

func TestAuthenticateSingleCharMutation(t *testing.T) {
	dbc := testutil.NewDB(t)
	token := GenerateToken()
	testutil.AddUser(t, dbc, 7, token, "mut")
	store := NewStore(dbc)
	ctx := context.Background()

	if _, err := store.Authenticate(ctx, 7, token); err != nil {
		t.Fatalf("valid token rejected: %+v", err)
	}

	for i := range token {
		b := []byte(token)
		if b[i] == 'x' {
			b[i] = 'y'
		} else {
			b[i] = 'x'
		}
		if _, err := store.Authenticate(ctx, 7, string(b)); !errors.Is(err, ErrAuthFailure) {
			t.Fatalf("mutation at %d accepted: err = %v", i, err)
		}
	}
}

func TestAuthFailureIsIndistinguishable(t *testing.T) {
	dbc := testutil.NewDB(t)
	testutil.AddUser(t, dbc, 1, "tok", "alice")
	store := NewStore(dbc)

	_, errWrong := store.Authenticate(context.Background(), 1, "nope")
	_, errMissing := store.Authenticate(context.Background(), 2, "nope")
	if errWrong.Error() != errMissing.Error() {
		t.Errorf("wrong token and unknown id differ: %q vs %q", errWrong, errMissing)
	}
}

func TestPublicProfile(t *testing.T) {
	dbc := testutil.NewDB(t)
	testutil.AddUser(t, dbc, 1, "very-secret", "alice")
	testutil.AddUser(t, dbc, 2, "tok2", "bob")
	if _, err := dbc.Exec(`INSERT INTO content(owner_id, text, updated_at) VALUES(2, 'https://b', 1)`); err != nil {
		t.Fatalf("seed content: %+v", err)
	}
	store := NewStore(dbc)
	ctx := context.Background()

	p, err := store.PublicProfile(ctx, 1)
	if err != nil {
		t.Fatalf("PublicProfile(1) error = %+v", err)
	}
	if p.DisplayName != "alice" || p.HasContent {
		t.Errorf("unexpected profile %+v", p)
	}
	raw, _ := json.Marshal(p)
	if strings.Contains(string(raw), "very-secret") {
		t.Errorf("profile JSON leaks the token: %s", raw)
	}

	p, err = store.PublicProfile(ctx, 2)
	if err != nil {
		t.Fatalf("PublicProfile(2) error = %+v", err)
	}
	if !p.HasContent {
		t.Error("user 2 has content")
	}

	if _, err := store.PublicProfile(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("PublicProfile(404) error = %v, want ErrNotFound", err)
	}
}

func TestProvision(t *testing.T) {
	dbc := testutil.NewDB(t)
	store := NewStore(dbc)
	ctx := context.Background()

	if err := store.Provision(ctx, 5, "eve", ""); err == nil {
		t.Fatal("Provision() with empty token should fail")
	}

	first := GenerateToken()
	if err := store.Provision(ctx, 5, "eve", first); err != nil {
		t.Fatalf("Provision() error = %+v", err)
	}
	if _, err := store.Authenticate(ctx, 5, first); err != nil {
		t.Fatalf("provisioned token rejected: %+v", err)
	}

	rotated := GenerateToken()
	if rotated == first {
		t.Fatal("GenerateToken() repeated itself")
	}
	if err := store.Provision(ctx, 5, "eve2", rotated); err != nil {
		t.Fatalf("rotate error = %+v", err)
	}
	if _, err := store.Authenticate(ctx, 5, first); !errors.Is(err, ErrAuthFailure) {
		t.Errorf("old token still accepted: %v", err)
	}
	u, err := store.Authenticate(ctx, 5, rotated)
	if err != nil {
		t.Fatalf("rotated token rejected: %+v", err)
	}
	if u.DisplayName != "eve2" {
		t.Errorf("display name = %q, want eve2", u.DisplayName)
	}
}
