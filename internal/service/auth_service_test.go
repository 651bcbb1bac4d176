package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nightfall_dashboard/internal/config"
	"nightfall_dashboard/internal/models"
)

// mockAuthRepo is a lightweight in-test mock for repository.Authorization.
type mockAuthRepo struct {
	CreateFn        func(username, hash string) (int, error)
	GetByUsernameFn func(username string) (*models.Operator, error)

	createdHash string
}

func (m *mockAuthRepo) Create(_ context.Context, username, hash string) (int, error) {
	m.createdHash = hash
	return m.CreateFn(username, hash)
}

func (m *mockAuthRepo) GetByUsername(_ context.Context, username string) (*models.Operator, error) {
	return m.GetByUsernameFn(username)
}

var testAuth = config.Auth{SigningKey: "test-key", TokenTTL: time.Hour}

func TestAuthService_SignUp(t *testing.T) {
	tests := []struct {
		name     string
		password string
		repoErr  error
		wantErr  bool
	}{
		{name: "ok", password: "s3cr3t"},
		{name: "empty password", password: "   ", wantErr: true},
		{name: "repo error", password: "pass", repoErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuthRepo{CreateFn: func(username, hash string) (int, error) {
				if username != "pilot" {
					t.Errorf("username = %q", username)
				}
				return 42, tt.repoErr
			}}
			svc := NewAuthService(repo, testAuth)

			id, err := svc.SignUp(context.Background(), " pilot ", tt.password)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || id != 42 {
				t.Fatalf("SignUp = %d, %v", id, err)
			}
			if repo.createdHash == tt.password {
				t.Fatal("password stored in clear")
			}
			if err := verifyPassword(repo.createdHash, tt.password); err != nil {
				t.Fatalf("hash does not verify: %v", err)
			}
		})
	}
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	hash, err := hashPassword("letmein")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	repo := &mockAuthRepo{GetByUsernameFn: func(username string) (*models.Operator, error) {
		if username != "pilot" {
			return nil, nil
		}
		return &models.Operator{ID: 7, Username: username, PasswordHash: hash}, nil
	}}
	svc := NewAuthService(repo, testAuth)

	token, err := svc.GenerateToken(context.Background(), "pilot", "letmein")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	id, err := svc.ParseToken(token)
	if err != nil || id != 7 {
		t.Fatalf("ParseToken = %d, %v", id, err)
	}

	if _, err := svc.GenerateToken(context.Background(), "pilot", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
	if _, err := svc.GenerateToken(context.Background(), "ghost", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_ParseToken_Rejects(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, testAuth)

	other := NewAuthService(&mockAuthRepo{}, config.Auth{SigningKey: "other-key"})
	foreign, err := other.issueToken(1)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	expiredSvc := NewAuthService(&mockAuthRepo{}, testAuth)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.issueToken(1)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{OperatorID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("none token: %v", err)
	}

	for name, tok := range map[string]string{
		"garbage":     "not-a-token",
		"foreign key": foreign,
		"expired":     expired,
		"alg none":    unsigned,
	} {
		if _, err := svc.ParseToken(tok); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestAuthService_NoSigningKey(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, config.Auth{})
	if _, err := svc.issueToken(1); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("want ErrNoSigningKey, got %v", err)
	}
	if svc.tokenTTL != config.DefaultTokenTTL {
		t.Fatalf("ttl = %v", svc.tokenTTL)
	}
}
