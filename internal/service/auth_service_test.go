package service

import (
	"context"
	"testing"
	"time"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/model"
)

func testAuthService() *AuthService {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4, // Minimum cost keeps the test fast
	}
	return NewAuthService(cfg, nil, nil)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	s := testAuthService()

	hash, err := s.HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash equals plaintext")
	}

	if err := s.CheckPassword(hash, "secret123"); err != nil {
		t.Errorf("CheckPassword() with correct password error = %v", err)
	}
	if err := s.CheckPassword(hash, "wrong"); err == nil {
		t.Error("CheckPassword() accepted wrong password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := testAuthService()

	// Admin tokens skip the Redis single-device registration, so no
	// backing store is needed here.
	user := &model.User{ID: 42, Name: "Priya", Role: model.RoleAdmin}
	token, err := s.generateToken(context.Background(), user)
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("Role = %s, want admin", claims.Role)
	}
	if claims.ID == "" {
		t.Error("JTI is empty")
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	s := testAuthService()

	user := &model.User{ID: 1, Role: model.RoleAdmin}
	token, err := s.generateToken(context.Background(), user)
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}

	if _, err := s.ValidateToken(token + "x"); err == nil {
		t.Error("ValidateToken() accepted tampered token")
	}

	other := NewAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour}, nil, nil)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted token signed with a different secret")
	}
}
