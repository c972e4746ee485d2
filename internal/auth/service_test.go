package auth

import (
	"context"
	"testing"
)

func TestGenerateTokenAndVerifyRoundTrip(t *testing.T) {
	s := &Service{}

	token, err := s.generateToken("user-1", "organizer")
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	userID, role, err := s.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-1" || role != "organizer" {
		t.Errorf("Verify = (%s, %s), want (user-1, organizer)", userID, role)
	}
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	s := &Service{}
	if _, _, err := s.Verify(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}

func TestVerifyDefaultsMissingRole(t *testing.T) {
	s := &Service{}
	token, err := s.generateToken("user-2", "")
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	_, role, err := s.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if role != defaultRole {
		t.Errorf("role = %q, want default %q", role, defaultRole)
	}
}
