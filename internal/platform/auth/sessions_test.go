package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSessionRoundTrip(t *testing.T) {
	issuer := NewSessionIssuer("test-secret", time.Hour)
	p := Principal{
		UserID:      uuid.New(),
		Username:    "jdoe",
		AccessLevel: LevelDataAnalyst,
	}

	token, err := issuer.Issue(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != p.UserID || got.Username != p.Username || got.AccessLevel != p.AccessLevel {
		t.Errorf("principal mismatch: got %+v, want %+v", got, p)
	}
}

func TestSessionWrongSecret(t *testing.T) {
	issuer := NewSessionIssuer("secret-a", time.Hour)
	token, err := issuer.Issue(Principal{UserID: uuid.New(), Username: "u", AccessLevel: LevelViewer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewSessionIssuer("secret-b", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestSessionExpired(t *testing.T) {
	issuer := NewSessionIssuer("secret", -time.Minute)
	token, err := issuer.Issue(Principal{UserID: uuid.New(), Username: "u", AccessLevel: LevelViewer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}
