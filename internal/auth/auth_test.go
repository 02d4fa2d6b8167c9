package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the password")
	}

	ok, err := CheckPassword(hash, "s3cret")
	if err != nil || !ok {
		t.Fatalf("CheckPassword(correct) = %v, %v", ok, err)
	}
	ok, err = CheckPassword(hash, "wrong")
	if err != nil || ok {
		t.Fatalf("CheckPassword(wrong) = %v, %v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("test-secret", time.Hour)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	userID, err := issuer.Verify(token)
	if err != nil || userID != "user-42" {
		t.Fatalf("Verify() = %q, %v", userID, err)
	}

	tests := []struct {
		name   string
		token  func() string
		verify *TokenIssuer
	}{
		{
			name:   "expired",
			token:  func() string { return token },
			verify: &TokenIssuer{secret: []byte("test-secret"), ttl: time.Hour, now: func() time.Time { return now.Add(2 * time.Hour) }},
		},
		{
			name:   "wrong secret",
			token:  func() string { return token },
			verify: &TokenIssuer{secret: []byte("other"), ttl: time.Hour, now: issuer.now},
		},
		{
			name:   "garbage",
			token:  func() string { return "not.a.token" },
			verify: issuer,
		},
		{
			name: "unsigned",
			token: func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{UserID: "u"}).
					SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			},
			verify: issuer,
		},
		{
			name: "missing expiry",
			token: func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{UserID: "u"}).
					SignedString([]byte("test-secret"))
				return s
			},
			verify: issuer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verify.Verify(tt.token())
			if !errors.Is(err, core.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}
