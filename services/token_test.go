package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)

	token, expiresAt, err := issuer.Issue(7, 3)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if until := time.Until(expiresAt); until <= 59*time.Minute || until > time.Hour {
		t.Fatalf("expiresAt in %v, want about one hour", until)
	}

	session, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if session.AttendeeID != 7 || session.EventID != 3 {
		t.Fatalf("session = %+v, want attendee 7 event 3", session)
	}
	if !session.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("ExpiresAt = %v, want %v", session.ExpiresAt, expiresAt)
	}
}

func TestTokenVerifyRejects(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour).(*jwtTokenIssuer)

	expired := NewTokenIssuer([]byte("secret"), time.Minute).(*jwtTokenIssuer)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.Issue(1, 1)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	otherKey, _, err := NewTokenIssuer([]byte("other"), time.Hour).Issue(1, 1)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"attendee_id": 1,
		"event_id":    1,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}

	missingEvent, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"attendee_id": 1,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrAuthRequired},
		{"malformed", "a.b.c", ErrInvalidToken},
		{"expired", expiredToken, ErrInvalidToken},
		{"wrong key", otherKey, ErrInvalidToken},
		{"alg none", noneToken, ErrInvalidToken},
		{"missing event claim", missingEvent, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			expectErr(t, err, tt.want)
		})
	}
}

func TestNewTokenIssuerDefaultsTTL(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), 0).(*jwtTokenIssuer)
	if issuer.ttl != DefaultTokenTTL {
		t.Fatalf("ttl = %v, want %v", issuer.ttl, DefaultTokenTTL)
	}
}

func TestIssuedTokenClaims(t *testing.T) {
	token, _, err := NewTokenIssuer([]byte("secret"), time.Hour).Issue(4, 9)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if claims["attendee_id"] != float64(4) || claims["event_id"] != float64(9) {
		t.Fatalf("claims = %v, want attendee_id 4 and event_id 9", claims)
	}
	if _, ok := claims["exp"]; !ok {
		t.Fatalf("claims = %v, want exp", claims)
	}
	if _, ok := claims["sub"]; ok {
		t.Fatalf("claims = %v, want no sub", claims)
	}
}
