package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/golang-jwt/jwt/v4"
)

const (
	DefaultTokenTTL = 7 * 24 * time.Hour

	claimAttendeeID = "attendee_id"
	claimEventID    = "event_id"
)

// TokenIssuer signs and verifies attendee bearer tokens. Tokens are
// stateless: there is no revocation besides expiry.
type TokenIssuer interface {
	Issue(attendeeID, eventID int) (string, time.Time, error)
	Verify(token string) (*models.Session, error)
}

type jwtTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &jwtTokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

func (t *jwtTokenIssuer) Issue(attendeeID, eventID int) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := jwt.MapClaims{
		claimAttendeeID: attendeeID,
		claimEventID:    eventID,
		"exp":           expiresAt.Unix(),
		"iat":           now.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, time.Unix(expiresAt.Unix(), 0), nil
}

func (t *jwtTokenIssuer) Verify(tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, ErrAuthRequired
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	attendeeID, err := intClaim(claims, claimAttendeeID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	eventID, err := intClaim(claims, claimEventID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	exp, err := intClaim(claims, "exp")
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &models.Session{
		AttendeeID: attendeeID,
		EventID:    eventID,
		ExpiresAt:  time.Unix(int64(exp), 0),
	}, nil
}

// intClaim reads a numeric claim; JSON numbers decode as float64.
func intClaim(claims jwt.MapClaims, name string) (int, error) {
	raw, ok := claims[name]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim", name)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid type for '%s' claim: %T", name, raw)
	}
	if f != float64(int(f)) || f <= 0 {
		return 0, errors.New("claim is not a positive integer")
	}
	return int(f), nil
}
