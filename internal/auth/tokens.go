package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims identifies the user and the server-side session a bearer token belongs to.
type TokenClaims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	Now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string) *TokenIssuer {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenIssuer{secret: secretCopy, issuer: issuer, Now: time.Now}
}

func (ti *TokenIssuer) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	if len(ti.secret) == 0 {
		return "", errors.New("token issuer: secret is not configured")
	}
	now := ti.Now()
	claims := jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    ti.issuer,
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (ti *TokenIssuer) Parse(token string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(ti.secret) == 0 {
		return TokenClaims{}, ErrInvalidToken
	}

	var parsed jwtClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.Now),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return TokenClaims{}, fmt.Errorf("%w: missing sub or jti", ErrInvalidToken)
	}

	return TokenClaims{
		UserID:    parsed.Subject,
		SessionID: parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
