package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, isAdmin bool) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
	RevokeOtherSessions(ctx context.Context, userID, keepID string, when time.Time) error
}

// AuthResult is a user together with a freshly issued bearer token.
type AuthResult struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	IsAdmin  bool
}

type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
}

type AuthService struct {
	Users    UsersStore
	Sessions SessionsStore
	Tokens   *auth.TokenIssuer
	TokenTTL time.Duration
	Now      func() time.Time

	GoogleClientID      string
	VerifyGoogleIDToken auth.IdentityVerifier
	AppleServiceID      string
	VerifyAppleIDToken  auth.IdentityVerifier
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams, ip, userAgent string) (AuthResult, error) {
	u, err := s.CreateAccount(ctx, p)
	if err != nil {
		return AuthResult{}, err
	}
	return s.startSession(ctx, u, ip, userAgent)
}

// CreateAccount validates p and stores the user without signing them in.
func (s *AuthService) CreateAccount(ctx context.Context, p RegisterParams) (domain.User, error) {
	name := strings.TrimSpace(p.Name)
	email := normalizeEmail(p.Email)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if !strings.Contains(email, "@") {
		fields["email"] = "must be a valid email"
	}
	if len(p.Password) < auth.MinPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", auth.MinPasswordLen)
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, err
	}

	return s.Users.CreateUser(ctx, name, email, hash, p.IsAdmin)
}

// Login checks credentials only. Attempt throttling happens in front of it.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (AuthResult, error) {
	u, err := s.Users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResult{}, domain.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, domain.ErrInvalidCredentials
	}

	return s.startSession(ctx, u.User, ip, userAgent)
}

// LoginExternal signs in with a Google or Apple ID token, creating the account
// on first use. Accounts are matched by verified email.
func (s *AuthService) LoginExternal(ctx context.Context, provider, idToken, ip, userAgent string) (AuthResult, error) {
	var (
		verify   auth.IdentityVerifier
		audience string
	)
	switch provider {
	case "google":
		verify, audience = s.VerifyGoogleIDToken, s.GoogleClientID
	case "apple":
		verify, audience = s.VerifyAppleIDToken, s.AppleServiceID
	default:
		return AuthResult{}, domain.NewValidationError(map[string]string{"provider": "unsupported"})
	}
	if verify == nil || audience == "" {
		return AuthResult{}, domain.ErrNotFound
	}

	ident, err := verify(ctx, idToken, audience)
	if err != nil {
		return AuthResult{}, domain.ErrInvalidCredentials
	}
	email := normalizeEmail(ident.Email)
	if email == "" {
		return AuthResult{}, domain.NewValidationError(map[string]string{"email": "id token has no email"})
	}

	existing, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.startSession(ctx, existing.User, ip, userAgent)
	case !errors.Is(err, domain.ErrNotFound):
		return AuthResult{}, err
	}

	name := ident.Name
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	hash, err := auth.HashPassword(randomSecret())
	if err != nil {
		return AuthResult{}, err
	}
	u, err := s.Users.CreateUser(ctx, name, email, hash, false)
	if err != nil {
		return AuthResult{}, err
	}
	return s.startSession(ctx, u, ip, userAgent)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

// Authenticate resolves a bearer token to its user and live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, domain.Session, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return domain.User{}, domain.Session{}, domain.ErrUnauthorized
	}

	sess, err := s.Sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Session{}, domain.ErrUnauthorized
		}
		return domain.User{}, domain.Session{}, err
	}
	if sess.UserID != claims.UserID {
		return domain.User{}, domain.Session{}, domain.ErrUnauthorized
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Session{}, domain.ErrUnauthorized
		}
		return domain.User{}, domain.Session{}, err
	}
	return u, sess, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (domain.User, error) {
	return s.Users.GetUserByID(ctx, userID)
}

// UpdateProfile applies the non-empty fields of p and re-issues the token for sess.
// A password change signs the user out of every other session.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, sess domain.Session, p ProfileUpdate) (AuthResult, error) {
	var upd domain.UserUpdate
	if name := strings.TrimSpace(p.Name); name != "" {
		upd.Name = &name
	}
	if email := normalizeEmail(p.Email); email != "" {
		if !strings.Contains(email, "@") {
			return AuthResult{}, domain.NewValidationError(map[string]string{"email": "must be a valid email"})
		}
		upd.Email = &email
	}
	if p.Password != "" {
		if len(p.Password) < auth.MinPasswordLen {
			return AuthResult{}, domain.NewValidationError(map[string]string{
				"password": fmt.Sprintf("must be at least %d characters", auth.MinPasswordLen),
			})
		}
		hash, err := auth.HashPassword(p.Password)
		if err != nil {
			return AuthResult{}, err
		}
		upd.PasswordHash = &hash
	}

	u, err := s.Users.UpdateUser(ctx, userID, upd)
	if err != nil {
		return AuthResult{}, err
	}
	if upd.PasswordHash != nil {
		if err := s.Sessions.RevokeOtherSessions(ctx, u.ID, sess.ID, s.now()); err != nil {
			return AuthResult{}, err
		}
	}

	token, err := s.Tokens.Issue(u.ID, sess.ID, sess.ExpiresAt)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: u, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *AuthService) startSession(ctx context.Context, u domain.User, ip, userAgent string) (AuthResult, error) {
	now := s.now()
	expiresAt := now.Add(s.TokenTTL)

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, expiresAt, ip, userAgent)
	if err != nil {
		return AuthResult{}, err
	}
	token, err := s.Tokens.Issue(u.ID, sessID, expiresAt)
	if err != nil {
		return AuthResult{}, err
	}

	_ = s.Users.SetLastLogin(ctx, u.ID, now)

	return AuthResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func randomSecret() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
