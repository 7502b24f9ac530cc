package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/service"
)

type stubUsersStore struct {
	t *testing.T

	getUserByIDFunc    func(context.Context, string) (domain.User, error)
	getUserByEmailFunc func(context.Context, string) (domain.UserWithPassword, error)
	createUserFunc     func(context.Context, string, string, string, bool) (domain.User, error)
}

func (s *stubUsersStore) CreateUser(ctx context.Context, name, email, passwordHash string, isAdmin bool) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, name, email, passwordHash, isAdmin)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) UpdateUser(context.Context, string, domain.UserUpdate) (domain.User, error) {
	s.t.Fatalf("UpdateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetLastLogin(context.Context, string, time.Time) error {
	return nil
}

// memSessions keeps sessions in a map so bearer tokens issued in a test resolve.
type memSessions struct {
	next     int
	sessions map[string]domain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]domain.Session)}
}

func (s *memSessions) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	s.next++
	id := "sess-" + strings.Repeat("x", s.next)
	s.sessions[id] = domain.Session{ID: id, UserID: userID, ExpiresAt: expiresAt}
	return id, nil
}

func (s *memSessions) GetSession(_ context.Context, id string) (domain.Session, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *memSessions) RevokeSession(_ context.Context, id string, when time.Time) error {
	if sess, ok := s.sessions[id]; ok {
		sess.RevokedAt = &when
		s.sessions[id] = sess
	}
	return nil
}

func (s *memSessions) RevokeOtherSessions(_ context.Context, userID, keepID string, when time.Time) error {
	for id, sess := range s.sessions {
		if sess.UserID == userID && id != keepID && sess.RevokedAt == nil {
			sess.RevokedAt = &when
			s.sessions[id] = sess
		}
	}
	return nil
}

func newTestAuthService(users service.UsersStore, sessions service.SessionsStore) *service.AuthService {
	return &service.AuthService{
		Users:    users,
		Sessions: sessions,
		Tokens:   auth.NewTokenIssuer([]byte(strings.Repeat("t", 32)), "storefront-test"),
		TokenTTL: time.Hour,
	}
}
