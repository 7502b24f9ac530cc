package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/throttle"
)

func postLogin(t *testing.T, h http.Handler, email, password string) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var eb errorBody
	if rr.Code >= 400 {
		if err := json.Unmarshal(rr.Body.Bytes(), &eb); err != nil {
			t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, eb
}

func TestLoginLocksAfterFiveFailuresWithoutTouchingStore(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }

	lookups := 0
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			lookups++
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	h := NewRouter(RouterOpts{
		Auth:  newTestAuthService(users, newMemSessions()),
		Guard: throttle.NewGuard(nil, throttle.WithClock(clock)),
	})

	for i := 1; i <= 5; i++ {
		rr, eb := postLogin(t, h, "a@example.com", "wrong")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rr.Code)
		}
		if eb.Message != "Invalid email or password" {
			t.Fatalf("attempt %d: unexpected message %q", i, eb.Message)
		}
		if eb.AttemptsLeft == nil || *eb.AttemptsLeft != 5-i {
			t.Fatalf("attempt %d: unexpected attempts_left %v", i, eb.AttemptsLeft)
		}
	}

	rr, eb := postLogin(t, h, "a@example.com", "wrong")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if eb.Message != "Too many failed attempts. Please try again in 15 minutes." {
		t.Fatalf("unexpected lock message %q", eb.Message)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if lookups != 5 {
		t.Fatalf("expected credential store to be consulted 5 times, got %d", lookups)
	}

	now = now.Add(14*time.Minute + 30*time.Second)
	_, eb = postLogin(t, h, "a@example.com", "wrong")
	if eb.Message != "Too many failed attempts. Please try again in 1 minutes." {
		t.Fatalf("unexpected lock message %q", eb.Message)
	}

	now = now.Add(30 * time.Second)
	rr, eb = postLogin(t, h, "a@example.com", "wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected lock to lapse, got %d", rr.Code)
	}
	if eb.AttemptsLeft == nil || *eb.AttemptsLeft != 4 {
		t.Fatalf("expected a fresh count after cooldown, got %v", eb.AttemptsLeft)
	}
	if lookups != 6 {
		t.Fatalf("expected store lookup after cooldown, got %d", lookups)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Name: "Shopper", Email: "a@example.com"},
				PasswordHash: hash,
			}, nil
		},
	}
	guard := throttle.NewGuard(nil)
	h := NewRouter(RouterOpts{Auth: newTestAuthService(users, newMemSessions()), Guard: guard})

	for i := 0; i < 4; i++ {
		postLogin(t, h, "a@example.com", "wrong")
	}

	rr, _ := postLogin(t, h, "a@example.com", "correct horse")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Name != "Shopper" || resp.ID != "user-1" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	dec, err := guard.Check(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if dec.Failures != 0 {
		t.Fatalf("expected failures to reset, got %d", dec.Failures)
	}
}

func TestLoginRejectsMissingFieldsBeforeGuard(t *testing.T) {
	h := NewRouter(RouterOpts{
		Auth:  newTestAuthService(&stubUsersStore{t: t}, newMemSessions()),
		Guard: throttle.NewGuard(nil),
	})

	rr, eb := postLogin(t, h, "", "")
	if rr.Code != http.StatusBadRequest || eb.Code != "validation_error" {
		t.Fatalf("expected validation error, got %d %+v", rr.Code, eb)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	sessions := newMemSessions()
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, Name: "Shopper"}, nil
		},
	}
	svc := newTestAuthService(users, sessions)
	h := NewRouter(RouterOpts{Auth: svc})

	sessID, _ := sessions.CreateSession(context.Background(), "user-1", time.Now().Add(time.Hour), "", "")
	tok, err := svc.Tokens.Issue("user-1", sessID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	do := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do(http.MethodGet, "/api/users/profile"); code != http.StatusOK {
		t.Fatalf("profile before logout: %d", code)
	}
	if code := do(http.MethodPost, "/api/users/logout"); code != http.StatusNoContent {
		t.Fatalf("logout: %d", code)
	}
	if code := do(http.MethodGet, "/api/users/profile"); code != http.StatusUnauthorized {
		t.Fatalf("profile after logout: %d", code)
	}
}

func TestCreateAdminRequiresAdmin(t *testing.T) {
	sessions := newMemSessions()
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, IsAdmin: false}, nil
		},
	}
	svc := newTestAuthService(users, sessions)
	h := NewRouter(RouterOpts{Auth: svc})

	sessID, _ := sessions.CreateSession(context.Background(), "user-1", time.Now().Add(time.Hour), "", "")
	tok, _ := svc.Tokens.Issue("user-1", sessID, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/users/admin", strings.NewReader(`{"name":"B","email":"b@example.com","password":"longenough"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
