package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/service"
	"storefront/internal/throttle"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin consults the attempt guard before the credential store is touched.
// A locked client gets 429 and its attempt is not counted again.
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	ip := a.clientIP(r)
	if !a.guardAllows(w, r, ip) {
		return
	}

	res, err := a.authSvc.Login(r.Context(), req.Email, req.Password, ip, r.UserAgent())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			a.writeLoginFailure(w, r, ip)
			return
		}
		a.logger.Error("login failed", "err", err)
		WriteDomainError(w, err)
		return
	}

	a.loginSucceeded(r, ip)
	writeAuthResult(w, http.StatusOK, res)
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *api) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleLoginExternal(w, r, "google")
}

func (a *api) handleLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleLoginExternal(w, r, "apple")
}

func (a *api) handleLoginExternal(w http.ResponseWriter, r *http.Request, provider string) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id_token": "required"}))
		return
	}

	ip := a.clientIP(r)
	if !a.guardAllows(w, r, ip) {
		return
	}

	res, err := a.authSvc.LoginExternal(r.Context(), provider, req.IDToken, ip, r.UserAgent())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			a.writeLoginFailure(w, r, ip)
			return
		}
		WriteDomainError(w, err)
		return
	}

	a.loginSucceeded(r, ip)
	writeAuthResult(w, http.StatusOK, res)
}

func (a *api) guardAllows(w http.ResponseWriter, r *http.Request, key string) bool {
	if a.guard == nil {
		return true
	}
	dec, err := a.guard.Check(r.Context(), key)
	if err != nil {
		a.logger.Error("login guard check failed", "err", err)
		WriteDomainError(w, err)
		return false
	}
	if dec.Allowed {
		return true
	}

	a.metrics.loginOutcome("locked")
	mins := throttle.RetryMinutes(dec.RetryAfter)
	w.Header().Set("Retry-After", fmt.Sprint(int(dec.RetryAfter.Seconds())+1))
	WriteError(w, http.StatusTooManyRequests, "too_many_attempts",
		fmt.Sprintf("Too many failed attempts. Please try again in %d minutes.", mins))
	return false
}

func (a *api) writeLoginFailure(w http.ResponseWriter, r *http.Request, key string) {
	a.metrics.loginOutcome("failure")
	body := errorBody{Code: "invalid_credentials", Message: "Invalid email or password"}
	if a.guard != nil {
		rec, err := a.guard.RecordFailure(r.Context(), key)
		if err != nil {
			a.logger.Error("record login failure", "err", err)
		} else {
			left := a.guard.AttemptsLeft(rec)
			body.AttemptsLeft = &left
		}
	}
	WriteJSON(w, http.StatusUnauthorized, body)
}

func (a *api) loginSucceeded(r *http.Request, key string) {
	a.metrics.loginOutcome("success")
	if a.guard == nil {
		return
	}
	if err := a.guard.RecordSuccess(r.Context(), key); err != nil {
		a.logger.Error("reset login failures", "err", err)
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	res, err := a.authSvc.Register(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, a.clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	writeAuthResult(w, http.StatusCreated, res)
}

// handleCreateAdmin lets an admin create another admin account. The caller's
// own session is unaffected.
func (a *api) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	u, err := a.authSvc.CreateAccount(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  true,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	writeUser(w, http.StatusCreated, u)
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok || sess.ID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sess.ID); err != nil {
		a.logger.Error("logout failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
