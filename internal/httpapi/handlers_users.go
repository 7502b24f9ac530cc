package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type userResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IsAdmin   bool       `json:"is_admin"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

func writeUser(w http.ResponseWriter, status int, u domain.User) {
	w.Header().Set("ETag", userETag(u))
	WriteJSON(w, status, toUserResponse(u))
}

func writeAuthResult(w http.ResponseWriter, status int, res service.AuthResult) {
	resp := toUserResponse(res.User)
	resp.Token = res.Token
	exp := res.ExpiresAt.UTC()
	resp.ExpiresAt = &exp
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, status, resp)
}

func (a *api) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == userETag(u) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeUser(w, http.StatusOK, u)
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	sess, _ := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	res, err := a.authSvc.UpdateProfile(r.Context(), u.ID, sess, service.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeAuthResult(w, http.StatusOK, res)
}

func userETag(u domain.User) string {
	return fmt.Sprintf("W/\"user:%s:%d\"", u.ID, u.UpdatedAt.UnixNano())
}
