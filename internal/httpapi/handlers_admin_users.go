package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

type userPageResponse struct {
	Users []adminUserResponse `json:"users"`
	Page  int                 `json:"page"`
	Pages int                 `json:"pages"`
}

type adminUserResponse struct {
	userResponse
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (a *api) handleUsersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("pageNumber"))

	res, err := a.adminSvc.ListUsers(r.Context(), q.Get("keyword"), page)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := userPageResponse{Users: make([]adminUserResponse, 0, len(res.Users)), Page: res.Page, Pages: res.Pages}
	for _, u := range res.Users {
		out.Users = append(out.Users, adminUserResponse{
			userResponse: toUserResponse(u),
			CreatedAt:    u.CreatedAt,
			LastLoginAt:  u.LastLoginAt,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())

	err := a.adminSvc.DeleteUser(r.Context(), actor.ID, r.PathValue("id"))
	if err != nil {
		if isNotFound(err) {
			WriteError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "User removed"})
}
