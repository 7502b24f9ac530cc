package httpapi

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/domain"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authSessionKey
)

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "Not authorized, no token")
			return
		}

		u, sess, err := a.authSvc.Authenticate(r.Context(), token)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		ctx = context.WithValue(ctx, authSessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (a *api) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, _ := CurrentUser(r.Context())
		if !u.IsAdmin {
			WriteError(w, http.StatusForbidden, "forbidden", "Not authorized as an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func CurrentSession(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(authSessionKey).(domain.Session)
	return s, ok
}

// clientIP is the address a request is throttled under. X-Forwarded-For is only
// read when the direct peer is a trusted proxy, and then the rightmost hop that
// is not itself a trusted proxy wins.
func (a *api) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if len(a.trustedProxies) == 0 {
		return peer
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !a.isTrustedProxy(addr) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		hopAddr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		client = hopAddr.Unmap().String()
		if !a.isTrustedProxy(hopAddr) {
			break
		}
	}
	return client
}

func (a *api) isTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range a.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		return host
	}
	return remoteAddr
}
