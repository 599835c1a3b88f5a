package middleware

import (
	"context"
	"net/http"

	"github.com/zapllo/crm-backend/internal/auth"
	"github.com/zapllo/crm-backend/internal/transport"
)

// Principal is the authenticated caller. It is resolved exactly once per
// request; every query below the handler layer derives its tenant filter
// from the organization id carried here, never from request input.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           string
}

type principalKey struct{}

const TokenCookie = "token"

func Auth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}

			cookie, err := r.Cookie(TokenCookie)
			if err != nil || cookie.Value == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := manager.Parse(cookie.Value)
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			if claims.OrganizationID == "" {
				transport.WriteError(w, http.StatusForbidden, "no organization", nil)
				return
			}

			principal := Principal{
				UserID:         claims.UserID,
				OrganizationID: claims.OrganizationID,
				Role:           claims.Role,
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.Role != "admin" {
			transport.WriteError(w, http.StatusForbidden, "admin only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
