package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zapllo/crm-backend/internal/auth"
)

func newTestManager() *auth.Manager {
	return &auth.Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		Issuer:     "crm-backend",
	}
}

func authedHandler(t *testing.T, gotPrincipal *Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("principal missing from context")
		}
		*gotPrincipal = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthResolvesPrincipal(t *testing.T) {
	m := newTestManager()
	token, err := m.NewAccessToken("user-1", "org-1", "admin")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	var p Principal
	handler := Auth(m)(authedHandler(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if p.UserID != "user-1" || p.OrganizationID != "org-1" || p.Role != "admin" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthRejectsMissingCookie(t *testing.T) {
	handler := Auth(newTestManager())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	handler := Auth(newTestManager())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "not-a-jwt"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsTokenWithoutOrganization(t *testing.T) {
	m := newTestManager()
	token, err := m.NewAccessToken("user-1", "", "member")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	handler := Auth(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := newTestManager()
	memberToken, err := m.NewAccessToken("user-1", "org-1", "member")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	ran := false
	handler := Auth(m)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: memberToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden || ran {
		t.Fatalf("expected 403 for member, got %d (ran=%v)", rec.Code, ran)
	}
}
