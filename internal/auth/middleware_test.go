package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(seen *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen, _ = IdentityFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, mw *Middleware, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler(nil)).ServeHTTP(resp, req)
	return resp
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil), "")
	resp := serve(t, mw, http.MethodGet, "/api/v1/summaries/run-1", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenSummaryPost(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), "")
	resp := serve(t, mw, http.MethodPost, "/api/v1/summaries", mustToken(t, secret, "tenant-a", RoleViewer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorRunsSummary(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), "tenant-a")

	var seen Identity
	req := httptest.NewRequest(http.MethodPost, "/api/v1/summaries", nil)
	req.Header.Set("Authorization", "bearer "+mustToken(t, secret, "tenant-a", RoleOperator))
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler(&seen)).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if seen.TenantID != "tenant-a" || seen.Role != RoleOperator || seen.Subject != "user-1" {
		t.Fatalf("unexpected identity: %+v", seen)
	}
}

func TestAuthMiddleware_OperatorForbiddenHolidayUpdate(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), "")
	resp := serve(t, mw, http.MethodPut, "/api/v1/holidays", mustToken(t, secret, "tenant-a", RoleOperator))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	resp = serve(t, mw, http.MethodPut, "/api/v1/holidays", mustToken(t, secret, "tenant-a", RoleAdmin))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_TenantMismatch(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), "tenant-a")
	resp := serve(t, mw, http.MethodGet, "/api/v1/summaries/run-1", mustToken(t, secret, "tenant-b", RoleAdmin))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if err := mw.CheckTenant(&Claims{TenantID: "tenant-b"}); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil), "")
	for _, path := range []string{"/healthz", "/metrics", "/"} {
		if resp := serve(t, mw, http.MethodGet, path, ""); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	secret := []byte("test-secret")
	if _, err := ParseJWT("", secret); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected empty token error, got %v", err)
	}
	if _, err := ParseJWT("x.y.z", nil); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected empty secret error, got %v", err)
	}
	if _, err := ParseJWT(mustToken(t, []byte("other"), "tenant-a", RoleViewer), secret); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := ParseJWT(mustToken(t, secret, "", RoleViewer), secret); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected invalid claims, got %v", err)
	}
	if _, err := ParseJWT(mustToken(t, secret, "tenant-a", Role("root")), secret); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	expired, err := SignJWT(secret, "tenant-a", RoleViewer, "user-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseJWT(expired, secret); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestNormalizeRole(t *testing.T) {
	if role, ok := NormalizeRole(" Operator "); !ok || role != RoleOperator {
		t.Fatalf("expected operator, got %q %v", role, ok)
	}
	if !RoleAtLeast(RoleAdmin, RoleViewer) || RoleAtLeast(RoleViewer, RoleOperator) {
		t.Fatalf("role ordering broken")
	}
}

func mustToken(t *testing.T, secret []byte, tenantID string, role Role) string {
	t.Helper()
	signed, err := SignJWT(secret, tenantID, role, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
