package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrTenantMismatch indicates a token issued for another tenant.
var ErrTenantMismatch = errors.New("auth: tenant mismatch")

// Middleware validates JWTs and enforces role checks.
type Middleware struct {
	Secret []byte
	Policy Policy
	// TenantID, when set, is the only tenant whose tokens are accepted.
	TenantID string
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, tenantID string) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, TenantID: tenantID}
}

// CheckTenant reports whether claims belong to the configured tenant.
func (m *Middleware) CheckTenant(claims *Claims) error {
	if m == nil || m.TenantID == "" || claims == nil {
		return nil
	}
	if claims.TenantID != m.TenantID {
		return ErrTenantMismatch
	}
	return nil
}

// Wrap applies authentication and role checks to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := m.CheckTenant(claims); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.TenantID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
