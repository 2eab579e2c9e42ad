package auth

import (
	"net/http"
)

// Middleware attaches the caller to the request context when a dev header or a
// valid assertion is present. Requests without one continue anonymously; the
// per-route guards decide whether that is acceptable.
func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := m.authenticate(r); ok {
				r = r.WithContext(WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) authenticate(r *http.Request) (User, bool) {
	// NEVER enable the bypass in production.
	if m.devBypass {
		if u := devUser(r.Header); u.Username != "" {
			return u, true
		}
	}
	raw := m.token(r)
	if raw == "" || !m.Enabled() {
		return User{}, false
	}
	u, err := m.validateAssertion(raw)
	return u, err == nil
}

// devUser reads X-Dev-User, X-Dev-Role and X-Dev-Provider.
func devUser(h http.Header) User {
	return User{
		Username:             h.Get("X-Dev-User"),
		AuthenticationSource: AuthenticationSource{Provider: firstNonEmpty(h.Get("X-Dev-Provider"), "dev")},
		Role:                 Role{Name: h.Get("X-Dev-Role")},
	}
}
