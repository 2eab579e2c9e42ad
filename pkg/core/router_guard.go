package core

import (
	"context"
	"net/http"
	"slices"

	"github.com/joeydtaylor/steeze-ssr/pkg/manifest"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/auth"
)

// checkGuard returns nil, ErrUnauthorized or ErrForbidden.
func checkGuard(ctx context.Context, a *auth.Middleware, g manifest.Guard) error {
	if g.Open() {
		return nil
	}
	// Without auth middleware nobody can satisfy a guard.
	if a == nil || !a.IsAuthenticated(ctx) {
		return ErrUnauthorized
	}
	if len(g.Users) > 0 {
		if slices.Contains(g.Users, a.GetUser(ctx).Username) {
			return nil
		}
		return ErrForbidden
	}
	if len(g.Roles) > 0 {
		if a.IsAdmin(ctx) || slices.Contains(g.Roles, a.GetUser(ctx).Role.Name) {
			return nil
		}
		return ErrForbidden
	}
	return nil
}

// withGuard rejects callers g does not admit, reporting through deny.
func withGuard(next http.HandlerFunc, a *auth.Middleware, g manifest.Guard, deny func(http.ResponseWriter, *http.Request, error)) http.HandlerFunc {
	if g.Open() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkGuard(r.Context(), a, g); err != nil {
			deny(w, r, err)
			return
		}
		next(w, r)
	}
}
