package auth

import "context"

type contextKey struct{ name string }

var userCtxKey = &contextKey{"user"}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// UserFromContext returns the caller, if authenticated. Server functions use
// it to read who is calling.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userCtxKey).(User)
	return u, ok && u.Username != ""
}

func (m *Middleware) GetUser(ctx context.Context) User {
	u, _ := UserFromContext(ctx)
	return u
}

func (m *Middleware) IsRole(ctx context.Context, role Role) bool {
	if u, ok := UserFromContext(ctx); ok {
		return u.Role.Name == role.Name || m.isAdminRole(u.Role.Name)
	}
	return false
}

func (m *Middleware) IsAdmin(ctx context.Context) bool {
	u, ok := UserFromContext(ctx)
	return ok && m.isAdminRole(u.Role.Name)
}

func (m *Middleware) IsUser(ctx context.Context, username string) bool {
	if u, ok := UserFromContext(ctx); ok {
		return u.Username == username || m.isAdminRole(u.Role.Name)
	}
	return false
}

func (m *Middleware) IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}

func (m *Middleware) isAdminRole(name string) bool {
	return m.adminRole != "" && name == m.adminRole
}
