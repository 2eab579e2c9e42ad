package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	jwt.RegisteredClaims
	UID   string   `json:"uid"`
	Roles []string `json:"roles"`
	Role  string   `json:"role"`
	Prov  string   `json:"prov"`
}

func (m *Middleware) validateAssertion(raw string) (User, error) {
	if !m.Enabled() {
		return User{}, errors.New("assertion key not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)

	var c claims
	tok, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		if m.rsaKey != nil {
			return m.rsaKey, nil
		}
		return m.hmacKey, nil
	})
	if err != nil || !tok.Valid {
		return User{}, errors.New("invalid assertion")
	}

	if m.issuer != "" && c.Issuer != m.issuer {
		return User{}, errors.New("bad issuer")
	}
	if m.audience != "" && !slices.Contains(c.Audience, m.audience) {
		return User{}, errors.New("bad audience")
	}

	username := firstNonEmpty(c.UID, c.Subject)
	if username == "" {
		return User{}, errors.New("missing uid")
	}

	return User{
		Username:             username,
		AuthenticationSource: AuthenticationSource{Provider: firstNonEmpty(c.Prov, "assert")},
		Role:                 Role{Name: firstNonEmpty(append([]string{c.Role}, c.Roles...)...)},
	}, nil
}

// token returns the assertion from the bearer header, else from the cookie.
func (m *Middleware) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
