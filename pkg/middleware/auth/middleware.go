package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Middleware struct {
	cookieName string
	adminRole  string
	devBypass  bool

	// Assertion verification
	method   string // RS256 or HS256; empty disables
	rsaKey   *rsa.PublicKey
	hmacKey  []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// New builds the middleware from cfg.
func New(cfg Config) (*Middleware, error) {
	m := &Middleware{
		cookieName: strings.TrimSpace(cfg.CookieName),
		adminRole:  strings.TrimSpace(cfg.AdminRole),
		devBypass:  cfg.DevBypass,
		issuer:     strings.TrimSpace(cfg.Issuer),
		audience:   strings.TrimSpace(cfg.Audience),
		leeway:     time.Duration(cfg.Leeway) * time.Second,
	}
	if m.cookieName == "" {
		m.cookieName = "assert"
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("auth: leeway must be >= 0")
	}

	switch {
	case len(cfg.PublicKeyPEM) > 0 && len(cfg.HMACSecret) > 0:
		return nil, errors.New("auth: configure a public key or an hmac secret, not both")
	case len(cfg.PublicKeyPEM) > 0:
		k, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("auth: public key: %w", err)
		}
		m.method, m.rsaKey = jwt.SigningMethodRS256.Alg(), k
	case len(cfg.HMACSecret) > 0:
		m.method, m.hmacKey = jwt.SigningMethodHS256.Alg(), cfg.HMACSecret
	}
	return m, nil
}

// Enabled reports whether assertions can be verified.
func (m *Middleware) Enabled() bool { return m.method != "" }
