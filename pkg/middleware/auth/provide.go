package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ConfigFromEnv reads the ASSERTION_* and AUTH_* variables. The public key may
// be given inline (ASSERTION_PUBLIC_KEY) or as a file (ASSERTION_PUBLIC_KEY_FILE).
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		CookieName: os.Getenv("ASSERTION_COOKIE_NAME"),
		Issuer:     os.Getenv("ASSERTION_ISSUER"),
		Audience:   os.Getenv("ASSERTION_AUDIENCE"),
		AdminRole:  os.Getenv("ADMIN_ROLE_NAME"),
		DevBypass:  os.Getenv("AUTH_DEV_BYPASS") == "true",
		Leeway:     60,
	}
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ASSERTION_LEEWAY_SECONDS: %w", err)
		}
		cfg.Leeway = n
	}
	if v := os.Getenv("ASSERTION_PUBLIC_KEY"); v != "" {
		cfg.PublicKeyPEM = []byte(v)
	} else if p := strings.TrimSpace(os.Getenv("ASSERTION_PUBLIC_KEY_FILE")); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("ASSERTION_PUBLIC_KEY_FILE: %w", err)
		}
		cfg.PublicKeyPEM = b
	}
	if v := os.Getenv("ASSERTION_HMAC_SECRET"); v != "" {
		cfg.HMACSecret = []byte(v)
	}
	return cfg, nil
}

// ProvideAuthentication wires env config.
func ProvideAuthentication(log *zap.Logger) (*Middleware, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	m, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if m.devBypass {
		log.Warn("auth dev bypass enabled")
	}
	if !m.Enabled() {
		log.Info("auth assertions disabled; no key configured")
	}
	return m, nil
}

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)
