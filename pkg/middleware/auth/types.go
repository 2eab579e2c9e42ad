package auth

type Role struct {
	Name string `json:"name"`
}

type AuthenticationSource struct {
	Provider string `json:"provider"`
}

// User is the authenticated caller attached to the request context.
type User struct {
	Username             string               `json:"username"`
	AuthenticationSource AuthenticationSource `json:"authenticationSource"`
	Role                 Role                 `json:"role"`
}

// Config selects how assertions are verified. Exactly one of PublicKeyPEM or
// HMACSecret enables verification; with neither, only the dev bypass can
// authenticate.
type Config struct {
	CookieName   string
	PublicKeyPEM []byte
	HMACSecret   []byte
	Issuer       string
	Audience     string
	Leeway       int // seconds
	AdminRole    string
	DevBypass    bool
}
