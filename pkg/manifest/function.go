package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Function carries the deployment policy of one registered server function.
// The function itself is registered in code; the manifest only decorates it.
type Function struct {
	Path         string   `toml:"path"`
	Method       string   `toml:"method"`
	Guard        Guard    `toml:"guard"`
	Policy       Policy   `toml:"policy"`
	Transformers []string `toml:"transformers"`
	Tags         []string `toml:"tags"`
}

// Page carries the policy of a streamed page route.
type Page struct {
	Path   string `toml:"path"`
	Guard  Guard  `toml:"guard"`
	Policy Policy `toml:"policy"`
}

type Guard struct {
	Roles       []string `toml:"roles"`
	Users       []string `toml:"users"`
	RequireAuth bool     `toml:"require_auth"`
}

// Open reports whether the guard lets anonymous callers through.
func (g Guard) Open() bool {
	return !g.RequireAuth && len(g.Users) == 0 && len(g.Roles) == 0
}

type Policy struct {
	TimeoutMS int `toml:"timeout_ms"`
}

var methods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("path is required")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != "/" {
		p = path.Clean(p)
	}
	return p, nil
}

// normalize path/method
func (f *Function) normalize() error {
	p, err := cleanPath(f.Path)
	if err != nil {
		return err
	}
	f.Path = p
	f.Method = strings.ToUpper(strings.TrimSpace(f.Method))
	if f.Method == "" {
		f.Method = "POST"
	}
	for i := range f.Transformers {
		f.Transformers[i] = strings.TrimSpace(f.Transformers[i])
	}
	return nil
}

// validate fields that are independent of global state.
func (f *Function) validate() error {
	if !methods[f.Method] {
		return fmt.Errorf("method %q not supported", f.Method)
	}
	if f.Policy.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	for i, t := range f.Transformers {
		if t == "" {
			return fmt.Errorf("transformers[%d] is empty", i)
		}
	}
	return nil
}

func (p *Page) normalize() error {
	cp, err := cleanPath(p.Path)
	if err != nil {
		return err
	}
	p.Path = cp
	if p.Policy.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	return nil
}
