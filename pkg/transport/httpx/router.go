// Package httpx hides the HTTP router behind the few calls the server wiring
// makes.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router is the HTTP router contract the server wiring depends on. NewChi
// implements it.
type Router interface {
	// Any routes every method on path to h; method checks stay with h.
	Any(path string, h http.Handler)
	Get(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Mux() http.Handler
}

type chiRouter struct{ mux *chi.Mux }

// NewChi returns a Router backed by github.com/go-chi/chi/v5.
func NewChi() Router { return &chiRouter{mux: chi.NewRouter()} }

func (c *chiRouter) Any(path string, h http.Handler) { c.mux.Handle(path, h) }

// Get also answers HEAD.
func (c *chiRouter) Get(path string, h http.Handler) {
	c.mux.Method(http.MethodGet, path, h)
	c.mux.Method(http.MethodHead, path, h)
}

func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.mux.Use(mw...) }
func (c *chiRouter) Mux() http.Handler                         { return c.mux }
