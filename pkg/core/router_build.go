package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-ssr/pkg/manifest"
	hmetrics "github.com/joeydtaylor/steeze-ssr/pkg/middleware/metrics"
)

// BuildRouter mounts middleware, /metrics, every registered server function,
// a structured fallback under the function prefix, and every page.
func BuildRouter(cfg manifest.Config, d BuildDeps) http.Handler {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))

	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(d.Auth))
		}
		// metrics collector that references auth state without copying it
		r.Use(hmetrics.Collect(d.Auth))
	} else {
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(nil))
		}
		r.Use(hmetrics.Collect(nil))
	}

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}

	maxBody := cfg.Server.MaxBodyBytes
	for _, desc := range d.Registry.Descriptors() {
		h := wrapFunction(desc, maxBody, d)
		if f, ok := cfg.Function(desc.Path); ok {
			h = withTimeout(h, timeoutOf(f.Policy.TimeoutMS))
			h = withGuard(h, d.Auth, f.Guard, denyFunction(d, desc.Path))
		}
		r.Any(desc.Path, h)
	}
	if p := cfg.Server.FunctionPrefix; p != "" {
		if _, taken := d.Registry.Lookup(p); !taken {
			r.Any(p, unmatchedFunction(d))
		}
		r.Any(p+"/*", unmatchedFunction(d))
	}

	for _, pg := range d.Pages {
		h := wrapPage(pg, cfg.Server.StreamBuffer, d)
		if mp, ok := cfg.Page(pg.Path); ok {
			h = withTimeout(h, timeoutOf(mp.Policy.TimeoutMS))
			h = withGuard(h, d.Auth, mp.Guard, denyPage)
		}
		r.Get(pg.Path, h)
	}
	return r.Mux()
}
