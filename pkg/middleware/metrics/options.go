package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// labels decides which requests are counted and how their uri label reads.
var labels = struct {
	sync.RWMutex
	skip      map[string]struct{}
	normalize func(*http.Request) string
}{
	skip:      map[string]struct{}{"/metrics": {}, "/ping": {}},
	normalize: routePattern,
}

// AddMetricsSkipPaths extends the skip list (default: /metrics and /ping).
func AddMetricsSkipPaths(paths ...string) {
	labels.Lock()
	defer labels.Unlock()
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			labels.skip[p] = struct{}{}
		}
	}
}

// SetPathNormalizer replaces how the uri label is derived.
func SetPathNormalizer(fn func(*http.Request) string) {
	if fn == nil {
		return
	}
	labels.Lock()
	labels.normalize = fn
	labels.Unlock()
}

// routePattern labels a request by the chi pattern it matched. Requests that
// matched nothing, or only a catch-all, share one label.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.HasSuffix(p, "/*") {
			return p
		}
	}
	return unmatched
}

func isSkipPath(r *http.Request) bool {
	labels.RLock()
	defer labels.RUnlock()
	_, ok := labels.skip[r.URL.Path]
	return ok
}

func normalizePath(r *http.Request) string {
	labels.RLock()
	fn := labels.normalize
	labels.RUnlock()
	return fn(r)
}
