package logger

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// maxLoggedBody caps what is buffered for the access log.
const maxLoggedBody = 1 << 16 // 64 KiB

var (
	bodyLogMu    sync.RWMutex
	bodyLogPaths = map[string]struct{}{}
)

// AddBodyLogPaths extends the allowlist. Server functions tagged "log_body" in
// the manifest are added at startup.
func AddBodyLogPaths(paths ...string) {
	bodyLogMu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			bodyLogPaths[p] = struct{}{}
		}
	}
	bodyLogMu.Unlock()
}

// wantBody reports whether r is an allowlisted JSON write. Only those bodies
// are buffered, so other requests stream untouched to their handler.
func wantBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return false
	}
	if r.ContentLength > maxLoggedBody {
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	bodyLogMu.RLock()
	_, ok := bodyLogPaths[r.URL.Path]
	bodyLogMu.RUnlock()
	return ok
}

// peekBody reads up to maxLoggedBody bytes and puts them back in front of the
// rest of the body. ok is false when the body was larger than the cap.
func peekBody(r *http.Request) (body []byte, ok bool) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = readCloser{io.MultiReader(bytes.NewReader(b), r.Body), r.Body}
	if err != nil || len(b) == 0 || len(b) > maxLoggedBody {
		return nil, false
	}
	return b, true
}

type readCloser struct {
	io.Reader
	io.Closer
}
