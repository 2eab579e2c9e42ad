package core

import (
	"errors"
	"io"
	"net/http"
)

// ExtractRequest converts an inbound HTTP request. GET arguments travel in the
// raw query string; other methods read at most maxBody bytes of body.
func ExtractRequest(r *http.Request, maxBody int64) (Request, error) {
	req := Request{Path: r.URL.Path, Method: r.Method, Header: r.Header}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		req.Body = []byte(r.URL.RawQuery)
		return req, nil
	}
	if r.Body == nil {
		return req, nil
	}
	if maxBody > 0 && r.ContentLength > maxBody {
		return req, ErrBodyTooLarge
	}
	var src io.Reader = r.Body
	if maxBody > 0 {
		src = io.LimitReader(r.Body, maxBody+1)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, ErrBodyTooLarge
		}
		return req, err
	}
	if maxBody > 0 && int64(len(b)) > maxBody {
		return req, ErrBodyTooLarge
	}
	req.Body = b
	return req, nil
}

// WriteResponse copies resp to w.
func WriteResponse(w http.ResponseWriter, resp Response) {
	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusIf(resp.Status, http.StatusOK))
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func statusIf(s, def int) int {
	if s > 0 {
		return s
	}
	return def
}
