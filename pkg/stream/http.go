package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Page is a streamed route.
type Page struct {
	Path   string
	Render RenderFunc
}

// WriteHTTP forwards the driver's chunks to w in emission order, flushing
// after every chunk. The driver is closed on return. A cancelled request
// returns nil; a deadline that expires before any output answers 504.
func WriteHTTP(w http.ResponseWriter, d *Driver, enc Encoder) error {
	if enc == nil {
		enc = HTMLEncoder{}
	}
	defer d.Close()

	flusher, _ := w.(http.Flusher)
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")

	var buf []byte
	wrote := false
	for {
		c, err := d.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if IsCancellation(err) {
				return nil
			}
			if !wrote {
				if errors.Is(err, context.DeadlineExceeded) {
					http.Error(w, "deadline exceeded", http.StatusGatewayTimeout)
				} else {
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}
			return err
		}
		if !wrote {
			w.WriteHeader(http.StatusOK)
			wrote = true
		}
		buf = enc.AppendChunk(buf[:0], c)
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Handler serves render as a streamed page, one Driver per request.
func Handler(render RenderFunc, opts ...Option) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WriteHTTP(w, New(r.Context(), render, opts...), HTMLEncoder{})
	})
}
