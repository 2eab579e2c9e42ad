package core

import (
	"net/http"

	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
	"go.uber.org/zap"
)

// wrapFunction serves one registered function. Every method reaches the
// dispatcher so a wrong one gets the structured 405.
func wrapFunction(desc *Descriptor, maxBody int64, d BuildDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ExtractRequest(r, maxBody)
		if err != nil {
			WriteResponse(w, d.Dispatcher.Fail(r.Context(), desc.Path, err))
			return
		}
		req.Path = desc.Path
		WriteResponse(w, d.Dispatcher.Dispatch(r.Context(), req))
	}
}

// unmatchedFunction answers any path under the function prefix that no
// function claims.
func unmatchedFunction(d BuildDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, d.Dispatcher.Dispatch(r.Context(), Request{
			Path:   r.URL.Path,
			Method: r.Method,
			Header: r.Header,
		}))
	}
}

func denyFunction(d BuildDeps, path string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		WriteResponse(w, d.Dispatcher.Fail(r.Context(), path, err))
	}
}

// wrapPage streams one page through its own Driver.
func wrapPage(pg stream.Page, buffer int, d BuildDeps) http.HandlerFunc {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := []stream.Option{stream.WithLogger(log), stream.WithBuffer(buffer)}
	if d.Stream != nil {
		opts = append(opts, stream.WithObserver(d.Stream))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		drv := stream.New(r.Context(), pg.Render, opts...)
		if err := stream.WriteHTTP(w, drv, stream.HTMLEncoder{}); err != nil {
			log.Warn("page stream aborted", zap.String("path", pg.Path), zap.Error(err))
		}
	}
}

func denyPage(w http.ResponseWriter, _ *http.Request, err error) {
	kind := Classify(err)
	http.Error(w, http.StatusText(kind.Status()), kind.Status())
}
