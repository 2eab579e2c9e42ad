package core

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ResultHeader marks every server function response as "ok" or "error" so the
// client can tell a call result from a transport failure.
const ResultHeader = "X-Steeze-Result"

const tracerName = "steeze-ssr"

// Request is the host-independent view of an inbound call.
type Request struct {
	Path   string
	Method string
	Header http.Header
	Body   []byte
}

// Response is what the adapter writes back to the host.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Kind   Kind
}

// Observer receives the outcome of every dispatch (metrics). kind is
// Kind.String().
type Observer interface {
	ObserveDispatch(path, kind string, elapsed time.Duration)
}

// Dispatcher decodes, invokes, and encodes server function calls. A fault in
// one call is converted to a response and never escapes to the caller.
type Dispatcher struct {
	reg    *Registry
	log    *zap.Logger
	tracer trace.Tracer
	obs    Observer
}

type DispatcherOption func(*Dispatcher)

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithObserver(o Observer) DispatcherOption { return func(d *Dispatcher) { d.obs = o } }

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		reg:    reg,
		log:    zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch runs one call end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()

	desc, ok := d.reg.Lookup(req.Path)
	if !ok {
		return d.finish(req.Path, start, d.failure(req.Path, KindNotFound, ErrNotFound))
	}
	if req.Method == http.MethodHead && desc.Method == MethodGet {
		req.Method = http.MethodGet
	}
	if Method(req.Method) != desc.Method {
		resp := d.failure(req.Path, KindMethodNotAllowed, ErrMethodNotAllowed)
		resp.Header.Set("Allow", string(desc.Method))
		return d.finish(req.Path, start, resp)
	}

	ctx, span := d.tracer.Start(ctx, "steeze.serverfn "+desc.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("steeze.path", desc.Path),
			attribute.String("steeze.method", string(desc.Method)),
			attribute.String("steeze.codec.input", desc.Input.Name()),
			attribute.String("steeze.codec.output", desc.Output.Name()),
		),
	)
	defer span.End()

	out, err := invoke(ctx, desc, req.Body)
	if err != nil {
		kind := classify(ctx, err)
		if kind == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("steeze.result", kind.String()))
		return d.finish(req.Path, start, d.failure(req.Path, kind, err))
	}

	span.SetStatus(codes.Ok, "")
	h := http.Header{}
	h.Set("Content-Type", desc.Output.ContentType())
	h.Set(ResultHeader, "ok")
	return d.finish(req.Path, start, Response{
		Status: http.StatusOK,
		Header: h,
		Body:   out,
		Kind:   KindOK,
	})
}

func invoke(ctx context.Context, desc *Descriptor, body []byte) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return desc.Handler(ctx, body)
}

// classify is Classify, except that a fault surfacing after the request
// context ended is attributed to that ending.
func classify(ctx context.Context, err error) Kind {
	kind := Classify(err)
	if kind != KindInternal {
		return kind
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return KindCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	}
	return kind
}

// Fail builds the error response for a call rejected before dispatch (guard,
// body limit, unmatched path).
func (d *Dispatcher) Fail(ctx context.Context, path string, err error) Response {
	return d.failure(path, classify(ctx, err), err)
}

func (d *Dispatcher) failure(path string, kind Kind, err error) Response {
	status := kind.Status()
	body := ErrorBody{Kind: kind.String(), Message: err.Error()}

	switch kind {
	case KindApplication:
		var ae *AppError
		if errors.As(err, &ae) {
			body.Code, body.Message, body.Data = ae.Code, ae.Message, ae.Data
			if ae.Status > 0 {
				status = ae.Status
			}
		}
		d.log.Debug("server function application error", zap.String("path", path), zap.Error(err))
	case KindBadRequest:
		d.log.Debug("server function decode failed", zap.String("path", path), zap.Error(err))
	case KindCancelled:
		body.Message = "cancelled"
	case KindTimeout:
		body.Message = "deadline exceeded"
		d.log.Warn("server function timed out", zap.String("path", path))
	case KindInternal:
		body.Message = ErrInternal.Error()
		fields := []zap.Field{zap.String("path", path), zap.Error(err)}
		var pe *PanicError
		if errors.As(err, &pe) {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}
		d.log.Error("server function failed", fields...)
	}

	raw, mErr := codec.JSON.Marshal(body)
	if mErr != nil {
		d.log.Error("error body encode failed", zap.String("path", path), zap.Error(mErr))
		kind, status = KindInternal, http.StatusInternalServerError
		raw, _ = codec.JSON.Marshal(ErrorBody{Kind: kind.String(), Message: ErrInternal.Error()})
	}

	h := http.Header{}
	h.Set("Content-Type", codec.JSON.ContentType())
	h.Set(ResultHeader, "error")
	return Response{Status: status, Header: h, Body: raw, Kind: kind}
}

func (d *Dispatcher) finish(path string, start time.Time, resp Response) Response {
	if d.obs != nil {
		d.obs.ObserveDispatch(path, resp.Kind.String(), time.Since(start))
	}
	return resp
}
