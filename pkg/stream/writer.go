package stream

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"github.com/joeydtaylor/steeze-ssr/pkg/hydration"
	"go.uber.org/zap"
)

// RenderFunc is the render pass. It writes markup to w and spawns resources
// through Spawn; it must honour ctx cancellation.
type RenderFunc func(ctx context.Context, w *Writer) error

// Writer is handed to the render pass and to resource computations of one
// request. It is safe for concurrent use.
type Writer struct {
	d *Driver
}

// Context returns the request context, carrying the hydration Context.
func (w *Writer) Context() context.Context { return w.d.ctx }

func (w *Writer) Hydration() *hydration.Context { return w.d.hc }

// Write emits a Markup chunk. p is copied.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b := append([]byte(nil), p...)
	if err := w.d.send(Chunk{Kind: KindMarkup, Markup: b}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Suspend allocates a resource id, marks it pending, and emits its
// Placeholder immediately. The caller settles it later through Hydration().
func (w *Writer) Suspend(fallback string) (hydration.ID, error) {
	id := w.d.hc.NextID()
	w.d.hc.Begin(id)
	w.d.announce(id)
	if err := w.d.send(Chunk{Kind: KindPlaceholder, ID: id, Markup: []byte(fallback)}); err != nil {
		return 0, err
	}
	return id, nil
}

// Spawn suspends on a resource and computes it on a goroutine owned by the
// request. The value is encoded with c and recorded in resolution order; a
// failed or panicking computation is recorded as a rejection. Nothing is
// recorded once the request is cancelled.
func Spawn[T any](w *Writer, c codec.Codec, fallback string, fn func(context.Context) (T, error)) (hydration.ID, error) {
	if c == nil {
		c = codec.JSON
	}
	id, err := w.Suspend(fallback)
	if err != nil {
		return 0, err
	}
	d := w.d
	d.types.Store(id, c.ContentType())
	d.group.Go(func() error {
		v, err := run(d.ctx, fn)
		if d.ctx.Err() != nil {
			return nil
		}
		var settleErr error
		var pe *panicError
		if errors.As(err, &pe) {
			d.log.Error("resource panic", zap.String("render", d.hc.ID()), zap.Uint64("resource", uint64(id)),
				zap.Any("panic", pe.value), zap.ByteString("stack", pe.stack))
			settleErr = d.hc.Reject(id, errInternal)
		} else if err != nil {
			d.log.Warn("resource failed", zap.String("render", d.hc.ID()), zap.Uint64("resource", uint64(id)), zap.Error(err))
			settleErr = d.hc.Reject(id, clientError(err))
		} else if b, mErr := c.Marshal(v); mErr != nil {
			d.log.Error("resource encode failed", zap.String("render", d.hc.ID()), zap.Uint64("resource", uint64(id)), zap.Error(mErr))
			settleErr = d.hc.Reject(id, errInternal)
		} else {
			settleErr = d.hc.Resolve(id, b)
		}
		if settleErr != nil {
			d.log.Error("resource settle refused", zap.String("render", d.hc.ID()), zap.Error(settleErr))
		}
		return nil
	})
	return id, nil
}

// Public is an error whose message may be shown to the client when a
// resource is rejected. core.AppError is one; Errorf builds another. Every
// other failure reaches the client as "internal error" and is only logged.
type Public interface {
	error
	PublicMessage() string
}

// Errorf returns a resource error whose message is streamed to the client.
func Errorf(format string, args ...any) error {
	return publicError(fmt.Sprintf(format, args...))
}

type publicError string

func (e publicError) Error() string         { return string(e) }
func (e publicError) PublicMessage() string { return string(e) }

var errInternal = errors.New("internal error")

func clientError(err error) error {
	var p Public
	if errors.As(err, &p) {
		return errors.New(p.PublicMessage())
	}
	return errInternal
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("resource panic: %v", e.value) }

func run[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
