package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/joeydtaylor/steeze-ssr/pkg/hydration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State of a Driver.
type State int

const (
	Rendering State = iota // render pass still producing markup
	Flushing               // render pass done, resources still pending
	Complete               // End emitted or stream aborted
)

func (s State) String() string {
	switch s {
	case Rendering:
		return "rendering"
	case Flushing:
		return "flushing"
	default:
		return "complete"
	}
}

// Observer receives every emitted chunk (metrics).
type Observer interface {
	ObserveChunk(kind Kind)
}

type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

func WithObserver(o Observer) Option { return func(d *Driver) { d.obs = o } }

// WithBuffer sets how many markup chunks the render pass may run ahead of the
// consumer.
func WithBuffer(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.buffer = n
		}
	}
}

// Driver turns a render pass into a lazy, forward-only chunk sequence. Next
// is meant for a single consumer; Close may be called from anywhere.
type Driver struct {
	ctx    context.Context
	cancel context.CancelFunc
	hc     *hydration.Context
	render RenderFunc
	log    *zap.Logger
	obs    Observer
	buffer int

	out        chan Chunk
	renderDone chan struct{}
	renderErr  error
	group      errgroup.Group
	startOnce  sync.Once
	closeOnce  sync.Once

	announced sync.Map // hydration.ID -> struct{}; placeholder sent or being sent
	types     sync.Map // hydration.ID -> content type

	// consumer-owned
	started  bool
	finished bool
	ended    bool
	emitted  map[hydration.ID]bool
	queue    []hydration.Entry
}

// New prepares a driver for one request. The hydration Context carried by ctx
// is used when present; otherwise a fresh one is attached. Nothing runs until
// the first call to Next.
func New(ctx context.Context, render RenderFunc, opts ...Option) *Driver {
	hc, ok := hydration.FromContext(ctx)
	if !ok {
		ctx, hc = hydration.NewContext(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &Driver{
		ctx:        ctx,
		cancel:     cancel,
		hc:         hc,
		render:     render,
		log:        zap.NewNop(),
		buffer:     16,
		renderDone: make(chan struct{}),
		emitted:    make(map[hydration.ID]bool),
	}
	for _, o := range opts {
		o(d)
	}
	d.out = make(chan Chunk, d.buffer)
	return d
}

// Hydration returns the request's hydration Context.
func (d *Driver) Hydration() *hydration.Context { return d.hc }

func (d *Driver) State() State {
	switch {
	case d.ended:
		return Complete
	case d.finished:
		return Flushing
	default:
		return Rendering
	}
}

func (d *Driver) start() {
	d.startOnce.Do(func() {
		w := &Writer{d: d}
		go func() {
			defer close(d.renderDone)
			defer func() {
				if rec := recover(); rec != nil {
					d.log.Error("render panic", zap.String("render", d.hc.ID()),
						zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
					d.renderErr = fmt.Errorf("render panic: %v", rec)
				}
			}()
			d.renderErr = d.render(d.ctx, w)
		}()
	})
	d.started = true
}

func (d *Driver) send(c Chunk) error {
	select {
	case d.out <- c:
		return nil
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

func (d *Driver) announce(id hydration.ID) { d.announced.Store(id, struct{}{}) }

// Next returns the next chunk. After the End chunk it returns io.EOF. A
// cancelled request yields the context error and no End chunk.
func (d *Driver) Next() (Chunk, error) {
	if d.ended {
		return Chunk{}, io.EOF
	}
	if !d.started {
		d.start()
	}
	for {
		// Markup first: a resolved entry may be waiting on its placeholder.
		select {
		case c := <-d.out:
			return d.emit(c), nil
		default:
		}

		if err := d.ctx.Err(); err != nil {
			d.ended = true
			return Chunk{}, err
		}

		d.queue = append(d.queue, d.hc.Drain()...)
		if len(d.queue) > 0 && d.placed(d.queue[0].ID) {
			e := d.queue[0]
			d.queue = d.queue[1:]
			return d.emit(d.update(e)), nil
		}

		done := d.renderDone
		if !d.finished {
			select {
			case <-d.renderDone:
				d.finished = true
			default:
			}
		}
		if d.finished {
			done = nil
			if len(d.out) > 0 {
				// Everything the render pass wrote goes out before its verdict.
				continue
			}
			if d.renderErr != nil {
				d.ended = true
				if d.ctx.Err() != nil {
					return Chunk{}, d.ctx.Err()
				}
				d.log.Error("render failed", zap.String("render", d.hc.ID()), zap.Error(d.renderErr))
				return Chunk{}, d.renderErr
			}
			if d.hc.IsComplete() {
				// Entries settled between the drain above and this check.
				d.queue = append(d.queue, d.hc.Drain()...)
				if len(d.queue) == 0 && len(d.out) == 0 {
					d.ended = true
					return d.emit(Chunk{Kind: KindEnd}), nil
				}
				continue
			}
		}

		select {
		case c := <-d.out:
			return d.emit(c), nil
		case <-d.hc.Ready():
		case <-done:
		case <-d.ctx.Done():
		}
	}
}

// placed reports whether an update for id may be emitted: its placeholder has
// gone out, or it never had one.
func (d *Driver) placed(id hydration.ID) bool {
	if d.emitted[id] {
		return true
	}
	_, announced := d.announced.Load(id)
	return !announced
}

func (d *Driver) update(e hydration.Entry) Chunk {
	c := Chunk{Kind: KindResourceUpdate, ID: e.ID, Value: e.Value, Err: e.Err}
	if ct, ok := d.types.Load(e.ID); ok {
		c.ContentType = ct.(string)
	}
	return c
}

func (d *Driver) emit(c Chunk) Chunk {
	if c.Kind == KindPlaceholder {
		d.emitted[c.ID] = true
	}
	if d.obs != nil {
		d.obs.ObserveChunk(c.Kind)
	}
	return c
}

// Close cancels the render pass and every resource computation of this
// request and waits for them to return.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		// A render pass that never started must not start now.
		d.startOnce.Do(func() { close(d.renderDone) })
		<-d.renderDone
		_ = d.group.Wait()
	})
	return nil
}

// IsCancellation reports whether err only signals an abandoned request.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
