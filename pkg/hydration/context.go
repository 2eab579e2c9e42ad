// Package hydration accumulates the resource values resolved during one
// in-flight render so they can be streamed to the client in the order they
// resolved.
//
// A Context belongs to exactly one request. It travels to the goroutines
// working for that request inside their context.Context (see NewContext and
// FromContext) and is never reachable from another request.
package hydration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ID identifies a resource within one Context. IDs are only unique per
// Context; counters of different requests overlap freely.
type ID uint64

var (
	ErrUnknownResource = errors.New("resource was never begun")
	ErrAlreadyResolved = errors.New("resource already resolved")
)

// Entry is one resolved resource. Err is set instead of Value when the
// computation failed.
type Entry struct {
	ID    ID
	Value []byte
	Err   string
}

type state uint8

const (
	statePending state = iota + 1
	stateResolved
)

// Context is the request-scoped hydration accumulator.
type Context struct {
	id string

	mu       sync.Mutex
	next     ID
	states   map[ID]state
	pending  int
	resolved []Entry
	drained  int

	ready chan struct{}
}

func New() *Context {
	return &Context{
		id:     uuid.NewString(),
		states: make(map[ID]state),
		ready:  make(chan struct{}, 1),
	}
}

// ID is a random identifier for log correlation.
func (c *Context) ID() string { return c.id }

// NextID allocates the next resource id of this context.
func (c *Context) NextID() ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

// Begin marks id pending. Beginning an id that is already known is a no-op and
// returns false: the first registration wins.
func (c *Context) Begin(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[id]; ok {
		return false
	}
	c.states[id] = statePending
	c.pending++
	if id > c.next {
		c.next = id
	}
	return true
}

// Resolve records the encoded value of a pending resource.
func (c *Context) Resolve(id ID, value []byte) error {
	return c.settle(Entry{ID: id, Value: value})
}

// Reject records a failed resource so the stream can still complete.
func (c *Context) Reject(id ID, err error) error {
	msg := "resource failed"
	if err != nil {
		msg = err.Error()
	}
	return c.settle(Entry{ID: id, Err: msg})
}

func (c *Context) settle(e Entry) error {
	c.mu.Lock()
	switch c.states[e.ID] {
	case statePending:
	case stateResolved:
		c.mu.Unlock()
		return fmt.Errorf("resource %d: %w", e.ID, ErrAlreadyResolved)
	default:
		c.mu.Unlock()
		return fmt.Errorf("resource %d: %w", e.ID, ErrUnknownResource)
	}
	c.states[e.ID] = stateResolved
	c.pending--
	c.resolved = append(c.resolved, e)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return nil
}

// Drain returns the entries resolved since the previous Drain, in resolution
// order.
func (c *Context) Drain() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained == len(c.resolved) {
		return nil
	}
	out := make([]Entry, len(c.resolved)-c.drained)
	copy(out, c.resolved[c.drained:])
	c.drained = len(c.resolved)
	return out
}

// Resolved returns every entry recorded so far without affecting Drain.
func (c *Context) Resolved() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.resolved...)
}

// IsComplete reports whether no resource is pending.
func (c *Context) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == 0
}

func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Ready is signalled after resolutions. Signals coalesce: one receive may
// stand for several resolutions, so callers Drain after each receive.
func (c *Context) Ready() <-chan struct{} { return c.ready }

type ctxKey struct{}

// NewContext creates a fresh hydration Context bound to ctx.
func NewContext(ctx context.Context) (context.Context, *Context) {
	hc := New()
	return context.WithValue(ctx, ctxKey{}, hc), hc
}

// FromContext returns the hydration Context carried by ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	hc, ok := ctx.Value(ctxKey{}).(*Context)
	return hc, ok
}
