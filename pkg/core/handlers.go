// core/handlers.go
package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
)

// Handler is the type-erased entry point of a server function: encoded
// arguments in, encoded result out.
type Handler func(ctx context.Context, in []byte) (out []byte, err error)

// Method is the HTTP method a server function is reachable with.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod normalizes s; empty means POST.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return MethodPost, nil
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported method %q", s)
	}
}

// Descriptor is the immutable metadata and handler for one server function.
type Descriptor struct {
	Path    string
	Method  Method
	Input   codec.Codec
	Output  codec.Codec
	Handler Handler

	// set by RegisterFunc; binds named input transformers for the captured type
	bindTransforms func(names []string) error
}

// UseTransformers binds named input transformers. Only valid before the
// registry is sealed.
func (d *Descriptor) UseTransformers(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if d.bindTransforms == nil {
		return fmt.Errorf("%s: transformers need a typed registration", d.Path)
	}
	return d.bindTransforms(names)
}

// Registry maps paths to descriptors. Registration may race during process
// start; lookups afterwards never contend with each other.
type Registry struct {
	m      sync.Map // path -> *Descriptor
	n      atomic.Int64
	sealed atomic.Bool
}

func NewRegistry() *Registry { return &Registry{} }

// Default is the process-wide registry populated from init functions.
var Default = NewRegistry()

// Register adds d. A second descriptor for the same path is rejected, never
// overwritten.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Handler == nil {
		return fmt.Errorf("register: descriptor and handler required")
	}
	if d.Path == "" || !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("register: path %q must start with /", d.Path)
	}
	if d.Input == nil || d.Output == nil {
		return fmt.Errorf("register %s: input and output codecs required", d.Path)
	}
	if r.sealed.Load() {
		return fmt.Errorf("register %s: %w", d.Path, ErrSealed)
	}
	if _, loaded := r.m.LoadOrStore(d.Path, d); loaded {
		return fmt.Errorf("register %s: %w", d.Path, ErrDuplicatePath)
	}
	r.n.Add(1)
	return nil
}

// MustRegister panics on error so duplicates stop process bring-up.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup retrieves a descriptor by path.
func (r *Registry) Lookup(path string) (*Descriptor, bool) {
	v, ok := r.m.Load(path)
	if !ok {
		return nil, false
	}
	return v.(*Descriptor), true
}

// Seal ends the initialization phase; later registrations fail with ErrSealed.
func (r *Registry) Seal() { r.sealed.Store(true) }

func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) Len() int { return int(r.n.Load()) }

// Paths returns registered paths in sorted order.
func (r *Registry) Paths() []string {
	out := make([]string, 0, r.Len())
	r.m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// Descriptors returns every descriptor ordered by path.
func (r *Registry) Descriptors() []*Descriptor {
	paths := r.Paths()
	out := make([]*Descriptor, 0, len(paths))
	for _, p := range paths {
		if d, ok := r.Lookup(p); ok {
			out = append(out, d)
		}
	}
	return out
}
