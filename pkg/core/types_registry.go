// core/types_registry.go
package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"github.com/joeydtaylor/steeze-ssr/pkg/core/transform"
)

// NoArgs is the argument type of server functions that take no input. An empty
// body decodes to NoArgs{} under every codec.
type NoArgs = struct{}

type funcConfig struct {
	method       Method
	input        codec.Codec
	output       codec.Codec
	transformers []string
}

type FuncOption func(*funcConfig)

func WithMethod(m Method) FuncOption       { return func(c *funcConfig) { c.method = m } }
func WithInput(cd codec.Codec) FuncOption  { return func(c *funcConfig) { c.input = cd } }
func WithOutput(cd codec.Codec) FuncOption { return func(c *funcConfig) { c.output = cd } }
func WithCodec(cd codec.Codec) FuncOption {
	return func(c *funcConfig) { c.input, c.output = cd, cd }
}
func WithTransformers(names ...string) FuncOption {
	return func(c *funcConfig) { c.transformers = append(c.transformers, names...) }
}

// NewFunc wraps a typed function in a Descriptor. The typed signature is
// captured in the handler closure; decoding and encoding use the codecs fixed
// here. Defaults: POST with JSON both ways; GET reads its arguments with the
// URL codec.
func NewFunc[In, Out any](path string, fn func(context.Context, In) (Out, error), opts ...FuncOption) (*Descriptor, error) {
	if fn == nil {
		return nil, fmt.Errorf("register %s: nil function", path)
	}
	cfg := funcConfig{method: MethodPost}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.input == nil {
		cfg.input = codec.JSON
		if cfg.method == MethodGet {
			cfg.input = codec.URL
		}
	}
	if cfg.output == nil {
		cfg.output = codec.JSON
	}
	if cfg.input.Name() == codec.URL.Name() && reflect.TypeOf((*In)(nil)).Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("register %s: url codec needs a struct argument, got %s", path, reflect.TypeOf((*In)(nil)).Elem())
	}

	var zero In
	_, noArgs := any(zero).(NoArgs)

	var chain atomic.Pointer[[]transform.Transformer[In]]

	d := &Descriptor{
		Path:   path,
		Method: cfg.method,
		Input:  cfg.input,
		Output: cfg.output,
	}
	d.Handler = func(ctx context.Context, body []byte) ([]byte, error) {
		var in In
		if !(noArgs && len(body) == 0) {
			if err := cfg.input.Unmarshal(body, &in); err != nil {
				var de *codec.DecodeError
				if !errors.As(err, &de) {
					err = &codec.DecodeError{Codec: cfg.input.Name(), Err: err}
				}
				return nil, &InputError{Err: err}
			}
		}
		if c := chain.Load(); c != nil {
			var err error
			if in, err = transform.Apply(*c, in); err != nil {
				return nil, &InputError{Err: &codec.DecodeError{Codec: cfg.input.Name(), Err: fmt.Errorf("transform: %w", err)}}
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		b, err := cfg.output.Marshal(out)
		if err != nil {
			return nil, &EncodeError{Codec: cfg.output.Name(), Err: err}
		}
		return b, nil
	}
	d.bindTransforms = func(names []string) error {
		c, err := transform.Resolve[In](path, names)
		if err != nil {
			return err
		}
		chain.Store(&c)
		return nil
	}
	if err := d.UseTransformers(cfg.transformers); err != nil {
		return nil, err
	}
	return d, nil
}

// RegisterFunc builds a typed descriptor and registers it with r.
func RegisterFunc[In, Out any](r *Registry, path string, fn func(context.Context, In) (Out, error), opts ...FuncOption) (*Descriptor, error) {
	d, err := NewFunc(path, fn, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Func registers fn with the Default registry.
func Func[In, Out any](path string, fn func(context.Context, In) (Out, error), opts ...FuncOption) (*Descriptor, error) {
	return RegisterFunc(Default, path, fn, opts...)
}

// MustFunc is Func for init-time registration; a duplicate path panics.
func MustFunc[In, Out any](path string, fn func(context.Context, In) (Out, error), opts ...FuncOption) *Descriptor {
	d, err := Func(path, fn, opts...)
	if err != nil {
		panic(err)
	}
	return d
}
