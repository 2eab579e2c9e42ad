package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"github.com/joeydtaylor/steeze-ssr/pkg/core"
	"github.com/joeydtaylor/steeze-ssr/pkg/core/transform"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ssr/pkg/serverfx"
	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
	"go.uber.org/fx"
)

type AddArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type GreetArgs struct {
	Name string `json:"name"`
}

type Greeting struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func add(_ context.Context, in AddArgs) (int, error) { return in.A + in.B, nil }

func greet(ctx context.Context, in GreetArgs) (Greeting, error) {
	if in.Name == "" {
		return Greeting{}, core.Errorf("name_required", "name is required")
	}
	who := in.Name
	if u, ok := auth.UserFromContext(ctx); ok {
		who = u.Username
	}
	return Greeting{Message: "hello, " + who, At: time.Now().UTC()}, nil
}

func whoami(ctx context.Context, _ core.NoArgs) (auth.User, error) {
	u, _ := auth.UserFromContext(ctx)
	return u, nil
}

func init() {
	core.MustFunc("/api/add", add)
	core.MustFunc("/api/greet", greet, core.WithMethod(core.MethodGet))
	core.MustFunc("/api/whoami", whoami, core.WithOutput(codec.MsgPack))

	transform.Register("/api/greet", "trim", func(in GreetArgs) (GreetArgs, error) {
		in.Name = strings.TrimSpace(in.Name)
		return in, nil
	})
}

type stats struct {
	Functions int `json:"functions"`
}

func homePage() stream.Page {
	return stream.Page{
		Path: "/",
		Render: func(ctx context.Context, w *stream.Writer) error {
			if _, err := w.WriteString(`<!DOCTYPE html><html><head><title>steeze</title></head><body><h1>steeze</h1>`); err != nil {
				return err
			}
			if _, err := stream.Spawn(w, codec.JSON, "<p>adding…</p>", func(ctx context.Context) (int, error) {
				select {
				case <-time.After(300 * time.Millisecond):
					return add(ctx, AddArgs{A: 2, B: 3})
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}); err != nil {
				return err
			}
			if _, err := stream.Spawn(w, codec.JSON, "<p>counting…</p>", func(context.Context) (stats, error) {
				return stats{Functions: core.Default.Len()}, nil
			}); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, `<footer>rendered %s</footer></body></html>`, time.Now().UTC().Format(time.RFC3339))
			return err
		},
	}
}

func main() {
	fx.New(
		serverfx.Module(serverfx.WithService("steeze-demo")),
		fx.Provide(fx.Annotate(homePage, fx.ResultTags(`group:"pages"`))),
	).Run()
}
