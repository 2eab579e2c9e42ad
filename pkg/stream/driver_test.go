package stream_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"github.com/joeydtaylor/steeze-ssr/pkg/core"
	"github.com/joeydtaylor/steeze-ssr/pkg/hydration"
	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func collect(t *testing.T, d *stream.Driver) ([]stream.Chunk, error) {
	t.Helper()
	var out []stream.Chunk
	for {
		c, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
		if len(out) > 1000 {
			t.Fatal("stream did not terminate")
		}
	}
}

func kinds(chunks []stream.Chunk) []stream.Kind {
	out := make([]stream.Kind, len(chunks))
	for i, c := range chunks {
		out[i] = c.Kind
	}
	return out
}

func indexOf(chunks []stream.Chunk, kind stream.Kind, id hydration.ID) int {
	for i, c := range chunks {
		if c.Kind == kind && c.ID == id {
			return i
		}
	}
	return -1
}

func TestMarkupOnly(t *testing.T) {
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("<html>")
		_, _ = w.WriteString("</html>")
		return nil
	})
	defer d.Close()

	chunks, err := collect(t, d)
	require.NoError(t, err)
	require.Equal(t, []stream.Kind{stream.KindMarkup, stream.KindMarkup, stream.KindEnd}, kinds(chunks))
	assert.Equal(t, "<html>", string(chunks[0].Markup))
	assert.Equal(t, "</html>", string(chunks[1].Markup))

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, stream.Complete, d.State())
}

func TestIsLazy(t *testing.T) {
	var ran atomic.Bool
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		ran.Store(true)
		_, _ = w.WriteString("x")
		return nil
	})
	defer d.Close()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Equal(t, stream.Rendering, d.State())

	c, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, stream.KindMarkup, c.Kind)
	assert.True(t, ran.Load())
}

func TestUpdatesFollowResolutionOrder(t *testing.T) {
	gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{}), 3: make(chan struct{})}

	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("head")
		for i := 1; i <= 3; i++ {
			gate := gates[i]
			v := i * 10
			if _, err := stream.Spawn(w, codec.JSON, fmt.Sprintf("loading %d", i), func(ctx context.Context) (int, error) {
				select {
				case <-gate:
					return v, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}); err != nil {
				return err
			}
		}
		_, _ = w.WriteString("tail")
		return nil
	})
	defer d.Close()

	go func() {
		hc := d.Hydration()
		for n, i := range []int{3, 1, 2} {
			close(gates[i])
			for len(hc.Resolved()) < n+1 {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	chunks, err := collect(t, d)
	require.NoError(t, err)

	var updates []hydration.ID
	var values []string
	var markup []string
	for _, c := range chunks {
		switch c.Kind {
		case stream.KindResourceUpdate:
			updates = append(updates, c.ID)
			values = append(values, string(c.Value))
			assert.Equal(t, "application/json", c.ContentType)
		case stream.KindMarkup:
			markup = append(markup, string(c.Markup))
		}
	}
	assert.Equal(t, []hydration.ID{3, 1, 2}, updates)
	assert.Equal(t, []string{"30", "10", "20"}, values)
	assert.Equal(t, []string{"head", "tail"}, markup)

	for _, id := range []hydration.ID{1, 2, 3} {
		p := indexOf(chunks, stream.KindPlaceholder, id)
		u := indexOf(chunks, stream.KindResourceUpdate, id)
		require.GreaterOrEqual(t, p, 0, "placeholder %d", id)
		assert.Less(t, p, u, "placeholder %d precedes its update", id)
		assert.Equal(t, fmt.Sprintf("loading %d", id), string(chunks[p].Markup))
	}

	assert.Equal(t, stream.KindEnd, chunks[len(chunks)-1].Kind)
	assert.Equal(t, 1, countKind(chunks, stream.KindEnd))
}

func countKind(chunks []stream.Chunk, k stream.Kind) int {
	n := 0
	for _, c := range chunks {
		if c.Kind == k {
			n++
		}
	}
	return n
}

func TestFailuresBecomeRejections(t *testing.T) {
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		if _, err := stream.Spawn(w, nil, "", func(context.Context) (string, error) {
			return "", errors.New("boom")
		}); err != nil {
			return err
		}
		_, err := stream.Spawn(w, nil, "", func(context.Context) (string, error) {
			panic("kaboom")
		})
		return err
	})
	defer d.Close()

	chunks, err := collect(t, d)
	require.NoError(t, err)

	failed := indexOf(chunks, stream.KindResourceUpdate, 1)
	panicked := indexOf(chunks, stream.KindResourceUpdate, 2)
	require.GreaterOrEqual(t, failed, 0)
	require.GreaterOrEqual(t, panicked, 0)
	assert.Equal(t, "internal error", chunks[failed].Err)
	assert.Equal(t, "internal error", chunks[panicked].Err)
	assert.Nil(t, chunks[panicked].Value)
	assert.Equal(t, stream.KindEnd, chunks[len(chunks)-1].Kind)
}

func TestRejectionsHideInternalDetail(t *testing.T) {
	const leak = `pq: password authentication failed for user "admin" at 10.0.0.3:5432`
	obsCore, logs := observer.New(zap.WarnLevel)

	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		spawns := []func() error{
			func() error {
				_, err := stream.Spawn(w, nil, "", func(context.Context) (int, error) { return 0, errors.New(leak) })
				return err
			},
			func() error {
				_, err := stream.Spawn(w, nil, "", func(context.Context) (func(), error) { return func() {}, nil })
				return err
			},
			func() error {
				_, err := stream.Spawn(w, nil, "", func(context.Context) (int, error) {
					return 0, fmt.Errorf("loading cart: %w", stream.Errorf("cart is empty"))
				})
				return err
			},
			func() error {
				_, err := stream.Spawn(w, nil, "", func(context.Context) (int, error) {
					return 0, core.Errorf("out_of_stock", "no widgets left")
				})
				return err
			},
		}
		for _, spawn := range spawns {
			if err := spawn(); err != nil {
				return err
			}
		}
		return nil
	}, stream.WithLogger(zap.New(obsCore)))
	defer d.Close()

	chunks, err := collect(t, d)
	require.NoError(t, err)

	rejection := func(id hydration.ID) string {
		i := indexOf(chunks, stream.KindResourceUpdate, id)
		require.GreaterOrEqual(t, i, 0, "update %d", id)
		return chunks[i].Err
	}
	assert.Equal(t, "internal error", rejection(1))
	assert.Equal(t, "internal error", rejection(2))
	assert.Equal(t, "cart is empty", rejection(3))
	assert.Equal(t, "out_of_stock: no widgets left", rejection(4))

	page := string(stream.HTMLEncoder{}.Encode(chunks[indexOf(chunks, stream.KindResourceUpdate, 1)]))
	assert.NotContains(t, page, "password")

	failed := logs.FilterMessage("resource failed").All()
	require.NotEmpty(t, failed)
	var logged []string
	for _, e := range failed {
		logged = append(logged, e.ContextMap()["error"].(string))
	}
	assert.Contains(t, logged, leak)
	assert.Len(t, logs.FilterMessage("resource encode failed").All(), 1)
}

func TestNestedSpawn(t *testing.T) {
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, err := stream.Spawn(w, nil, "outer", func(context.Context) (string, error) {
			if _, err := stream.Spawn(w, nil, "inner", func(context.Context) (string, error) {
				return "inner", nil
			}); err != nil {
				return "", err
			}
			return "outer", nil
		})
		return err
	})
	defer d.Close()

	chunks, err := collect(t, d)
	require.NoError(t, err)
	assert.Equal(t, 2, countKind(chunks, stream.KindResourceUpdate))
	inner := indexOf(chunks, stream.KindPlaceholder, 2)
	require.GreaterOrEqual(t, inner, 0)
	assert.Less(t, inner, indexOf(chunks, stream.KindResourceUpdate, 2))
	assert.Equal(t, stream.KindEnd, chunks[len(chunks)-1].Kind)
}

func TestRenderErrorHasNoEnd(t *testing.T) {
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("x")
		return errors.New("render broke")
	})
	defer d.Close()

	chunks, err := collect(t, d)
	require.EqualError(t, err, "render broke")
	require.Len(t, chunks, 1)
	assert.Equal(t, "x", string(chunks[0].Markup))
	assert.Equal(t, stream.Complete, d.State())

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRenderPanic(t *testing.T) {
	d := stream.New(context.Background(), func(context.Context, *stream.Writer) error {
		panic("render exploded")
	})
	defer d.Close()

	_, err := collect(t, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render exploded")
}

func TestCancellationStopsResourceWork(t *testing.T) {
	started := make(chan struct{})
	var stopped atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := stream.New(ctx, func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("a")
		_, err := stream.Spawn(w, nil, "", func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			stopped.Store(true)
			return 0, ctx.Err()
		})
		return err
	})

	sibling := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, err := stream.Spawn(w, nil, "", func(context.Context) (int, error) { return 1, nil })
		return err
	})
	defer sibling.Close()

	go func() {
		<-started
		cancel()
	}()

	chunks, err := collect(t, d)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countKind(chunks, stream.KindEnd))
	require.NoError(t, d.Close())
	assert.True(t, stopped.Load())
	assert.Empty(t, d.Hydration().Resolved())

	sibChunks, err := collect(t, sibling)
	require.NoError(t, err)
	assert.Equal(t, stream.KindEnd, sibChunks[len(sibChunks)-1].Kind)
	assert.Equal(t, 1, countKind(sibChunks, stream.KindResourceUpdate))
}

func TestCloseBeforeNext(t *testing.T) {
	var ran atomic.Bool
	d := stream.New(context.Background(), func(context.Context, *stream.Writer) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestCloseMidStream(t *testing.T) {
	started := make(chan struct{})
	var stopped atomic.Bool
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("first")
		_, err := stream.Spawn(w, nil, "", func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			stopped.Store(true)
			return 0, ctx.Err()
		})
		return err
	})

	c, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", string(c.Markup))

	<-started
	require.NoError(t, d.Close())
	_, err = collect(t, d)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stopped.Load())
}

func TestUnbufferedDriver(t *testing.T) {
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		for i := 0; i < 5; i++ {
			if _, err := fmt.Fprintf(w, "%d", i); err != nil {
				return err
			}
		}
		return nil
	}, stream.WithBuffer(0))
	defer d.Close()

	chunks, err := collect(t, d)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprint(i), string(chunks[i].Markup))
	}
}

func TestUsesCarriedHydrationContext(t *testing.T) {
	ctx, hc := hydration.NewContext(context.Background())
	d := stream.New(ctx, func(context.Context, *stream.Writer) error { return nil })
	defer d.Close()
	assert.Same(t, hc, d.Hydration())
}

type chunkCounter struct{ n map[stream.Kind]int }

func (c *chunkCounter) ObserveChunk(k stream.Kind) { c.n[k]++ }

func TestObserver(t *testing.T) {
	obs := &chunkCounter{n: map[stream.Kind]int{}}
	d := stream.New(context.Background(), func(_ context.Context, w *stream.Writer) error {
		_, _ = w.WriteString("x")
		_, err := stream.Spawn(w, nil, "", func(context.Context) (int, error) { return 1, nil })
		return err
	}, stream.WithObserver(obs))
	defer d.Close()

	_, err := collect(t, d)
	require.NoError(t, err)
	assert.Equal(t, map[stream.Kind]int{
		stream.KindMarkup:         1,
		stream.KindPlaceholder:    1,
		stream.KindResourceUpdate: 1,
		stream.KindEnd:            1,
	}, obs.n)
}
