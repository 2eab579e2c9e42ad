package core

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type searchArgs struct {
	Q string `json:"q"`
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds map[string][]string
}

func (o *recordingObserver) ObserveDispatch(path, kind string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.kinds == nil {
		o.kinds = map[string][]string{}
	}
	o.kinds[path] = append(o.kinds[path], kind)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	must := func(_ *Descriptor, err error) { require.NoError(t, err) }

	must(RegisterFunc(reg, "/api/add", func(_ context.Context, in addArgs) (int, error) {
		return in.A + in.B, nil
	}))
	must(RegisterFunc(reg, "/api/search", func(_ context.Context, in searchArgs) ([]string, error) {
		return []string{in.Q}, nil
	}, WithMethod(MethodGet)))
	must(RegisterFunc(reg, "/api/ping", func(context.Context, NoArgs) (string, error) {
		return "pong", nil
	}))
	must(RegisterFunc(reg, "/api/reserve", func(context.Context, NoArgs) (int, error) {
		return 0, &AppError{Code: "out_of_stock", Message: "no widgets left", Data: map[string]int{"available": 0}}
	}))
	must(RegisterFunc(reg, "/api/teapot", func(context.Context, NoArgs) (int, error) {
		return 0, &AppError{Code: "teapot", Message: "short and stout", Status: http.StatusTeapot}
	}))
	must(RegisterFunc(reg, "/api/panic", func(context.Context, NoArgs) (int, error) {
		panic("secret detail")
	}))
	must(RegisterFunc(reg, "/api/unencodable", func(context.Context, NoArgs) (chan int, error) {
		return make(chan int), nil
	}))
	must(RegisterFunc(reg, "/api/wait", func(ctx context.Context, _ NoArgs) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}))
	return reg
}

func decodeBody(t *testing.T, resp Response) ErrorBody {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "error", resp.Header.Get(ResultHeader))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body
}

func post(path, body string) Request {
	return Request{Path: path, Method: http.MethodPost, Body: []byte(body)}
}

func TestDispatchAdd(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), post("/api/add", `{"a":2,"b":3}`))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, KindOK, resp.Kind)
	assert.Equal(t, "5", string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", resp.Header.Get(ResultHeader))
}

func TestDispatchDecodeErrorIsBadRequest(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	for _, body := range []string{`{"a":"x"}`, `{"a":`, `{"c":1}`, ``} {
		resp := d.Dispatch(context.Background(), post("/api/add", body))
		assert.Equal(t, http.StatusBadRequest, resp.Status, body)
		assert.Equal(t, KindBadRequest, resp.Kind, body)
		eb := decodeBody(t, resp)
		assert.Equal(t, "bad_request", eb.Kind)
		assert.Contains(t, eb.Message, "json decode")
	}
}

func TestHandlerDecodeFailureIsInternal(t *testing.T) {
	reg := NewRegistry()
	_, err := RegisterFunc(reg, "/api/profile", func(context.Context, NoArgs) (addArgs, error) {
		var stored addArgs
		err := codec.JSON.Unmarshal([]byte(`{"a":"corrupt"}`), &stored)
		return stored, err
	})
	require.NoError(t, err)

	resp := NewDispatcher(reg).Dispatch(context.Background(), post("/api/profile", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, KindInternal, resp.Kind)
	eb := decodeBody(t, resp)
	assert.Equal(t, "internal error", eb.Message)
}

func TestDispatchNotFound(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), post("/api/nope", `{}`))
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, KindNotFound, resp.Kind)
	assert.Equal(t, "not_found", decodeBody(t, resp).Kind)
}

func TestDispatchMethodNotAllowed(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), Request{Path: "/api/add", Method: http.MethodGet})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Equal(t, "POST", resp.Header.Get("Allow"))
	assert.Equal(t, "method_not_allowed", decodeBody(t, resp).Kind)
}

func TestDispatchGetReadsQuery(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), Request{Path: "/api/search", Method: http.MethodGet, Body: []byte("q=go+streams")})
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	assert.Equal(t, `["go streams"]`, string(resp.Body))

	resp = d.Dispatch(context.Background(), Request{Path: "/api/search", Method: http.MethodHead, Body: []byte("q=x")})
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatchNoArgs(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), post("/api/ping", ""))
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `"pong"`, string(resp.Body))

	resp = d.Dispatch(context.Background(), post("/api/ping", "{}"))
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatchApplicationError(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), post("/api/reserve", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, KindApplication, resp.Kind)
	eb := decodeBody(t, resp)
	assert.Equal(t, "application", eb.Kind)
	assert.Equal(t, "out_of_stock", eb.Code)
	assert.Equal(t, "no widgets left", eb.Message)
	assert.Equal(t, map[string]any{"available": float64(0)}, eb.Data)

	resp = d.Dispatch(context.Background(), post("/api/teapot", ""))
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "teapot", decodeBody(t, resp).Code)
}

func TestDispatchPanicIsContained(t *testing.T) {
	obsCore, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(testRegistry(t), WithLogger(zap.New(obsCore)))

	resp := d.Dispatch(context.Background(), post("/api/panic", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, KindInternal, resp.Kind)
	eb := decodeBody(t, resp)
	assert.Equal(t, "internal error", eb.Message)
	assert.NotContains(t, string(resp.Body), "secret detail")

	entries := logs.FilterMessage("server function failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/panic", fields["path"])
	assert.Contains(t, fields, "stack")

	// The dispatcher keeps serving after a panic.
	resp = d.Dispatch(context.Background(), post("/api/add", `{"a":1,"b":1}`))
	assert.Equal(t, "2", string(resp.Body))
}

func TestDispatchEncodeFailureIsInternal(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	resp := d.Dispatch(context.Background(), post("/api/unencodable", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, KindInternal, resp.Kind)
}

func TestDispatchCancelled(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	d := NewDispatcher(testRegistry(t), WithLogger(zap.New(obsCore)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := d.Dispatch(ctx, post("/api/wait", ""))
	assert.Equal(t, StatusClientClosed, resp.Status)
	assert.Equal(t, KindCancelled, resp.Kind)
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestDispatchDeadline(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	resp := d.Dispatch(ctx, post("/api/wait", ""))
	assert.Equal(t, http.StatusGatewayTimeout, resp.Status)
	assert.Equal(t, "timeout", decodeBody(t, resp).Kind)
}

func TestDispatchObserver(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(testRegistry(t), WithObserver(obs))

	d.Dispatch(context.Background(), post("/api/add", `{"a":1,"b":2}`))
	d.Dispatch(context.Background(), post("/api/add", `nope`))
	d.Dispatch(context.Background(), post("/api/missing", ``))

	assert.Equal(t, []string{"ok", "bad_request"}, obs.kinds["/api/add"])
	assert.Equal(t, []string{"not_found"}, obs.kinds["/api/missing"])
}

func TestDispatchConcurrent(t *testing.T) {
	d := NewDispatcher(testRegistry(t))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(addArgs{A: i, B: i})
			resp := d.Dispatch(context.Background(), post("/api/add", string(body)))
			var n int
			if assert.NoError(t, json.Unmarshal(resp.Body, &n)) {
				assert.Equal(t, 2*i, n)
			}
		}(i)
	}
	wg.Wait()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindOK},
		{ErrNotFound, KindNotFound},
		{ErrUnauthorized, KindUnauthorized},
		{ErrForbidden, KindForbidden},
		{ErrBodyTooLarge, KindTooLarge},
		{Errorf("x", "y %d", 1), KindApplication},
		{context.Canceled, KindCancelled},
		{context.DeadlineExceeded, KindTimeout},
		{&EncodeError{Codec: "json"}, KindInternal},
		{&PanicError{Value: 1}, KindInternal},
		{&codec.DecodeError{Codec: "json"}, KindInternal},
		{&InputError{Err: &codec.DecodeError{Codec: "json"}}, KindBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "y 1", Errorf("x", "y %d", 1).Message)
}
