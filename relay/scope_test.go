package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay/body"
)

type requestCounter struct {
	n int
}

func countingMiddleware(counter *requestCounter) Middleware {
	return func(next Service) Service {
		return ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
			counter.n++
			return next.Serve(ctx, r)
		})
	}
}

func TestScopeBuildAndDispatch(t *testing.T) {
	counter := &requestCounter{}

	root := NewScope("/")
	root.Use(countingMiddleware(counter))
	api := root.Scope("/api")
	api.Get("/users/{id}", ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
		id, _ := r.PathInfo.Get("id")
		return NewResponse(200).SetBytes([]byte("user:" + id)), nil
	}))

	router, err := Build(root)
	require.NoError(t, err)

	req := &Request{Method: "GET", Target: "/api/users/42", Path: "/api/users/42", Proto: "HTTP/1.1", Header: NewHeader(), Body: body.EOF()}
	resp := Dispatch(context.Background(), router, DefaultErrorHandler(nil), req)

	require.Equal(t, 200, resp.StatusCode)
	data, err := body.ReadAll(context.Background(), resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user:42", string(data))
	assert.Equal(t, 1, counter.n)
}

func TestScopeNotFoundIs404(t *testing.T) {
	root := NewScope("/")
	root.Get("/known", ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
		return NewResponse(200), nil
	}))
	router, err := Build(root)
	require.NoError(t, err)

	req := &Request{Method: "GET", Target: "/unknown", Path: "/unknown", Proto: "HTTP/1.1", Header: NewHeader(), Body: body.EOF()}
	resp := Dispatch(context.Background(), router, DefaultErrorHandler(nil), req)
	assert.Equal(t, 404, resp.StatusCode)
	data, err := body.ReadAll(context.Background(), resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "request path is not found", string(data))
}

func TestScopeState(t *testing.T) {
	type dbHandle struct{ name string }

	root := NewScope("/")
	ScopeState(root, dbHandle{name: "primary"})
	root.Get("/whoami", ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
		db, ok := StateOf[dbHandle](r)
		if !ok {
			return NewResponse(500), nil
		}
		return NewResponse(200).SetBytes([]byte(db.name)), nil
	}))

	router, err := Build(root)
	require.NoError(t, err)

	req := &Request{Method: "GET", Target: "/whoami", Path: "/whoami", Proto: "HTTP/1.1", Header: NewHeader(), Body: body.EOF()}
	resp := Dispatch(context.Background(), router, DefaultErrorHandler(nil), req)
	require.Equal(t, 200, resp.StatusCode)
	data, _ := body.ReadAll(context.Background(), resp.Body)
	assert.Equal(t, "primary", string(data))
}

func TestHandlerReflectionBinding(t *testing.T) {
	svc := Handler(func(pi PathInfo, q Query) (map[string]string, error) {
		id, _ := pi.Get("id")
		name, _ := q.Get("name")
		return map[string]string{"id": id, "name": name}, nil
	})

	root := NewScope("/")
	root.Get("/greet/{id}", svc)
	router, err := Build(root)
	require.NoError(t, err)

	req := &Request{Method: "GET", Target: "/greet/9?name=ada", Path: "/greet/9", Proto: "HTTP/1.1", Header: NewHeader(), Body: body.EOF()}
	resp := Dispatch(context.Background(), router, DefaultErrorHandler(nil), req)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
