package server

import (
	"context"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/yourusername/relay"
)

// BenchmarkRelayDispatch and BenchmarkFasthttpHandler exist purely as a
// side-by-side comparison point, the same role shockwave's own
// benchmarks/competitors subtree plays: fasthttp is never imported by any
// core package, only by this benchmark.
func BenchmarkRelayDispatch(b *testing.B) {
	root := relay.NewScope("/")
	root.Get("/bench", relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
		return relay.NewResponse(200).SetBytes([]byte("ok")), nil
	}))
	router, err := relay.Build(root)
	if err != nil {
		b.Fatal(err)
	}
	errHandler := relay.DefaultErrorHandler(nil)

	req := &relay.Request{Method: "GET", Target: "/bench", Path: "/bench", Proto: "HTTP/1.1", Header: relay.NewHeader()}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.Body = nil
		relay.Dispatch(ctx, router, errHandler, req)
	}
}

func BenchmarkFasthttpHandler(b *testing.B) {
	handler := func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(200)
		ctx.SetBody([]byte("ok"))
	}

	rc := &fasthttp.RequestCtx{}
	rc.Request.SetRequestURI("/bench")
	rc.Request.Header.SetMethod("GET")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler(rc)
	}
}
