package relay

import "context"

// Service is the type-erased request handler contract every route
// ultimately reduces to: request in, response (or error) out. Handlers
// written with richer signatures (see Handler) are wrapped down to a
// Service once, at route-build time, not on every request.
type Service interface {
	Serve(ctx context.Context, r *Request) (*Response, error)
}

// ServiceFunc adapts a plain function to the Service interface.
type ServiceFunc func(ctx context.Context, r *Request) (*Response, error)

func (f ServiceFunc) Serve(ctx context.Context, r *Request) (*Response, error) {
	return f(ctx, r)
}

// Middleware is a higher-order Service factory: given the next Service in
// the chain, it returns a new Service that wraps it. Middlewares attached
// via Scope.Use compose outer-first: the first Use call's middleware is
// the outermost wrapper around the final handler.
type Middleware func(next Service) Service

// Chain composes middlewares around final, outermost first, so that
// Chain(final, a, b, c) produces a(b(c(final))).
func Chain(final Service, mws ...Middleware) Service {
	svc := final
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}
	return svc
}
