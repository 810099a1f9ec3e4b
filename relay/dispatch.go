package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yourusername/relay/body"
)

// ErrorHandler converts an error returned by a Service into a Response.
// Handlers that want a bespoke error body for domain errors can ignore
// the default (which logs and returns a generic 500) and install their
// own via server.Config.ErrorHandler.
type ErrorHandler func(ctx context.Context, r *Request, err error) *Response

// DefaultErrorHandler maps ErrRouteNotExists to 404, any error
// implementing HTTPStatus to its declared code, and anything else to a
// generic 500, logging the error via slog at the call site's discretion
// (callers typically wrap this to add structured fields).
func DefaultErrorHandler(logger *slog.Logger) ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, r *Request, err error) *Response {
		if errors.Is(err, ErrRouteNotExists) {
			return NewResponse(404).SetBytes([]byte("request path is not found"))
		}
		var he HTTPStatus
		if errors.As(err, &he) {
			resp := NewResponse(he.HTTPStatus())
			resp.SetBytes([]byte(err.Error()))
			return resp
		}
		logger.ErrorContext(ctx, "relay: handler error", "method", r.Method, "path", r.Path, "error", err)
		return NewResponse(500).SetBytes([]byte("500 internal server error"))
	}
}

// HTTPStatus is implemented by domain errors that know their own HTTP
// status code, letting handlers return a plain error from deep in a call
// stack instead of constructing a Response by hand.
type HTTPStatus interface {
	error
	HTTPStatus() int
}

// Dispatch looks up the route matching r, invokes its Service (or
// errHandler, on a lookup miss or Service error) and returns the
// resulting Response. It is the single entry point both the in-process
// tests and the server package's per-connection handler call.
func Dispatch(ctx context.Context, router *Router, errHandler ErrorHandler, r *Request) *Response {
	route, params, err := router.Lookup(r.Method, r.Path)
	if err != nil {
		return errHandler(ctx, r, err)
	}
	r.PathInfo = params
	resp, err := route.Service.Serve(ctx, r)
	if err != nil {
		return errHandler(ctx, r, err)
	}
	if resp == nil {
		resp = NewResponse(200)
	}
	if resp.Body == nil {
		resp.Body = body.EOF()
	}
	if resp.Header.m == nil {
		resp.Header = NewHeader()
	}
	return resp
}
