package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/yourusername/relay/body"
)

// extractorFunc is the type-erased form every registered extractor is
// stored as: given the request, produce a reflect.Value of the
// extractor's declared type. This mirrors the tag_invoke-style dispatch
// table the handler-binding trait is grounded on, expressed in Go as a
// map keyed by reflect.Type instead of an overload set resolved at
// compile time.
type extractorFunc func(ctx context.Context, r *Request) (reflect.Value, error)

var extractors = map[reflect.Type]extractorFunc{}

// RegisterExtractor adds an extractor for parameter type T, usable by any
// handler passed to Handler whose signature names T as a parameter type.
// Built-in extractors (for *Request, ConnInfo, PathInfo, Query, Header,
// string and []byte bodies) are registered automatically; call this to
// add your own, e.g. a wrapper type carrying a decoded path parameter or
// JSON body.
func RegisterExtractor[T any](fn func(ctx context.Context, r *Request) (T, error)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	extractors[t] = func(ctx context.Context, r *Request) (reflect.Value, error) {
		v, err := fn(ctx, r)
		return reflect.ValueOf(v), err
	}
}

func init() {
	RegisterExtractor(func(_ context.Context, r *Request) (*Request, error) { return r, nil })
	RegisterExtractor(func(_ context.Context, r *Request) (ConnInfo, error) { return r.Conn, nil })
	RegisterExtractor(func(_ context.Context, r *Request) (PathInfo, error) { return r.PathInfo, nil })
	RegisterExtractor(func(_ context.Context, r *Request) (Query, error) { return r.QueryMap(), nil })
	RegisterExtractor(func(_ context.Context, r *Request) (Header, error) { return r.Header, nil })
	RegisterExtractor(func(ctx context.Context, r *Request) (string, error) {
		b, err := body.ReadAll(ctx, r.Body)
		return string(b), err
	})
	RegisterExtractor(func(ctx context.Context, r *Request) ([]byte, error) {
		return body.ReadAll(ctx, r.Body)
	})
}

// Handler wraps fn — an arbitrary function whose parameters are each a
// type with a registered extractor (or context.Context, passed through
// verbatim) and whose results are (optionally) a value plus an error —
// into a Service. The parameter list is inspected with reflect exactly
// once, when Handler is called (at route-build time), so request
// dispatch only pays for a handful of reflect.Value.Call argument
// conversions, never for re-walking the signature.
func Handler(fn any) Service {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		panic("relay: Handler requires a function value")
	}

	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	numIn := ft.NumIn()
	params := make([]reflect.Type, numIn)
	exs := make([]extractorFunc, numIn)
	for i := 0; i < numIn; i++ {
		t := ft.In(i)
		params[i] = t
		if t == ctxType {
			continue
		}
		ex, ok := extractors[t]
		if !ok {
			panic(fmt.Sprintf("relay: no extractor registered for handler parameter type %s", t))
		}
		exs[i] = ex
	}

	return ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
		args := make([]reflect.Value, numIn)
		for i, t := range params {
			if t == ctxType {
				args[i] = reflect.ValueOf(ctx)
				continue
			}
			v, err := exs[i](ctx, r)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out := fv.Call(args)
		return convertResults(out)
	})
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func convertResults(out []reflect.Value) (*Response, error) {
	if len(out) == 0 {
		return NewResponse(200), nil
	}

	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return NewResponse(200), nil
	}

	v := out[0].Interface()
	if resp, ok := v.(*Response); ok {
		return resp, nil
	}
	return jsonResponse(v)
}

func jsonResponse(v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	resp := NewResponse(200)
	resp.SetHeader("Content-Type", "application/json")
	resp.SetBytes(data)
	return resp, nil
}

// Path[T] is an illustrative extractor wrapper for a single named path
// parameter decoded as T. Register it per concrete T via PathParam, since
// Go extractors are dispatched by parameter type and a generic type
// itself carries no parameter name.
type Path[T any] struct {
	Value T
}

// JSON[T] decodes the request body as JSON into T. Register per concrete
// T with JSONBody.
type JSON[T any] struct {
	Value T
}

// Form[T] decodes the request body as application/x-www-form-urlencoded
// into the struct fields of T via simple name matching. Register per
// concrete T with FormBody.
type Form[T any] struct {
	Value T
}

// PathParam registers an extractor producing Path[T] by reading the named
// path parameter as a string; T must be string or implement no further
// conversion beyond that (this mirrors the spec's illustrative adapter,
// not a general binding framework).
func PathParam[T any](name string) {
	RegisterExtractor(func(_ context.Context, r *Request) (Path[T], error) {
		raw, ok := r.PathInfo.Get(name)
		if !ok {
			return Path[T]{}, fmt.Errorf("relay: missing path parameter %q", name)
		}
		var v any = raw
		t, ok := v.(T)
		if !ok {
			return Path[T]{}, fmt.Errorf("relay: path parameter %q is not assignable to requested type", name)
		}
		return Path[T]{Value: t}, nil
	})
}

// errUnexpectedContentType is returned by JSONBody/FormBody extractors when
// the request's Content-Type does not match what the extractor expects,
// and carries the 415 status the default error handler maps it to.
type errUnexpectedContentType struct {
	want, got string
}

func (e *errUnexpectedContentType) Error() string {
	return fmt.Sprintf("relay: unexpected content type %q, want %q", e.got, e.want)
}

func (e *errUnexpectedContentType) HTTPStatus() int { return 415 }

// checkContentType reports whether r's Content-Type names want, ignoring
// any parameters (e.g. "application/json; charset=utf-8" matches
// "application/json"). An empty Content-Type is rejected: the extractor
// contract requires the client to declare it.
func checkContentType(r *Request, want string) error {
	got := r.Header.Get("Content-Type")
	ct, _, _ := strings.Cut(got, ";")
	if strings.TrimSpace(ct) == want {
		return nil
	}
	return &errUnexpectedContentType{want: want, got: got}
}

// JSONBody registers an extractor producing JSON[T] by decoding the whole
// request body as JSON into a T, after checking Content-Type is
// "application/json".
func JSONBody[T any]() {
	RegisterExtractor(func(ctx context.Context, r *Request) (JSON[T], error) {
		var out JSON[T]
		if err := checkContentType(r, "application/json"); err != nil {
			return out, err
		}
		b, err := body.ReadAll(ctx, r.Body)
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(b, &out.Value); err != nil {
			return out, err
		}
		return out, nil
	})
}

// FormBody registers an extractor producing Form[T] by decoding the body
// as application/x-www-form-urlencoded into T's fields, matched by
// exact (case-sensitive) Go field name, after checking Content-Type is
// "application/x-www-form-urlencoded". T must be a struct with exported
// string fields.
func FormBody[T any]() {
	RegisterExtractor(func(ctx context.Context, r *Request) (Form[T], error) {
		var out Form[T]
		if err := checkContentType(r, "application/x-www-form-urlencoded"); err != nil {
			return out, err
		}
		b, err := body.ReadAll(ctx, r.Body)
		if err != nil {
			return out, err
		}
		values, err := url.ParseQuery(string(b))
		if err != nil {
			return out, err
		}
		rv := reflect.ValueOf(&out.Value).Elem()
		rt := rv.Type()
		if rt.Kind() != reflect.Struct {
			return out, fmt.Errorf("relay: FormBody requires a struct type")
		}
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			if vals := values[f.Name]; len(vals) > 0 && rv.Field(i).Kind() == reflect.String {
				rv.Field(i).SetString(vals[0])
			}
		}
		return out, nil
	})
}
