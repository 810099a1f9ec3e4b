package relay

import (
	"context"
	"fmt"
	"strings"
)

const methodAll = methodAny

// pendingRoute is a route captured before the scope tree is flattened:
// everything needed to resolve its final pattern, state chain and
// middleware chain once the whole tree is known.
type pendingRoute struct {
	method  string
	pattern string
	name    string
	svc     Service
}

// Scope is a builder for a prefix-scoped group of routes sharing a common
// path prefix, state chain and middleware chain. Child scopes nest under
// their parent: prefixes concatenate, state lists extend outer-to-inner,
// and middleware chains extend outer-first, exactly mirroring the
// original scope_impl this is grounded on.
type Scope struct {
	prefix string
	state  *stateList
	mws    []Middleware

	routes   []pendingRoute
	children []*Scope
}

// NewScope returns a root Scope mounted at prefix (use "/" for the root).
func NewScope(prefix string) *Scope {
	return &Scope{prefix: normalizePrefix(prefix)}
}

func normalizePrefix(p string) string {
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

// ScopeState attaches a value of type T to s, retrievable in a handler via
// StateOf[T]. Returns s for chaining. It applies to every route registered
// on s, before or after this call, and to child scopes created with
// s.Scope after this call; a child created earlier keeps the state list it
// was created with.
func ScopeState[T any](s *Scope, value T) *Scope {
	s.state = s.state.push(typeName[T](), value)
	return s
}

// Use appends middleware to this scope's chain, applied outer-first
// relative to any middleware already registered on an ancestor scope.
func (s *Scope) Use(mws ...Middleware) *Scope {
	s.mws = append(s.mws, mws...)
	return s
}

// Scope creates and returns a child Scope mounted at prefix relative to
// s. The child inherits s's state and middleware chain as its starting
// point.
func (s *Scope) Scope(prefix string) *Scope {
	child := &Scope{
		prefix: s.prefix + normalizePrefix(prefix),
		state:  s.state,
		mws:    append([]Middleware(nil), s.mws...),
	}
	s.children = append(s.children, child)
	return child
}

// Serve registers svc at method and pattern (relative to s's prefix).
// method may be a concrete verb like "GET" or "" to match any method not
// otherwise claimed at the same terminal.
func (s *Scope) Serve(method, pattern string, svc Service) *Scope {
	s.routes = append(s.routes, pendingRoute{method: method, pattern: pattern, svc: svc})
	return s
}

// Named registers a human-readable name on the most recently added route
// in this scope. It is stored as Route.Name; routing does not use it.
func (s *Scope) Named(name string) *Scope {
	if len(s.routes) > 0 {
		s.routes[len(s.routes)-1].name = name
	}
	return s
}

// Get, Post, Put, Patch, Delete, Head, Options and Any are convenience
// wrappers over Serve for the corresponding HTTP method.
func (s *Scope) Get(pattern string, svc Service) *Scope     { return s.Serve("GET", pattern, svc) }
func (s *Scope) Post(pattern string, svc Service) *Scope    { return s.Serve("POST", pattern, svc) }
func (s *Scope) Put(pattern string, svc Service) *Scope     { return s.Serve("PUT", pattern, svc) }
func (s *Scope) Patch(pattern string, svc Service) *Scope   { return s.Serve("PATCH", pattern, svc) }
func (s *Scope) Delete(pattern string, svc Service) *Scope  { return s.Serve("DELETE", pattern, svc) }
func (s *Scope) Head(pattern string, svc Service) *Scope    { return s.Serve("HEAD", pattern, svc) }
func (s *Scope) Options(pattern string, svc Service) *Scope { return s.Serve("OPTIONS", pattern, svc) }
func (s *Scope) Any(pattern string, svc Service) *Scope     { return s.Serve(methodAll, pattern, svc) }

// Build walks the scope tree, concatenating prefixes, applying each
// route's ancestor middleware chain, and parsing every full pattern,
// producing a frozen Router ready to serve traffic. It is the only place
// pattern parsing and trie insertion happen; everything before this is
// pure, reusable builder state.
func Build(root *Scope) (*Router, error) {
	router := NewRouter()
	if err := buildInto(router, root); err != nil {
		return nil, err
	}
	router.optimize()
	return router, nil
}

func buildInto(router *Router, s *Scope) error {
	for _, seg := range strings.Split(s.prefix, "/") {
		if strings.HasPrefix(seg, "#") {
			return fmt.Errorf("relay: wildcard segment not allowed in scope prefix %q", s.prefix)
		}
	}
	for _, pr := range s.routes {
		full := s.prefix + normalizePattern(pr.pattern)
		if full == "" {
			full = "/"
		}
		pat, err := ParsePattern(full)
		if err != nil {
			return err
		}
		svc := wrapState(Chain(pr.svc, s.mws...), s.state)
		route := &Route{Method: pr.method, Pattern: pat, Name: pr.name, Service: svc}
		if err := router.insert(pr.method, pat, route); err != nil {
			return fmt.Errorf("relay: %s %s: %w", pr.method, full, err)
		}
	}
	for _, child := range s.children {
		if err := buildInto(router, child); err != nil {
			return err
		}
	}
	return nil
}

func normalizePattern(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// wrapState attaches st to every request passing through svc, so handlers
// deep in the chain can retrieve it via StateOf without the scope tree
// itself being visible at request time.
func wrapState(svc Service, st *stateList) Service {
	if st == nil {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, r *Request) (*Response, error) {
		r.state = st
		return svc.Serve(ctx, r)
	})
}
