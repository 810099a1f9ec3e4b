package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/yourusername/relay/body"
)

// ConnInfo carries the connection-level facts a handler may need but that
// are not part of the HTTP message itself: the local and remote socket
// addresses and whether the connection is TLS.
type ConnInfo struct {
	RemoteAddr net.Addr
	LocalAddr  net.Addr
	TLS        bool
}

// Request is an incoming HTTP request as handed to a Service. Its fields
// are plain values: middleware may replace Body and edit Header before the
// handler runs (as middleware.Decompress does). The per-scope values
// attached with ScopeState are read through StateOf.
type Request struct {
	ctx    context.Context
	Method string
	Target string // request-target as sent on the wire, e.g. "/a/b?x=1"
	Path   string // Target with any query string stripped
	Proto  string // e.g. "HTTP/1.1"

	Header Header
	query  *Query // lazily parsed from Target on first QueryMap() call

	PathInfo PathInfo
	Conn     ConnInfo
	Body     body.Stream

	// Hijack, when non-nil, lets a handler take ownership of the raw
	// connection for protocols layered on top of an HTTP upgrade (e.g.
	// WebSocket, see adapters/websocket). Calling it tells the owning
	// conn.Conn to stop managing the socket after this request: no
	// further response is written by the normal dispatch path.
	Hijack func() (net.Conn, *bufio.ReadWriter, error)

	state *stateList
}

// Context returns the request's associated context.Context, carrying
// cancellation and deadlines from the owning connection.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context replaced.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// QueryMap parses (once, lazily) and returns the request's query string.
func (r *Request) QueryMap() Query {
	if r.query == nil {
		_, raw, _ := cutQuery(r.Target)
		q := ParseQuery(raw)
		r.query = &q
	}
	return *r.query
}

func cutQuery(target string) (path, query string, has bool) {
	for i := 0; i < len(target); i++ {
		if target[i] == '?' {
			return target[:i], target[i+1:], true
		}
	}
	return target, "", false
}

// Response is the mutable value a Service builds and returns. StatusCode
// defaults to 0, which conn.Conn writes as 200 if never set, mirroring a
// handler that only calls SetBody.
type Response struct {
	StatusCode int
	Header     Header
	Body       body.Stream
}

// NewResponse returns a Response with an empty header map and no body.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Header: NewHeader(), Body: body.EOF()}
}

// SetHeader sets (replacing) a header field and returns the Response for
// chaining.
func (resp *Response) SetHeader(key, value string) *Response {
	resp.Header.Set(key, value)
	return resp
}

// InsertHeader appends a header field without removing existing values for
// the same key, for multi-valued headers such as Set-Cookie.
func (resp *Response) InsertHeader(key, value string) *Response {
	resp.Header.Insert(key, value)
	return resp
}

// SetBody replaces the response body stream and returns the Response for
// chaining.
func (resp *Response) SetBody(b body.Stream) *Response {
	resp.Body = b
	return resp
}

// SetBytes sets a fully in-memory body and returns the Response for
// chaining. Any existing Content-Type header is left untouched.
func (resp *Response) SetBytes(b []byte) *Response {
	resp.Body = body.NewBytes(b)
	return resp
}

// SetJSON marshals v and sets it as the response body, setting
// Content-Type: application/json. Unlike SetBytes/SetBody, it always
// overwrites Content-Type: a JSON body's encoding is not optional.
func (resp *Response) SetJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp.Header.Set("Content-Type", "application/json")
	resp.Body = body.NewBytes(data)
	return nil
}
