// Package websocket is an illustrative, out-of-core adapter showing how a
// handler can step outside the request/response model entirely: it
// hijacks the raw connection via relay.Request.Hijack and hands it to
// gorilla/websocket for the RFC 6455 upgrade handshake and framing. It is
// not reachable through the router/scope build graph; a caller wires it
// into a route explicitly, the same way the original marks protocol
// upgrades as a case from_request/handler composition alone cannot
// express.
package websocket

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/yourusername/relay"
)

// ErrNoHijack is returned when the request was not produced by a
// connection that supports hijacking (relay.Request.Hijack is nil).
var ErrNoHijack = errors.New("websocket: request does not support hijacking")

// Upgrader wraps gorilla/websocket.Upgrader, adapting its Upgrade method
// (built around http.ResponseWriter/http.Request) to relay's own
// Request/Response types via the hijack escape hatch.
type Upgrader struct {
	websocket.Upgrader
}

// Upgrade performs the WebSocket opening handshake on r, returning the
// resulting *websocket.Conn for the caller to drive directly. It must be
// called from within a relay.Service; once it returns successfully, relay
// no longer owns the connection and will not write any further response.
func Upgrade(r *relay.Request, u *Upgrader) (*websocket.Conn, error) {
	if r.Hijack == nil {
		return nil, ErrNoHijack
	}

	nc, rw, err := r.Hijack()
	if err != nil {
		return nil, err
	}

	httpReq := &http.Request{
		Method: r.Method,
		Header: make(http.Header),
	}
	for _, key := range r.Header.Keys() {
		httpReq.Header[key] = r.Header.Values(key)
	}

	hj := &hijackedResponseWriter{nc: nc, rw: rw, header: make(http.Header)}
	return u.Upgrader.Upgrade(hj, httpReq, hj.header)
}
