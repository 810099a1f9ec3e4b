package websocket

import (
	"bufio"
	"net"
	"net/http"
)

// hijackedResponseWriter adapts an already-hijacked (net.Conn,
// *bufio.ReadWriter) pair back into an http.ResponseWriter + http.Hijacker
// pair, which is the shape gorilla/websocket.Upgrader expects. Since the
// connection is hijacked before this is ever constructed, Hijack simply
// hands back what it was given rather than performing a second hijack.
type hijackedResponseWriter struct {
	nc     net.Conn
	rw     *bufio.ReadWriter
	header http.Header
}

func (h *hijackedResponseWriter) Header() http.Header         { return h.header }
func (h *hijackedResponseWriter) Write(p []byte) (int, error) { return h.rw.Write(p) }
func (h *hijackedResponseWriter) WriteHeader(int)             {}

func (h *hijackedResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.nc, h.rw, nil
}
