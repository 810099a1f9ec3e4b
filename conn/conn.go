// Package conn implements the HTTP/1.x connection state machine: reading
// a request off the wire, dispatching it to a Handler, and writing the
// response back with correct framing, keep-alive and pipelining
// semantics. It is the Go expression of a single connection's
// cooperative read/dispatch/write loop, one goroutine per connection
// under the Go runtime's M:N scheduler.
package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yourusername/relay"
	"github.com/yourusername/relay/body"
)

// State is the lifecycle stage of a Conn.
type State int32

const (
	StateNew State = iota
	StateActive
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler dispatches a fully-parsed request to application code and
// returns the response to write back. Errors are expected to already be
// translated to a Response (see relay.Dispatch / relay.ErrorHandler); a
// Handler returning a nil Response closes the connection.
type Handler func(ctx context.Context, r *relay.Request) *relay.Response

// Config tunes per-connection behavior. Zero-valued fields fall back to
// DefaultConfig's values via New.
type Config struct {
	KeepAliveTimeout   time.Duration
	MaxRequests        int // 0 = unlimited
	ReadBufferSize     int
	WriteBufferSize    int
	MaxHeaderBytes     int
	MaxRequestBodySize int64
	DisableKeepalive   bool
}

// DefaultConfig returns the Config used by New for any zero fields.
func DefaultConfig() Config {
	return Config{
		KeepAliveTimeout:   60 * time.Second,
		ReadBufferSize:     4096,
		WriteBufferSize:    4096,
		MaxHeaderBytes:     1 << 20,
		MaxRequestBodySize: 0,
	}
}

// Conn drives the read/dispatch/write loop for one accepted net.Conn.
type Conn struct {
	state    atomic.Int32
	requests atomic.Int32

	nc       net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	cfg      Config
	handler  Handler
	isTLS    bool
	hijacked atomic.Bool
}

// New wraps nc as a Conn that will dispatch parsed requests to handler.
// Any zero-valued field in cfg is replaced with DefaultConfig's value.
func New(nc net.Conn, cfg Config, handler Handler) *Conn {
	def := DefaultConfig()
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = def.KeepAliveTimeout
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = def.WriteBufferSize
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = def.MaxHeaderBytes
	}

	_, isTLS := nc.(*tls.Conn)
	c := &Conn{
		nc:      nc,
		reader:  bufio.NewReaderSize(nc, cfg.ReadBufferSize),
		writer:  bufio.NewWriterSize(nc, cfg.WriteBufferSize),
		cfg:     cfg,
		handler: handler,
		isTLS:   isTLS,
	}
	c.state.Store(int32(StateNew))
	return c
}

// State returns the connection's current lifecycle stage.
func (c *Conn) State() State { return State(c.state.Load()) }

// Serve runs the request loop until the peer closes the connection, a
// framing error occurs, or the configured request limit is reached. It
// closes nc before returning unless a handler hijacked the connection.
func (c *Conn) Serve(ctx context.Context) error {
	defer func() {
		if !c.hijacked.Load() {
			c.nc.Close()
		}
	}()

	for {
		if c.cfg.KeepAliveTimeout > 0 {
			c.nc.SetDeadline(time.Now().Add(c.cfg.KeepAliveTimeout))
		}

		c.state.Store(int32(StateActive))
		req, closeAfterBody, err := c.readRequest(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		reqNum := c.requests.Add(1)
		willClose := c.cfg.DisableKeepalive ||
			closeAfterBody ||
			(c.cfg.MaxRequests > 0 && int(reqNum) >= c.cfg.MaxRequests) ||
			req.Proto == "HTTP/1.0" && !hasToken(req.Header.Get("Connection"), "keep-alive") ||
			hasToken(req.Header.Get("Connection"), "close")

		resp := c.handler(ctx, req)
		if c.hijacked.Load() {
			return nil
		}
		if resp == nil {
			return nil
		}
		if willClose {
			resp.SetHeader("Connection", "close")
		} else if req.Proto == "HTTP/1.0" {
			resp.SetHeader("Connection", "keep-alive")
		}

		if err := c.writeResponse(ctx, req.Proto, resp); err != nil {
			return err
		}

		if willClose {
			return nil
		}
		c.state.Store(int32(StateIdle))
	}
}

// readRequest parses the request line, headers and constructs the body
// Stream for the next request. closeAfterBody reports whether framing
// made it impossible to safely read another request from this
// connection; the only case that sets it (a Content-Length above
// MaxRequestBodySize) also returns an error. A request with neither
// Content-Length nor chunked encoding gets an empty body.
func (c *Conn) readRequest(ctx context.Context) (*relay.Request, bool, error) {
	rl, err := readRequestLine(c.reader, c.cfg.MaxHeaderBytes)
	if err != nil {
		return nil, false, err
	}

	hdr := relay.NewHeader()
	if err := readHeaders(c.reader, &hdr, c.cfg.MaxHeaderBytes, c.cfg.MaxHeaderBytes); err != nil {
		return nil, false, err
	}

	if hasToken(hdr.Get("Expect"), "100-continue") {
		if _, err := io.WriteString(c.writer, "HTTP/1.1 100 Continue\r\n\r\n"); err != nil {
			return nil, false, err
		}
		if err := c.writer.Flush(); err != nil {
			return nil, false, err
		}
	}

	bodyStream, closeAfterBody, err := c.buildBodyStream(hdr)
	if err != nil {
		return nil, false, err
	}

	path, _, _ := cutTarget(rl.Target)

	req := &relay.Request{
		Method: rl.Method,
		Target: rl.Target,
		Path:   path,
		Proto:  rl.Proto,
		Header: hdr,
		Body:   bodyStream,
		Conn: relay.ConnInfo{
			RemoteAddr: c.nc.RemoteAddr(),
			LocalAddr:  c.nc.LocalAddr(),
			TLS:        c.isTLS,
		},
	}
	req.Hijack = func() (net.Conn, *bufio.ReadWriter, error) {
		c.hijacked.Store(true)
		return c.nc, bufio.NewReadWriter(c.reader, c.writer), nil
	}
	return req.WithContext(ctx), closeAfterBody, nil
}

func cutTarget(target string) (path, query string, has bool) {
	for i := 0; i < len(target); i++ {
		if target[i] == '?' {
			return target[:i], target[i+1:], true
		}
	}
	return target, "", false
}

func (c *Conn) buildBodyStream(hdr relay.Header) (body.Stream, bool, error) {
	te := hdr.Get("Transfer-Encoding")
	if strings.Contains(strings.ToLower(te), "chunked") {
		return body.NewChunked(c.reader, 0, uint64(c.cfg.MaxRequestBodySize)), false, nil
	}

	cl := hdr.Get("Content-Length")
	if cl == "" {
		return body.EOF(), false, nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, false, ErrMalformedRequest
	}
	if c.cfg.MaxRequestBodySize > 0 && n > c.cfg.MaxRequestBodySize {
		return nil, true, ErrMalformedRequest
	}
	return &sizedBody{r: c.reader, remaining: n}, false, nil
}

// sizedBody is a Stream over the next N bytes of a shared *bufio.Reader,
// used for Content-Length-framed bodies.
type sizedBody struct {
	r         *bufio.Reader
	remaining int64
}

func (s *sizedBody) SizeHint() (int64, bool) { return s.remaining, true }

func (s *sizedBody) ReadSome(_ context.Context, p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	if err == nil && s.remaining == 0 {
		err = io.EOF
	}
	return n, err
}

func (c *Conn) writeResponse(ctx context.Context, proto string, resp *relay.Response) error {
	status := resp.StatusCode
	if status == 0 {
		status = 200
	}
	if _, err := fmt.Fprintf(c.writer, "%s %d %s\r\n", proto, status, statusText(status)); err != nil {
		return err
	}

	useChunked := false
	if size, known := resp.Body.SizeHint(); known {
		resp.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	} else if proto == "HTTP/1.1" {
		resp.Header.Set("Transfer-Encoding", "chunked")
		useChunked = true
	}

	for _, key := range resp.Header.Keys() {
		for _, v := range resp.Header.Values(key) {
			if _, err := fmt.Fprintf(c.writer, "%s: %s\r\n", key, v); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(c.writer, "\r\n"); err != nil {
		return err
	}

	if err := writeBody(ctx, c.writer, resp.Body, useChunked); err != nil {
		return err
	}
	if closer, ok := resp.Body.(body.Closer); ok {
		closer.Close()
	}
	return c.writer.Flush()
}

func writeBody(ctx context.Context, w io.Writer, s body.Stream, chunked bool) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ReadSome(ctx, buf)
		if n > 0 {
			if chunked {
				if _, werr := fmt.Fprintf(w, "%x\r\n", n); werr != nil {
					return werr
				}
				if _, werr := w.Write(buf[:n]); werr != nil {
					return werr
				}
				if _, werr := io.WriteString(w, "\r\n"); werr != nil {
					return werr
				}
			} else if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			if chunked {
				_, werr := io.WriteString(w, "0\r\n\r\n")
				return werr
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func hasToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
