// Package server orchestrates accepting connections across one or more
// listeners and handing each to conn.Conn, plus graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/relay"
	"github.com/yourusername/relay/conn"
)

// Config tunes the orchestrator and is propagated to every accepted
// connection as a conn.Config.
type Config struct {
	Router       *relay.Router
	ErrorHandler relay.ErrorHandler
	Logger       *slog.Logger

	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	IdleTimeout              time.Duration
	MaxHeaderBytes           int
	MaxRequestBodySize       int64
	MaxKeepAliveRequests     int
	MaxConcurrentConnections int // 0 = unlimited
	DisableKeepalive         bool
}

// DefaultConfig returns sensible defaults for every field Config leaves
// zero.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

// Stats are cumulative, lock-free counters updated as the server runs.
type Stats struct {
	TotalConnections atomic.Int64
	ActiveConnections atomic.Int64
	TotalRequests    atomic.Int64
	ConnectionErrors atomic.Int64
}

// Server accepts connections on any number of bound listeners and
// dispatches requests through cfg.Router. Listeners are added with Bind /
// BindTLS before calling Run; Run blocks until Shutdown is called or a
// listener fails irrecoverably.
type Server struct {
	cfg   Config
	stats Stats

	mu        sync.Mutex
	listeners []net.Listener

	shuttingDown atomic.Bool
	connSem      chan struct{}
	conns        sync.Map // net.Conn -> struct{}, tracked for Shutdown
}

// New returns a Server that will dispatch through cfg.Router. If
// cfg.ErrorHandler is nil, relay.DefaultErrorHandler(cfg.Logger) is used.
func New(cfg Config) *Server {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = relay.DefaultErrorHandler(cfg.Logger)
	}
	s := &Server{cfg: cfg}
	if cfg.MaxConcurrentConnections > 0 {
		s.connSem = make(chan struct{}, cfg.MaxConcurrentConnections)
	}
	return s
}

// Bind opens a plain TCP listener at addr and registers it to be served
// by a subsequent Run call.
func (s *Server) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.addListener(ln)
}

// BindLocal is a convenience for binding to loopback on an ephemeral
// port, primarily useful in tests; it returns the resolved listener so
// callers can read back the assigned port.
func (s *Server) BindLocal() (net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return ln, s.addListener(ln)
}

// BindTLS wraps a plain TCP listener at addr with tlsCfg and registers it.
// Certificate acquisition/rotation is the caller's responsibility; this
// only consumes a ready *tls.Config.
func (s *Server) BindTLS(addr string, tlsCfg *tls.Config) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.addListener(tls.NewListener(ln, tlsCfg))
}

func (s *Server) addListener(ln net.Listener) error {
	tuneListener(ln)
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	return nil
}

// Run accepts connections on every bound listener until ctx is canceled
// or Shutdown is called, using an errgroup so a fatal error on any one
// listener tears down the rest.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	listeners := append([]net.Listener(nil), s.listeners...)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		ln := ln
		g.Go(func() error { return s.serve(gctx, ln) })
	}

	// Canceling ctx, or any accept loop failing, closes every listener so
	// the remaining Accept calls return.
	stop := context.AfterFunc(gctx, func() {
		for _, ln := range listeners {
			ln.Close()
		}
	})
	defer stop()

	return g.Wait()
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	for {
		if s.shuttingDown.Load() {
			return nil
		}
		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}

		nc, err := ln.Accept()
		if err != nil {
			if s.shuttingDown.Load() {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			if s.connSem != nil {
				<-s.connSem
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return err
				}
				continue
			}
		}

		s.stats.TotalConnections.Add(1)
		s.stats.ActiveConnections.Add(1)
		s.conns.Store(nc, struct{}{})

		go s.handle(ctx, nc)
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer func() {
		s.conns.Delete(nc)
		s.stats.ActiveConnections.Add(-1)
		if s.connSem != nil {
			<-s.connSem
		}
	}()

	if s.cfg.ReadTimeout > 0 || s.cfg.WriteTimeout > 0 {
		deadline := time.Now()
		if s.cfg.ReadTimeout > s.cfg.WriteTimeout {
			deadline = deadline.Add(s.cfg.ReadTimeout)
		} else {
			deadline = deadline.Add(s.cfg.WriteTimeout)
		}
		nc.SetDeadline(deadline)
	}

	cc := conn.Config{
		KeepAliveTimeout:   s.cfg.IdleTimeout,
		MaxRequests:        s.cfg.MaxKeepAliveRequests,
		MaxHeaderBytes:     s.cfg.MaxHeaderBytes,
		MaxRequestBodySize: s.cfg.MaxRequestBodySize,
		DisableKeepalive:   s.cfg.DisableKeepalive,
	}

	c := conn.New(nc, cc, func(ctx context.Context, r *relay.Request) *relay.Response {
		s.stats.TotalRequests.Add(1)
		return relay.Dispatch(ctx, s.cfg.Router, s.cfg.ErrorHandler, r)
	})

	if err := c.Serve(ctx); err != nil {
		s.stats.ConnectionErrors.Add(1)
		if s.cfg.Logger != nil {
			s.cfg.Logger.Debug("relay: connection closed with error", "remote", nc.RemoteAddr(), "error", err)
		}
	}
}

// Shutdown stops accepting new connections and closes every tracked
// connection, including one whose request is still being handled. It
// returns once those Close calls have been made, or with ctx's error if
// ctx is done first; it does not wait for connection handlers to return,
// nor for Run to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)

	s.mu.Lock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Range(func(key, _ any) bool {
			key.(net.Conn).Close()
			return true
		})
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatsSnapshot is a point-in-time copy of Stats, safe to pass by value.
type StatsSnapshot struct {
	TotalConnections  int64
	ActiveConnections int64
	TotalRequests     int64
	ConnectionErrors  int64
}

// Stats returns a snapshot of the server's cumulative counters.
func (s *Server) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:  s.stats.TotalConnections.Load(),
		ActiveConnections: s.stats.ActiveConnections.Load(),
		TotalRequests:     s.stats.TotalRequests.Load(),
		ConnectionErrors:  s.stats.ConnectionErrors.Load(),
	}
}
