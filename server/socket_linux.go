//go:build linux

package server

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneListener applies Linux-specific socket tuning (TCP_QUICKACK) to
// newly bound TCP listeners, best-effort: a
// tuning failure never prevents the listener from serving traffic.
func tuneListener(ln net.Listener) {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return
	}
	raw, err := tcpLn.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
}
