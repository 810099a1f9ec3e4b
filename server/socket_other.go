//go:build !linux

package server

import "net"

// tuneListener is a no-op on non-Linux platforms, where the Linux-specific
// socket options in socket_linux.go do not apply.
func tuneListener(net.Listener) {}
