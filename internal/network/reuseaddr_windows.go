//go:build windows

package network

import "syscall"

// setReuseAddr enables SO_REUSEADDR on the raw socket before binding, so that
// relay ports cycling through TIME_WAIT can be reclaimed immediately when a
// new game reuses them.
func setReuseAddr(c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
}
