//go:build linux

package network

import "syscall"

// setReuseAddr enables SO_REUSEADDR on the raw socket before binding, so that
// relay ports cycling through TIME_WAIT can be reclaimed immediately when a
// new game reuses them.
func setReuseAddr(c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
