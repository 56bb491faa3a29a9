// Package network provides socket binding helpers shared by the lobby
// listener and the per-game relays.
package network

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// listenConfig returns a net.ListenConfig that applies SO_REUSEADDR before
// binding.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return setReuseAddr(c)
		},
	}
}

// ListenTCP binds a TCP listener on the given port on all local addresses.
func ListenTCP(ctx context.Context, port int) (net.Listener, error) {
	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on tcp port %d: %w", port, err)
	}
	return ln, nil
}

// ListenUDP binds a UDP socket on the given port on all local addresses.
func ListenUDP(ctx context.Context, port int) (*net.UDPConn, error) {
	lc := listenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp port %d: %w", port, err)
	}
	return pc.(*net.UDPConn), nil
}
