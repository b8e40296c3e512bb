// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"net"
	"syscall"
)

// ListenConfig allows to listen pretty much like [*net.ListenConfig] except that
// here we use a [*Switch] as the networking backend.
//
// The zero value is invalid. Construct using [NewListenConfig].
//
// Only decimal [Addr] literals are supported. Listening on a hostname will fail.
type ListenConfig struct {
	// options contains the options for the sockets we create.
	options []SocketOption

	// sw is the switch to use.
	sw *Switch
}

// NewListenConfig creates a new [*ListenConfig] instance.
func NewListenConfig(sw *Switch, options ...SocketOption) *ListenConfig {
	return &ListenConfig{options: options, sw: sw}
}

// ListenPacket creates a listening packet conn.
func (lc *ListenConfig) ListenPacket(ctx context.Context, network, address string) (net.PacketConn, error) {
	// 1. reject networks different from udp
	if network != "udp" {
		return nil, syscall.EPROTOTYPE
	}

	// 2. convert to [Addr]
	addr, err := ParseAddr(address)
	if err != nil {
		return nil, err
	}

	// 3. register the address with the switch
	sock, err := lc.sw.ConnectSocket(addr, lc.options...)
	if err != nil {
		return nil, err
	}
	return sock, nil
}
