// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"net"
	"syscall"
)

// Connector allows to dial [net.Conn] connections pretty much
// like [*net.Dialer] except that here we use a [*Switch]
// as the networking backend.
//
// The zero value is invalid. Construct using [NewConnector].
//
// Only decimal [Addr] literals are supported. Dialing a hostname will fail.
type Connector struct {
	// options contains the options for the sockets we create.
	options []SocketOption

	// sw is the switch to use.
	sw *Switch
}

// NewConnector creates a new [*Connector] instance.
func NewConnector(sw *Switch, options ...SocketOption) *Connector {
	return &Connector{options: options, sw: sw}
}

// DialContext creates a new connected [net.Conn] using an ephemeral local
// address. The returned connection also implements [net.PacketConn].
func (c *Connector) DialContext(ctx context.Context, network string, address string) (net.Conn, error) {
	// 1. reject networks different from udp
	if network != "udp" {
		return nil, syscall.EPROTOTYPE
	}

	// 2. parse the address into an [Addr]
	remote, err := ParseAddr(address)
	if err != nil {
		return nil, err
	}

	// 3. bind to an ephemeral address
	sock, err := c.sw.ConnectEphemeral(c.options...)
	if err != nil {
		return nil, err
	}

	// 4. wrap to emulate connected UDP
	return &connectedSocket{remote: remote, sock: sock}, nil
}
