// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"net"
	"time"
)

// connectedSocket wraps a [*VirtualSocket] to emulate a connected UDP socket.
//
// Writes go to the remote address and reads discard datagrams coming from
// other addresses. We also implement [net.PacketConn] because some protocol
// engines (e.g., DNS libraries) check for it to decide the framing.
type connectedSocket struct {
	remote Addr
	sock   *VirtualSocket
}

var (
	_ net.Conn       = &connectedSocket{}
	_ net.PacketConn = &connectedSocket{}
)

// Close implements [net.Conn].
func (cs *connectedSocket) Close() error {
	return cs.sock.Close()
}

// LocalAddr implements [net.Conn].
func (cs *connectedSocket) LocalAddr() net.Addr {
	return cs.sock.LocalAddr()
}

// Read implements [net.Conn].
func (cs *connectedSocket) Read(buff []byte) (int, error) {
	count, _, err := cs.ReadFrom(buff)
	return count, err
}

// ReadFrom implements [net.PacketConn].
func (cs *connectedSocket) ReadFrom(buff []byte) (int, net.Addr, error) {
	for {
		count, addr, err := cs.sock.ReadFrom(buff)
		if err != nil {
			return 0, nil, err
		}
		if addr == cs.remote {
			return count, addr, nil
		}
	}
}

// RemoteAddr implements [net.Conn].
func (cs *connectedSocket) RemoteAddr() net.Addr {
	return cs.remote
}

// SetDeadline implements [net.Conn].
func (cs *connectedSocket) SetDeadline(t time.Time) error {
	return cs.sock.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (cs *connectedSocket) SetReadDeadline(t time.Time) error {
	return cs.sock.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (cs *connectedSocket) SetWriteDeadline(t time.Time) error {
	return cs.sock.SetWriteDeadline(t)
}

// Write implements [net.Conn].
func (cs *connectedSocket) Write(data []byte) (int, error) {
	return cs.sock.WriteTo(data, cs.remote)
}

// WriteTo implements [net.PacketConn]. Like a connected UDP socket, we
// only accept writing to the remote address.
func (cs *connectedSocket) WriteTo(data []byte, addr net.Addr) (int, error) {
	if dst, ok := addrFromNetAddr(addr); !ok || dst != cs.remote {
		return 0, ErrInvalidDestination
	}
	return cs.sock.WriteTo(data, cs.remote)
}
