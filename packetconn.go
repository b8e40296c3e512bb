// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Ensure that [*VirtualSocket] implements [net.PacketConn].
var _ net.PacketConn = &VirtualSocket{}

// LocalAddr implements [net.PacketConn].
func (s *VirtualSocket) LocalAddr() net.Addr {
	return s.addr
}

// ReadFrom implements [net.PacketConn].
//
// Like UDP, when buff is smaller than the datagram, the excess bytes are discarded.
func (s *VirtualSocket) ReadFrom(buff []byte) (int, net.Addr, error) {
	// 1. honour an already expired deadline
	expired := s.rd.Wait()
	if isClosedChan(expired) {
		return 0, nil, os.ErrDeadlineExceeded
	}

	// 2. avoid creating a context when a datagram is already there
	tx, err := s.tryReceive()
	if errors.Is(err, ErrWouldBlock) {
		ctx, cancel := contextWithSignal(context.Background(), expired)
		tx, err = s.receive(ctx)
		cancel()
		err = errorsRemapDeadline(err, expired)
	}
	if err != nil {
		return 0, nil, err
	}

	// 3. copy the payload into the user buffer
	count := copy(buff, tx.Payload)
	return count, tx.Src, nil
}

// WriteTo implements [net.PacketConn].
//
// The addr argument must be an [Addr] or an [*Addr].
func (s *VirtualSocket) WriteTo(pkt []byte, addr net.Addr) (int, error) {
	// 1. convert the destination address
	dst, ok := addrFromNetAddr(addr)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddr, addr)
	}

	// 2. honour an already expired deadline
	expired := s.wd.Wait()
	if isClosedChan(expired) {
		return 0, os.ErrDeadlineExceeded
	}

	// 3. create the datagram
	tx, err := s.newTransmit(dst, pkt)
	if err != nil {
		return 0, err
	}

	// 4. avoid creating a context when there is room
	err = s.transport.TrySend(tx)
	if errors.Is(err, ErrWouldBlock) {
		ctx, cancel := contextWithSignal(context.Background(), expired)
		err = s.transport.Send(ctx, tx)
		cancel()
		err = errorsRemapDeadline(err, expired)
	}
	if err != nil {
		return 0, err
	}
	s.confirmPeer(dst)
	return len(pkt), nil
}

// SetDeadline implements [net.PacketConn].
func (s *VirtualSocket) SetDeadline(t time.Time) error {
	if isClosedChan(s.closed) {
		return net.ErrClosed
	}
	s.rd.Set(t)
	s.wd.Set(t)
	return nil
}

// SetReadDeadline implements [net.PacketConn].
func (s *VirtualSocket) SetReadDeadline(t time.Time) error {
	if isClosedChan(s.closed) {
		return net.ErrClosed
	}
	s.rd.Set(t)
	return nil
}

// SetWriteDeadline implements [net.PacketConn].
func (s *VirtualSocket) SetWriteDeadline(t time.Time) error {
	if isClosedChan(s.closed) {
		return net.ErrClosed
	}
	s.wd.Set(t)
	return nil
}
