// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rbmk-project/common/errclass"
)

// VirtualSocket is a datagram endpoint bound to an [Addr] and backed by a [Transport].
//
// A [*VirtualSocket] offers three views of the same queues: a context-aware
// API ([*VirtualSocket.SendDatagram] and [*VirtualSocket.ReceiveDatagram]), a
// non-blocking API ([*VirtualSocket.TrySendDatagram], [*VirtualSocket.TryReceiveDatagram],
// and [*VirtualSocket.WaitReadable]), and the [net.PacketConn] API.
//
// After the socket observes end of stream, the receive returns [io.EOF] and the
// socket is closed, so subsequent operations fail with [net.ErrClosed].
//
// Construct using [NewVirtualSocket] or [*Switch.ConnectSocket].
type VirtualSocket struct {
	// addr is the bound address.
	addr Addr

	// closed is closed by Close.
	closed chan struct{}

	// closeOnce provides "once" semantics for Close.
	closeOnce sync.Once

	// logger is the optional logger.
	logger *slog.Logger

	// mtu is the maximum payload size.
	mtu int

	// p2p indicates that the transport is a [*Plug].
	p2p bool

	// peer is the pinned peer of a point-to-point socket.
	peer Addr

	// peerKnown indicates whether we have pinned the peer.
	peerKnown bool

	// pmu protects peer and peerKnown.
	pmu sync.Mutex

	// pending contains the datagrams parked by WaitReadable.
	pending []Transmit

	// rmu protects pending.
	rmu sync.Mutex

	// rd is the read deadline.
	rd *deadline

	// wd is the write deadline.
	wd *deadline

	// transport is the backing transport.
	transport Transport
}

// SocketOption is an option for [NewVirtualSocket].
type SocketOption func(cfg *socketConfig)

// socketConfig is the internal type modified by [SocketOption].
type socketConfig struct {
	logger *slog.Logger
	mtu    int
}

// SocketOptionMTU sets the largest payload the socket can send.
//
// The default is [MTUMaximum].
func SocketOptionMTU(mtu int) SocketOption {
	return func(cfg *socketConfig) {
		cfg.mtu = mtu
	}
}

// SocketOptionLogger sets the [*slog.Logger] used by the socket.
func SocketOptionLogger(logger *slog.Logger) SocketOption {
	return func(cfg *socketConfig) {
		cfg.logger = logger
	}
}

// NewVirtualSocket binds a new [*VirtualSocket] to the given address and [Transport].
//
// This function fails with [ErrAddrInUse] if the transport is already bound
// and with [ErrInvalidAddr] if the transport is a [*SwitchPort] registered
// using a different address.
func NewVirtualSocket(addr Addr, transport Transport, options ...SocketOption) (*VirtualSocket, error) {
	cfg := &socketConfig{
		logger: nil,
		mtu:    MTUMaximum,
	}
	for _, opt := range options {
		opt(cfg)
	}

	if claimer, ok := transport.(transportClaimer); ok {
		if err := claimer.claim(addr); err != nil {
			return nil, err
		}
	}

	_, p2p := transport.(*Plug)
	return &VirtualSocket{
		addr:      addr,
		closed:    make(chan struct{}),
		logger:    cfg.logger,
		mtu:       cfg.mtu,
		p2p:       p2p,
		rd:        newDeadline(),
		wd:        newDeadline(),
		transport: transport,
	}, nil
}

// Addr returns the bound address.
func (s *VirtualSocket) Addr() Addr {
	return s.addr
}

// SendDatagram sends a copy of payload to dst, blocking while the
// destination queue is full.
func (s *VirtualSocket) SendDatagram(ctx context.Context, dst Addr, payload []byte) error {
	tx, err := s.newTransmit(dst, payload)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, tx); err != nil {
		return err
	}
	s.confirmPeer(dst)
	return nil
}

// TrySendDatagram is like [*VirtualSocket.SendDatagram] but fails
// with [ErrWouldBlock] rather than blocking.
func (s *VirtualSocket) TrySendDatagram(dst Addr, payload []byte) error {
	tx, err := s.newTransmit(dst, payload)
	if err != nil {
		return err
	}
	if err := s.transport.TrySend(tx); err != nil {
		return err
	}
	s.confirmPeer(dst)
	return nil
}

func (s *VirtualSocket) newTransmit(dst Addr, payload []byte) (Transmit, error) {
	if isClosedChan(s.closed) {
		return Transmit{}, net.ErrClosed
	}
	if len(payload) > s.mtu {
		return Transmit{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLong, len(payload), s.mtu)
	}
	if err := s.checkPeer(dst); err != nil {
		return Transmit{}, err
	}
	return NewTransmit(dst, s.addr, payload), nil
}

// checkPeer ensures that dst is the pinned peer of a point-to-point socket.
func (s *VirtualSocket) checkPeer(dst Addr) error {
	if !s.p2p {
		return nil
	}
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.peerKnown && dst != s.peer {
		return fmt.Errorf("%w: %s (peer is %s)", ErrInvalidDestination, dst, s.peer)
	}
	return nil
}

// confirmPeer pins the destination of the first datagram a point-to-point
// socket successfully sends.
func (s *VirtualSocket) confirmPeer(dst Addr) {
	if s.p2p {
		s.pinPeerOnce(dst)
	}
}

// learnPeer pins the source of the first datagram a point-to-point socket receives.
func (s *VirtualSocket) learnPeer(src Addr) {
	if s.p2p {
		s.pinPeerOnce(src)
	}
}

func (s *VirtualSocket) pinPeerOnce(addr Addr) {
	s.pmu.Lock()
	if !s.peerKnown {
		s.peer, s.peerKnown = addr, true
	}
	s.pmu.Unlock()
}

// ReceiveDatagram receives the next datagram, blocking while none is available.
//
// The returned error is [io.EOF] when the peer is gone and we received
// all the datagrams it sent.
func (s *VirtualSocket) ReceiveDatagram(ctx context.Context) (Addr, []byte, error) {
	tx, err := s.receive(ctx)
	return tx.Src, tx.Payload, err
}

// TryReceiveDatagram is like [*VirtualSocket.ReceiveDatagram] but fails
// with [ErrWouldBlock] rather than blocking.
func (s *VirtualSocket) TryReceiveDatagram() (Addr, []byte, error) {
	tx, err := s.tryReceive()
	return tx.Src, tx.Payload, err
}

// WaitReadable blocks until a datagram is available or end of stream
// is reached. A nil return value means that the next receive does not
// block. The datagram remains available to all the receive methods.
func (s *VirtualSocket) WaitReadable(ctx context.Context) error {
	if s.hasPending() {
		return nil
	}
	if isClosedChan(s.closed) {
		return net.ErrClosed
	}
	tx, err := s.finishReceive(s.transport.Receive(ctx))
	if err != nil {
		return err
	}
	s.rmu.Lock()
	s.pending = append(s.pending, tx)
	s.rmu.Unlock()
	return nil
}

func (s *VirtualSocket) receive(ctx context.Context) (Transmit, error) {
	if tx, ok := s.popPending(); ok {
		return tx, nil
	}
	if isClosedChan(s.closed) {
		return Transmit{}, net.ErrClosed
	}
	return s.finishReceive(s.transport.Receive(ctx))
}

func (s *VirtualSocket) tryReceive() (Transmit, error) {
	if tx, ok := s.popPending(); ok {
		return tx, nil
	}
	if isClosedChan(s.closed) {
		return Transmit{}, net.ErrClosed
	}
	return s.finishReceive(s.transport.TryReceive())
}

func (s *VirtualSocket) hasPending() bool {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return len(s.pending) > 0
}

func (s *VirtualSocket) popPending() (Transmit, bool) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if len(s.pending) <= 0 {
		return Transmit{}, false
	}
	tx := s.pending[0]
	s.pending = s.pending[1:]
	return tx, true
}

// finishReceive handles the outcome of receiving from the transport.
func (s *VirtualSocket) finishReceive(tx Transmit, err error) (Transmit, error) {
	switch {
	case err == nil:
		s.learnPeer(tx.Src)
		return tx, nil

	case errorsIsEOF(err):
		s.Close()
		return Transmit{}, io.EOF

	default:
		return Transmit{}, err
	}
}

// Close closes the socket and the backing [Transport]. When the transport
// is a [*SwitchPort], the address becomes available again.
func (s *VirtualSocket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		err := s.transport.Close()
		if s.logger != nil {
			s.logger.Info(
				"closeDone",
				slog.String("addr", s.addr.String()),
				slog.Any("err", err),
				slog.String("errClass", errclass.New(err)),
				slog.Time("t", time.Now()),
			)
		}
	})
	return nil
}
