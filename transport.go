// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import "context"

// Transport is the backing of a [*VirtualSocket].
//
// The [*Plug] and the [*SwitchPort] implement this interface.
type Transport interface {
	// Send sends a [Transmit] blocking while the peer queue is full.
	Send(ctx context.Context, tx Transmit) error

	// TrySend is like Send but fails with [ErrWouldBlock] instead of blocking.
	TrySend(tx Transmit) error

	// Receive receives the next [Transmit] blocking while none is available.
	Receive(ctx context.Context) (Transmit, error)

	// TryReceive is like Receive but fails with [ErrWouldBlock] instead of blocking.
	TryReceive() (Transmit, error)

	// Close closes the transport.
	Close() error
}

// transportClaimer is the optional interface implemented by [Transport]
// instances that can be bound to at most a single [*VirtualSocket].
type transportClaimer interface {
	claim(addr Addr) error
}
