// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"sync/atomic"
)

// Plug is one end of a [*Wire].
//
// Send writes into the inbound queue of the other end and Receive reads
// from the inbound queue of this end. A [*Plug] must have a single owner
// at a time: either a [*VirtualSocket] or a connector started by [Splice].
//
// Construct using [NewWire] and friends.
type Plug struct {
	// bound is set once the plug is bound to a [*VirtualSocket].
	bound atomic.Bool

	// rx is the inbound queue.
	rx *queue

	// tx is the outbound queue.
	tx *queue
}

// Ensure that [*Plug] implements [Transport].
var _ Transport = &Plug{}

// Send implements [Transport].
func (p *Plug) Send(ctx context.Context, tx Transmit) error {
	return p.tx.send(ctx, tx)
}

// TrySend implements [Transport].
func (p *Plug) TrySend(tx Transmit) error {
	return p.tx.trySend(tx)
}

// Receive implements [Transport].
//
// The returned error is [io.EOF] when the other end has stopped
// writing and all the queued datagrams have been received.
func (p *Plug) Receive(ctx context.Context) (Transmit, error) {
	return p.rx.receive(ctx)
}

// TryReceive implements [Transport].
func (p *Plug) TryReceive() (Transmit, error) {
	return p.rx.tryReceive()
}

// CloseWrite stops sending. The other end receives [io.EOF] after
// it has received all the datagrams we already sent.
func (p *Plug) CloseWrite() error {
	p.tx.closeWriter()
	return nil
}

// CloseRead stops receiving. Sends from the other end fail.
func (p *Plug) CloseRead() error {
	p.rx.closeReader()
	return nil
}

// Close implements [Transport]. It is equivalent to invoking
// both CloseWrite and CloseRead.
func (p *Plug) Close() error {
	p.tx.closeWriter()
	p.rx.closeReader()
	return nil
}

// claim implements transportClaimer.
func (p *Plug) claim(addr Addr) error {
	if !p.bound.CompareAndSwap(false, true) {
		return ErrAddrInUse
	}
	return nil
}
