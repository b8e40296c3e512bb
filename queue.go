// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/bassosimone/runtimex"
)

// queue is a bounded, one-directional queue of [Transmit].
//
// Closing the writer side wakes up blocked senders and eventually closes
// the channel, so receivers drain what is queued and then see [io.EOF].
// Closing the reader side makes every current and future send fail.
//
// Construct using [newQueue].
type queue struct {
	// ch is the bounded channel carrying datagrams.
	ch chan Transmit

	// rclosed is closed when the reader is gone.
	rclosed chan struct{}

	// ronce provides "once" semantics for closeReader.
	ronce sync.Once

	// wclosing is closed when the writer starts closing.
	wclosing chan struct{}

	// wonce provides "once" semantics for closeWriter.
	wonce sync.Once

	// mu is held in read mode by senders, so that closeWriter
	// can wait for in-flight sends before closing ch.
	mu sync.RWMutex
}

// newQueue creates a new [*queue] with the given capacity.
//
// This function PANICs if capacity is not positive.
func newQueue(capacity int) *queue {
	runtimex.Assert(capacity > 0)
	return &queue{
		ch:       make(chan Transmit, capacity),
		rclosed:  make(chan struct{}),
		ronce:    sync.Once{},
		wclosing: make(chan struct{}),
		wonce:    sync.Once{},
		mu:       sync.RWMutex{},
	}
}

// send enqueues a [Transmit] blocking while the queue is full.
func (q *queue) send(ctx context.Context, tx Transmit) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	// 1. refuse to send when either side is gone
	if q.isClosed() {
		return net.ErrClosed
	}

	// 2. wait for room, for teardown, or for the context
	select {
	case q.ch <- tx:
		return nil
	case <-q.wclosing:
		return net.ErrClosed
	case <-q.rclosed:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend is like send but returns [ErrWouldBlock] when the queue is full.
func (q *queue) trySend(tx Transmit) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.isClosed() {
		return net.ErrClosed
	}
	select {
	case q.ch <- tx:
		return nil
	default:
		return ErrWouldBlock
	}
}

// isClosed returns whether either side has been closed.
func (q *queue) isClosed() bool {
	return isClosedChan(q.wclosing) || isClosedChan(q.rclosed)
}

// receive dequeues a [Transmit] blocking while the queue is empty.
//
// The returned error is [io.EOF] once the writer is gone and the
// queue has been drained.
func (q *queue) receive(ctx context.Context) (Transmit, error) {
	if isClosedChan(q.rclosed) {
		return Transmit{}, net.ErrClosed
	}
	select {
	case tx, ok := <-q.ch:
		if !ok {
			return Transmit{}, io.EOF
		}
		return tx, nil
	case <-q.rclosed:
		return Transmit{}, net.ErrClosed
	case <-ctx.Done():
		return Transmit{}, ctx.Err()
	}
}

// tryReceive is like receive but returns [ErrWouldBlock] when the queue is empty.
func (q *queue) tryReceive() (Transmit, error) {
	if isClosedChan(q.rclosed) {
		return Transmit{}, net.ErrClosed
	}
	select {
	case tx, ok := <-q.ch:
		if !ok {
			return Transmit{}, io.EOF
		}
		return tx, nil
	default:
		return Transmit{}, ErrWouldBlock
	}
}

// closeWriter closes the writer side of the queue.
func (q *queue) closeWriter() {
	q.wonce.Do(func() {
		close(q.wclosing)
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})
}

// closeReader closes the reader side of the queue.
func (q *queue) closeReader() {
	q.ronce.Do(func() {
		close(q.rclosed)
	})
}

// readerGone returns a channel closed when the reader is gone.
func (q *queue) readerGone() <-chan struct{} {
	return q.rclosed
}
