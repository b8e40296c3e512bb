// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import "time"

// Wire is a bidirectional point-to-point link between two [*Plug].
//
// Construct using [NewWire], [NewDelayedWire], [NewLimitedWire],
// or [NewShapedWire].
type Wire struct {
	// Start is the first end of the wire.
	Start *Plug

	// End is the other end of the wire.
	End *Plug
}

// NewWire creates a new [*Wire] whose queues hold at most capacity
// datagrams in each direction. Datagrams move synchronously from one
// end to the other, without background goroutines.
//
// This function PANICs if capacity is not positive.
func NewWire(capacity int) *Wire {
	forward := newQueue(capacity)  // start -> end
	backward := newQueue(capacity) // end -> start
	return &Wire{
		Start: &Plug{tx: forward, rx: backward},
		End:   &Plug{tx: backward, rx: forward},
	}
}

// NewShapedWire creates a [*Wire] where each [Shaper] is a hop implemented
// by a connector between two plain wires. Hops are traversed in order from
// Start to End, and in reverse order from End to Start.
//
// With no shapers, this function is equivalent to [NewWire].
//
// This function PANICs if capacity is not positive.
func NewShapedWire(capacity int, shapers []Shaper, options ...WireOption) *Wire {
	first := NewWire(capacity)
	last := first
	for _, shaper := range shapers {
		next := NewWire(capacity)
		Splice(last.End, next.Start, shaper, options...)
		last = next
	}
	return &Wire{Start: first.Start, End: last.End}
}

// NewDelayedWire creates a [*Wire] delaying each datagram by delay.
//
// This function PANICs if capacity is not positive.
func NewDelayedWire(capacity int, delay time.Duration, options ...WireOption) *Wire {
	return NewShapedWire(capacity, []Shaper{FixedDelay(delay)}, options...)
}

// NewLimitedWire creates a [*Wire] limiting the throughput in each
// direction to the given number of bytes per second.
//
// This function PANICs if capacity or bytesPerSecond are not positive.
func NewLimitedWire(capacity int, bytesPerSecond uint32, options ...WireOption) *Wire {
	return NewShapedWire(capacity, []Shaper{BandwidthLimit(bytesPerSecond)}, options...)
}
