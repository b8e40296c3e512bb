// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"time"

	"github.com/bassosimone/runtimex"
)

// Shaper computes the delay a connector applies to a [Transmit].
//
// Implementations must be stateless because both directions of a
// shaped [*Wire] share the same [Shaper].
type Shaper interface {
	Delay(tx Transmit) time.Duration
}

// FixedDelay is a [Shaper] delaying every [Transmit] by the same amount.
type FixedDelay time.Duration

var _ Shaper = FixedDelay(0)

// Delay implements [Shaper].
func (d FixedDelay) Delay(tx Transmit) time.Duration {
	return time.Duration(d)
}

// BandwidthLimitShaper is the [Shaper] returned by [BandwidthLimit].
type BandwidthLimitShaper struct {
	// timePerByte is the time required to transmit a single byte.
	timePerByte time.Duration
}

// BandwidthLimit returns a [Shaper] delaying each [Transmit] by the time
// needed to send its payload at bytesPerSecond. The time per byte is
// computed first and then multiplied by the payload length.
//
// This function PANICs if bytesPerSecond is zero.
func BandwidthLimit(bytesPerSecond uint32) *BandwidthLimitShaper {
	runtimex.Assert(bytesPerSecond > 0)
	return &BandwidthLimitShaper{timePerByte: time.Second / time.Duration(bytesPerSecond)}
}

var _ Shaper = &BandwidthLimitShaper{}

// Delay implements [Shaper].
func (s *BandwidthLimitShaper) Delay(tx Transmit) time.Duration {
	return s.timePerByte * time.Duration(len(tx.Payload))
}
