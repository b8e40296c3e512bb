// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import "fmt"

// Transmit is a datagram moving through the fabric.
//
// A [Transmit] owns its Payload. Once created, neither the fabric nor the
// receiver modify the Payload, which allows moving a [Transmit] by value
// across goroutines without copying the bytes at every hop.
type Transmit struct {
	// Dst is the destination address.
	Dst Addr

	// Src is the source address.
	Src Addr

	// Payload contains the datagram bytes. Its length is the size
	// of the datagram on the simulated wire.
	Payload []byte
}

// NewTransmit creates a [Transmit] holding A COPY OF the given payload.
func NewTransmit(dst, src Addr, payload []byte) Transmit {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	return Transmit{Dst: dst, Src: src, Payload: owned}
}

// String returns the string representation of the [Transmit].
func (tx Transmit) String() string {
	return fmt.Sprintf("%s -> %s length=%d", tx.Src, tx.Dst, len(tx.Payload))
}
