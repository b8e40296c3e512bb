// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"fmt"
	"net"
	"strconv"
)

// Addr is the address of a simulated endpoint.
//
// Addresses are opaque small integers chosen by the caller. We implement
// [net.Addr] so that an [Addr] can be used wherever a protocol engine
// expects a [net.Addr] (e.g., when invoking [net.PacketConn] WriteTo).
type Addr uint16

// Network is the value returned by [Addr] Network.
const Network = "vwire"

// Ensure that [Addr] implements [net.Addr].
var _ net.Addr = Addr(0)

// Network implements [net.Addr].
func (a Addr) Network() string {
	return Network
}

// String implements [net.Addr].
func (a Addr) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAddr parses the decimal representation of an [Addr].
func ParseAddr(s string) (Addr, error) {
	value, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddr, s)
	}
	return Addr(value), nil
}

// addrFromNetAddr converts a [net.Addr] to an [Addr].
func addrFromNetAddr(addr net.Addr) (Addr, bool) {
	switch value := addr.(type) {
	case Addr:
		return value, true
	case *Addr:
		if value != nil {
			return *value, true
		}
		return 0, false
	default:
		return 0, false
	}
}
