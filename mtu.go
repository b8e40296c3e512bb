// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

// Enumerate common MTU values.
const (
	// MTUEthernet is the MTU used by Ethernet.
	MTUEthernet = 1500

	// MTUMinimumIPv6 is the minimum MTU required by IPv6.
	MTUMinimumIPv6 = 1280

	// MTUJumbo is the MTU used by jumbo frames.
	MTUJumbo = 9000

	// MTUMaximum is the largest datagram size, which is
	// the default MTU of a [*VirtualSocket].
	MTUMaximum = 65535
)
