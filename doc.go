// SPDX-License-Identifier: GPL-3.0-or-later

// Package vwire (Virtual Wire) provides an in-process datagram fabric
// that replaces UDP sockets and IP routing in integration tests.
//
// The package models endpoints exchanging [Transmit] values. Each endpoint
// is a [*VirtualSocket] bound to an [Addr] and backed by a [Transport]. There
// are two transports: a [*Plug], which is one end of a point-to-point
// [*Wire], and a [*SwitchPort], which is a registration inside a [*Switch]
// routing datagrams by destination address.
//
// The typical point-to-point usage is to create a [*Wire] using [NewWire]
// and to bind [*Wire] Start and End to two sockets using [NewVirtualSocket].
// For many-party scenarios, create a [*Switch] using [NewSwitch] and use
// [*Switch.ConnectSocket] to obtain sockets bound to distinct addresses.
//
// Wires can be shaped. [NewDelayedWire] adds a fixed delay per datagram,
// [NewLimitedWire] delays each datagram by the time needed to transmit
// its payload at the given rate, and [NewShapedWire] chains arbitrary
// [Shaper] policies. Shaping never reorders and never drops datagrams: when
// queues are full, senders block until there is room again.
//
// A [*VirtualSocket] implements [net.PacketConn], so protocol engines such
// as QUIC or DNS libraries can use it in place of a [*net.UDPConn]. It also
// exposes a context-aware API ([*VirtualSocket.SendDatagram] and
// [*VirtualSocket.ReceiveDatagram]) and a non-blocking, poll-style API
// ([*VirtualSocket.TrySendDatagram], [*VirtualSocket.TryReceiveDatagram],
// and [*VirtualSocket.WaitReadable]), which are all views of the same queues.
//
// The [*PCAPTrace] type allows you to capture datagrams in flight in a PCAP
// format so that you can inspect what happened using tools such as wireshark.
package vwire
