// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Errors returned by this package.
//
// Where a similar kernel error exists, the error wraps the corresponding
// errno value, so that [errors.Is] works with both the sentinel and the
// errno (e.g., [ErrUnroutable] and EHOSTUNREACH).
var (
	// ErrUnroutable indicates that no endpoint is registered
	// with the destination address of a [*Switch] send.
	ErrUnroutable = fmt.Errorf("vwire: no route to host: %w", errEHOSTUNREACH)

	// ErrAddrInUse indicates that an address is already registered
	// or that a [Transport] is already bound to a [*VirtualSocket].
	ErrAddrInUse = fmt.Errorf("vwire: address already in use: %w", errEADDRINUSE)

	// ErrAddrNotAvailable indicates that we could not allocate
	// an ephemeral address because all of them are in use.
	ErrAddrNotAvailable = fmt.Errorf("vwire: address not available: %w", errEADDRNOTAVAIL)

	// ErrInvalidAddr indicates that an address is malformed or does
	// not match the address of the [Transport] being bound.
	ErrInvalidAddr = fmt.Errorf("vwire: invalid address: %w", errEINVAL)

	// ErrInvalidDestination indicates sending to an address other than
	// the peer of a point-to-point [*Wire].
	ErrInvalidDestination = fmt.Errorf("vwire: invalid destination: %w", errEINVAL)

	// ErrMessageTooLong indicates that a payload exceeds the MTU.
	ErrMessageTooLong = fmt.Errorf("vwire: message too long: %w", errEMSGSIZE)

	// ErrWouldBlock indicates that a non-blocking operation could
	// not complete without suspending the caller.
	ErrWouldBlock = errors.New("vwire: operation would block")
)

// ErrTransportClosed is the error returned when the local end or the
// consumer at the remote end is gone. It is [net.ErrClosed], which is the
// error the standard library returns for operations on closed sockets.
var ErrTransportClosed = net.ErrClosed

// errorsRemapDeadline maps the error returned by a context-aware
// operation canceled because of a deadline to [os.ErrDeadlineExceeded].
func errorsRemapDeadline(err error, expired <-chan struct{}) error {
	if err != nil && errors.Is(err, context.Canceled) && isClosedChan(expired) {
		return os.ErrDeadlineExceeded
	}
	return err
}

// errorsIsEOF returns whether the error indicates end of stream.
func errorsIsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
