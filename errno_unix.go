//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UNIX errno definitions.
//

package vwire

import "golang.org/x/sys/unix"

const (
	errEADDRINUSE    = unix.EADDRINUSE
	errEADDRNOTAVAIL = unix.EADDRNOTAVAIL
	errEHOSTUNREACH  = unix.EHOSTUNREACH
	errEINVAL        = unix.EINVAL
	errEMSGSIZE      = unix.EMSGSIZE
)
