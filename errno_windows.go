//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Windows errno definitions.
//

package vwire

import "golang.org/x/sys/windows"

const (
	errEADDRINUSE    = windows.WSAEADDRINUSE
	errEADDRNOTAVAIL = windows.WSAEADDRNOTAVAIL
	errEHOSTUNREACH  = windows.WSAEHOSTUNREACH
	errEINVAL        = windows.WSAEINVAL
	errEMSGSIZE      = windows.WSAEMSGSIZE
)
