// SPDX-License-Identifier: GPL-3.0-or-later

package vwire_test

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/bassosimone/vwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorDialContextRejectsDomain(t *testing.T) {
	connector := vwire.NewConnector(vwire.NewSwitch())
	_, err := connector.DialContext(context.Background(), "udp", "example.com:53")
	require.ErrorIs(t, err, vwire.ErrInvalidAddr)
}

func TestConnectorDialContextRejectsUnknownNetwork(t *testing.T) {
	connector := vwire.NewConnector(vwire.NewSwitch())
	_, err := connector.DialContext(context.Background(), "tcp", "53")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.EPROTOTYPE))
}

func TestConnectorDialContextFailsOnClosedSwitch(t *testing.T) {
	sw := vwire.NewSwitch()
	require.NoError(t, sw.Close())
	_, err := vwire.NewConnector(sw).DialContext(context.Background(), "udp", "53")
	require.Error(t, err)
}

func TestConnectorDialContextUsesSocketOptions(t *testing.T) {
	sw := vwire.NewSwitch()
	connector := vwire.NewConnector(sw, vwire.SocketOptionMTU(vwire.MTUMinimumIPv6))
	conn, err := connector.DialContext(context.Background(), "udp", "53")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(make([]byte, vwire.MTUMinimumIPv6+1))
	require.ErrorIs(t, err, vwire.ErrMessageTooLong)
}
