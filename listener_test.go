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

func TestListenConfigListenPacketRejectsUnknownNetwork(t *testing.T) {
	listenCfg := vwire.NewListenConfig(vwire.NewSwitch())
	_, err := listenCfg.ListenPacket(context.Background(), "udp4", "53")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.EPROTOTYPE))
}

func TestListenConfigListenPacketRejectsDomain(t *testing.T) {
	listenCfg := vwire.NewListenConfig(vwire.NewSwitch())
	_, err := listenCfg.ListenPacket(context.Background(), "udp", "example.com:53")
	require.ErrorIs(t, err, vwire.ErrInvalidAddr)
}

func TestListenConfigListenPacketAddressInUse(t *testing.T) {
	listenCfg := vwire.NewListenConfig(vwire.NewSwitch())
	pconn, err := listenCfg.ListenPacket(context.Background(), "udp", "53")
	require.NoError(t, err)
	defer pconn.Close()

	pconn2, err := listenCfg.ListenPacket(context.Background(), "udp", "53")
	require.Error(t, err)
	assert.Nil(t, pconn2)
	assert.True(t, errors.Is(err, syscall.EADDRINUSE))
}

func TestListenConfigListenPacketEcho(t *testing.T) {
	sw := vwire.NewSwitch()
	pconn, err := vwire.NewListenConfig(sw).ListenPacket(context.Background(), "udp", "53")
	require.NoError(t, err)
	defer pconn.Close()

	conn, err := vwire.NewConnector(sw).DialContext(context.Background(), "udp", "53")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buffer := make([]byte, 64)
	count, addr, err := pconn.ReadFrom(buffer)
	require.NoError(t, err)
	assert.Equal(t, conn.LocalAddr(), addr)
	_, err = pconn.WriteTo(buffer[:count], addr)
	require.NoError(t, err)

	count, err = conn.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buffer[:count]))
}
