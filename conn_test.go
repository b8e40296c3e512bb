// SPDX-License-Identifier: GPL-3.0-or-later

package vwire_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/vwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectedSocketDeadlinesAndAddrs(t *testing.T) {
	sw := vwire.NewSwitch()
	connector := vwire.NewConnector(sw)
	conn, err := connector.DialContext(context.Background(), "udp", "53")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, vwire.EphemeralAddrMin, conn.LocalAddr())
	assert.Equal(t, vwire.Addr(53), conn.RemoteAddr())

	buffer := make([]byte, 1)

	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Microsecond)))
	_, err = conn.Read(buffer)
	require.Error(t, err)
	neterr, ok := err.(net.Error)
	require.True(t, ok)
	assert.True(t, neterr.Timeout())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Microsecond)))
	_, err = conn.Read(buffer)
	require.Error(t, err)
	neterr, ok = err.(net.Error)
	require.True(t, ok)
	assert.True(t, neterr.Timeout())

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(10*time.Microsecond)))
}

func TestConnectedSocketFiltersPeer(t *testing.T) {
	sw := vwire.NewSwitch()
	server, err := sw.ConnectSocket(53)
	require.NoError(t, err)
	defer server.Close()
	other, err := sw.ConnectSocket(54)
	require.NoError(t, err)
	defer other.Close()

	conn, err := vwire.NewConnector(sw).DialContext(context.Background(), "udp", "53")
	require.NoError(t, err)
	defer conn.Close()

	// writes go to the dialed peer
	_, err = conn.Write([]byte("query"))
	require.NoError(t, err)
	buffer := make([]byte, 64)
	count, addr, err := server.ReadFrom(buffer)
	require.NoError(t, err)
	assert.Equal(t, "query", string(buffer[:count]))

	// reads discard datagrams from other sources
	_, err = other.WriteTo([]byte("spoofed"), addr)
	require.NoError(t, err)
	_, err = server.WriteTo([]byte("response"), addr)
	require.NoError(t, err)
	count, err = conn.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, "response", string(buffer[:count]))

	// it is also a packet conn accepting only the remote address
	pconn, ok := conn.(net.PacketConn)
	require.True(t, ok)
	_, err = pconn.WriteTo([]byte("x"), vwire.Addr(54))
	require.ErrorIs(t, err, vwire.ErrInvalidDestination)
	_, err = pconn.WriteTo([]byte("again"), vwire.Addr(53))
	require.NoError(t, err)
	count, _, err = server.ReadFrom(buffer)
	require.NoError(t, err)
	assert.Equal(t, "again", string(buffer[:count]))
}
