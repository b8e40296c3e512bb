// SPDX-License-Identifier: GPL-3.0-or-later

package vwire_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"testing/synctest"
	"time"

	"github.com/bassosimone/vwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSocketPair binds two sockets to the ends of a new [*vwire.Wire].
func newSocketPair(t *testing.T, capacity int) (*vwire.VirtualSocket, *vwire.VirtualSocket) {
	wire := vwire.NewWire(capacity)
	start, err := vwire.NewVirtualSocket(11, wire.Start)
	require.NoError(t, err)
	t.Cleanup(func() { start.Close() })
	end, err := vwire.NewVirtualSocket(99, wire.End)
	require.NoError(t, err)
	t.Cleanup(func() { end.Close() })
	return start, end
}

func TestNewVirtualSocketRejectsBoundPlug(t *testing.T) {
	wire := vwire.NewWire(1)
	sock, err := vwire.NewVirtualSocket(11, wire.Start)
	require.NoError(t, err)
	defer sock.Close()

	_, err = vwire.NewVirtualSocket(12, wire.Start)
	require.ErrorIs(t, err, vwire.ErrAddrInUse)
}

func TestNewVirtualSocketRejectsSplicedPlug(t *testing.T) {
	first, second := vwire.NewWire(1), vwire.NewWire(1)
	vwire.Splice(first.End, second.Start, vwire.FixedDelay(0))
	defer first.Start.Close()
	defer second.End.Close()

	_, err := vwire.NewVirtualSocket(11, first.End)
	require.ErrorIs(t, err, vwire.ErrAddrInUse)
}

func TestVirtualSocketHelloWorld(t *testing.T) {
	start, end := newSocketPair(t, 1)
	ctx := context.Background()

	require.NoError(t, start.SendDatagram(ctx, 99, []byte("Hello, world!")))
	src, payload, err := end.ReceiveDatagram(ctx)
	require.NoError(t, err)
	assert.Equal(t, vwire.Addr(11), src)
	assert.Equal(t, "Hello, world!", string(payload))

	// the receiver has learned its peer and can reply
	require.NoError(t, end.SendDatagram(ctx, src, []byte("Hello, world!")))
	src, payload, err = start.ReceiveDatagram(ctx)
	require.NoError(t, err)
	assert.Equal(t, vwire.Addr(99), src)
	assert.Equal(t, "Hello, world!", string(payload))
}

func TestVirtualSocketSendCopiesPayload(t *testing.T) {
	start, end := newSocketPair(t, 1)
	payload := []byte("abc")
	require.NoError(t, start.SendDatagram(context.Background(), 99, payload))
	payload[0] = 'x'
	_, got, err := end.ReceiveDatagram(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestVirtualSocketPinsPeer(t *testing.T) {
	start, _ := newSocketPair(t, 4)
	ctx := context.Background()
	require.NoError(t, start.SendDatagram(ctx, 99, []byte("a")))
	err := start.SendDatagram(ctx, 100, []byte("b"))
	require.ErrorIs(t, err, vwire.ErrInvalidDestination)
	require.ErrorIs(t, start.TrySendDatagram(100, nil), vwire.ErrInvalidDestination)
}

func TestVirtualSocketFailedSendDoesNotPinPeer(t *testing.T) {
	wire := vwire.NewWire(1)
	require.NoError(t, wire.Start.TrySend(vwire.NewTransmit(99, 11, []byte("a"))))
	start, err := vwire.NewVirtualSocket(11, wire.Start)
	require.NoError(t, err)
	defer start.Close()
	end, err := vwire.NewVirtualSocket(99, wire.End)
	require.NoError(t, err)
	defer end.Close()

	// the queue is full, so this send fails and must not pin 100
	require.ErrorIs(t, start.TrySendDatagram(100, []byte("b")), vwire.ErrWouldBlock)
	_, _, err = end.ReceiveDatagram(context.Background())
	require.NoError(t, err)

	require.NoError(t, start.TrySendDatagram(99, []byte("c")))
	require.ErrorIs(t, start.TrySendDatagram(100, nil), vwire.ErrInvalidDestination)
}

func TestVirtualSocketMTU(t *testing.T) {
	wire := vwire.NewWire(1)
	sock, err := vwire.NewVirtualSocket(11, wire.Start, vwire.SocketOptionMTU(vwire.MTUEthernet))
	require.NoError(t, err)
	defer sock.Close()

	err = sock.SendDatagram(context.Background(), 99, make([]byte, vwire.MTUEthernet+1))
	require.ErrorIs(t, err, vwire.ErrMessageTooLong)
	require.NoError(t, sock.SendDatagram(context.Background(), 99, make([]byte, vwire.MTUEthernet)))
}

func TestVirtualSocketPollSurface(t *testing.T) {
	start, end := newSocketPair(t, 1)

	_, _, err := end.TryReceiveDatagram()
	require.ErrorIs(t, err, vwire.ErrWouldBlock)

	require.NoError(t, start.TrySendDatagram(99, []byte("a")))
	require.ErrorIs(t, start.TrySendDatagram(99, []byte("b")), vwire.ErrWouldBlock)

	// WaitReadable parks the datagram for the next receive
	require.NoError(t, end.WaitReadable(context.Background()))
	require.NoError(t, end.WaitReadable(context.Background()))
	require.NoError(t, start.TrySendDatagram(99, []byte("b")))

	src, payload, err := end.TryReceiveDatagram()
	require.NoError(t, err)
	assert.Equal(t, vwire.Addr(11), src)
	assert.Equal(t, "a", string(payload))

	_, payload, err = end.ReceiveDatagram(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", string(payload))
}

func TestVirtualSocketWaitReadableBlocks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start, end := newSocketPair(t, 1)
		ready := make(chan error, 1)
		go func() {
			ready <- end.WaitReadable(context.Background())
		}()
		synctest.Wait()
		select {
		case <-ready:
			t.Fatal("WaitReadable should block")
		default:
		}
		require.NoError(t, start.TrySendDatagram(99, []byte("a")))
		require.NoError(t, <-ready)
		start.Close()
		end.Close()
	})
}

func TestVirtualSocketTryReceiveWhileWaitReadableIsParked(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start, end := newSocketPair(t, 1)
		ready := make(chan error, 1)
		go func() {
			ready <- end.WaitReadable(context.Background())
		}()
		synctest.Wait()

		// the parked waiter must not prevent polling
		_, _, err := end.TryReceiveDatagram()
		require.ErrorIs(t, err, vwire.ErrWouldBlock)

		require.NoError(t, start.TrySendDatagram(99, []byte("a")))
		require.NoError(t, <-ready)
		_, payload, err := end.TryReceiveDatagram()
		require.NoError(t, err)
		assert.Equal(t, "a", string(payload))
		start.Close()
		end.Close()
	})
}

func TestVirtualSocketEndOfStream(t *testing.T) {
	start, end := newSocketPair(t, 4)
	ctx := context.Background()
	require.NoError(t, start.SendDatagram(ctx, 99, []byte("last")))
	require.NoError(t, start.Close())

	_, payload, err := end.ReceiveDatagram(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", string(payload))

	_, _, err = end.ReceiveDatagram(ctx)
	require.ErrorIs(t, err, io.EOF)

	// after end of stream the socket is closed
	_, _, err = end.ReceiveDatagram(ctx)
	require.ErrorIs(t, err, net.ErrClosed)
	require.ErrorIs(t, end.SendDatagram(ctx, 11, nil), net.ErrClosed)
	require.ErrorIs(t, end.WaitReadable(ctx), net.ErrClosed)
}

func TestVirtualSocketCloseWakesReceiver(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start, end := newSocketPair(t, 1)
		errch := make(chan error, 1)
		go func() {
			_, _, err := end.ReceiveDatagram(context.Background())
			errch <- err
		}()
		synctest.Wait()
		require.NoError(t, end.Close())
		require.ErrorIs(t, <-errch, net.ErrClosed)
		start.Close()
	})
}

func TestVirtualSocketBlockedSenderSeesPeerGone(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start, end := newSocketPair(t, 1)
		ctx := context.Background()
		require.NoError(t, start.SendDatagram(ctx, 99, nil))
		errch := make(chan error, 1)
		go func() {
			errch <- start.SendDatagram(ctx, 99, nil)
		}()
		synctest.Wait()
		require.NoError(t, end.Close())
		require.ErrorIs(t, <-errch, vwire.ErrTransportClosed)
		start.Close()
	})
}

func TestVirtualSocketDelayedHelloWorld(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		wire := vwire.NewDelayedWire(1, 50*time.Millisecond)
		start, err := vwire.NewVirtualSocket(11, wire.Start)
		require.NoError(t, err)
		end, err := vwire.NewVirtualSocket(99, wire.End)
		require.NoError(t, err)
		ctx := context.Background()

		t0 := time.Now()
		require.NoError(t, start.SendDatagram(ctx, 99, []byte("Hello, world!")))
		_, payload, err := end.ReceiveDatagram(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Hello, world!", string(payload))
		assert.Equal(t, 50*time.Millisecond, time.Since(t0))

		require.NoError(t, start.Close())
		_, _, err = end.ReceiveDatagram(ctx)
		require.ErrorIs(t, err, io.EOF)
	})
}

func TestVirtualSocketLogsClose(t *testing.T) {
	buffer := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buffer, nil))
	wire := vwire.NewWire(1)
	sock, err := vwire.NewVirtualSocket(11, wire.Start, vwire.SocketOptionLogger(logger))
	require.NoError(t, err)
	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())
	assert.Equal(t, 1, bytes.Count(buffer.Bytes(), []byte("closeDone")))
	assert.Equal(t, vwire.Addr(11), sock.Addr())
}
