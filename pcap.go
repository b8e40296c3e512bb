//
// SPDX-License-Identifier: BSD-3-Clause
//
// Adapted from: https://github.com/ooni/netem/blob/6e0d618f0cb48b96c78cd066e23cf3aa1208b1dd/pcap.go
//

package vwire

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PCAPPort is the UDP port we use for both endpoints when we synthesize
// packets, such that tools like wireshark decode QUIC payloads.
const PCAPPort = 443

// pcapMaxPayload is the largest UDP payload inside an IPv4 packet.
const pcapMaxPayload = 65535 - 20 - 8

// pcapSnapshot is a [Transmit] waiting to be written.
type pcapSnapshot struct {
	// t is when we observed the [Transmit].
	t time.Time

	// tx is the observed [Transmit].
	tx Transmit
}

// PCAPTrace is an open PCAP trace.
//
// Each [Transmit] is saved as a synthetic IPv4/UDP packet where the
// [Addr] maps to 10.0.hi.lo and both ports are [PCAPPort].
//
// Construct using [NewPCAPTrace].
type PCAPTrace struct {
	// cancel allows to cancel the background goroutine.
	cancel context.CancelFunc

	// dropped is the number of packets dropped.
	dropped atomic.Uint64

	// errch contains the error returned by the background goroutine.
	errch chan error

	// snaps contains the snapshots to save.
	snaps chan pcapSnapshot

	// once provides "once" semantics for Close.
	once sync.Once

	// snapSize is the number of bytes to capture.
	snapSize uint16

	// testCancellationDrainHook is invoked by readOrDrain after cancellation.
	testCancellationDrainHook func()

	// wc is the open writer we're using.
	wc io.WriteCloser
}

// PCAPTraceOption is an option for [NewPCAPTrace].
type PCAPTraceOption func(cfg *pcapTraceConfig)

// pcapTraceConfig is the internal type modified by [PCAPTraceOption].
type pcapTraceConfig struct {
	buffer int
}

// DefaultPCAPTraceBuffer is the default number of packets
// buffered before [*PCAPTrace] starts dropping.
const DefaultPCAPTraceBuffer = 4096

// PCAPTraceOptionBuffer sets the number of packets buffered before
// we start dropping. The default is [DefaultPCAPTraceBuffer].
func PCAPTraceOptionBuffer(size int) PCAPTraceOption {
	return func(cfg *pcapTraceConfig) {
		cfg.buffer = size
	}
}

// NewPCAPTrace creates a new [*PCAPTrace] instance writing into wc.
func NewPCAPTrace(wc io.WriteCloser, snapSize uint16, options ...PCAPTraceOption) *PCAPTrace {
	cfg := &pcapTraceConfig{buffer: DefaultPCAPTraceBuffer}
	for _, opt := range options {
		opt(cfg)
	}

	// Initialize the trace struct
	ctx, cancel := context.WithCancel(context.Background())
	tr := &PCAPTrace{
		cancel:   cancel,
		dropped:  atomic.Uint64{},
		errch:    make(chan error, 1),
		snaps:    make(chan pcapSnapshot, cfg.buffer),
		once:     sync.Once{},
		snapSize: snapSize,
		wc:       wc,
	}

	// Start the worker and return
	go tr.saveLoop(ctx)
	return tr
}

// Dump schedules saving the given [Transmit].
//
// We do not copy the payload because a [Transmit] is immutable.
func (tr *PCAPTrace) Dump(tx Transmit) {
	select {
	case tr.snaps <- pcapSnapshot{t: time.Now(), tx: tx}:
	default:
		tr.dropped.Add(1)
	}
}

// Dropped returns the number of packets dropped due to buffer overflow.
//
// Packets are dropped when Dump is called but the internal buffer is full.
// This happens when disk I/O cannot keep up with packet capture rate.
func (tr *PCAPTrace) Dropped() uint64 {
	return tr.dropped.Load()
}

// saveLoop is the loop that dumps packets
func (tr *PCAPTrace) saveLoop(ctx context.Context) {
	// Write the PCAP header
	w := pcapgo.NewWriter(tr.wc)
	if err := w.WriteFileHeader(uint32(tr.snapSize), layers.LinkTypeRaw); err != nil {
		tr.errch <- err
		return
	}

	// Loop until we're done and write each entry, draining the buffer on exit.
	for {
		snap, ok := tr.readOrDrain(ctx)
		if !ok {
			tr.errch <- nil
			return
		}
		if err := tr.savePacket(w, snap); err != nil {
			tr.errch <- err
			return
		}
	}
}

// readOrDrain returns the next snapshot. After cancellation, it returns
// the snapshots still buffered and then false.
func (tr *PCAPTrace) readOrDrain(ctx context.Context) (pcapSnapshot, bool) {
	select {
	case snap := <-tr.snaps:
		return snap, true
	case <-ctx.Done():
		if tr.testCancellationDrainHook != nil {
			tr.testCancellationDrainHook()
		}
		select {
		case snap := <-tr.snaps:
			return snap, true
		default:
			return pcapSnapshot{}, false
		}
	}
}

func (tr *PCAPTrace) savePacket(w *pcapgo.Writer, snap pcapSnapshot) error {
	packet, err := pcapSerialize(snap.tx)
	if err != nil {
		return err
	}
	data := packet[:min(len(packet), int(tr.snapSize))]
	ci := gopacket.CaptureInfo{
		Timestamp:      snap.t,
		CaptureLength:  len(data),
		Length:         len(packet),
		InterfaceIndex: 0,
		AncillaryData:  []any{},
	}
	return w.WritePacket(ci, data)
}

// pcapSerialize synthesizes an IPv4/UDP packet carrying the [Transmit] payload.
func pcapSerialize(tx Transmit) ([]byte, error) {
	ipv4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    pcapAddrToIP(tx.Src),
		DstIP:    pcapAddrToIP(tx.Dst),
	}
	udp := &layers.UDP{
		SrcPort: PCAPPort,
		DstPort: PCAPPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ipv4); err != nil {
		return nil, err
	}
	// IPv4 cannot carry the largest payloads, so we truncate them
	payload := tx.Payload[:min(len(tx.Payload), pcapMaxPayload)]
	buffer := gopacket.NewSerializeBuffer()
	options := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buffer, options, ipv4, udp, gopacket.Payload(payload))
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// pcapAddrToIP maps an [Addr] to the 10.0.0.0/16 network.
func pcapAddrToIP(addr Addr) net.IP {
	return net.IPv4(10, 0, byte(addr>>8), byte(addr)).To4()
}

// Close interrupts the background goroutine and waits for it to join
// before closing the packet capture file.
func (tr *PCAPTrace) Close() (err error) {
	tr.once.Do(func() {
		// notify the background goroutine to terminate
		tr.cancel()

		// wait for the goroutine to terminate
		err1 := <-tr.errch

		// close the open capture file
		err2 := tr.wc.Close()

		// assemble a common error (nil on success)
		err = errors.Join(err1, err2)
	})
	return
}
