// SPDX-License-Identifier: GPL-3.0-or-later

// Command benchmark measures the QUIC download speed across a shaped [*vwire.Wire].
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/vwire"
	"github.com/bassosimone/vwire/internal/selfsigned"
	"github.com/quic-go/quic-go"
)

var (
	// args contains the command line arguments (overridable in tests).
	args = os.Args

	// output is the writer for benchmark output (overridable in tests).
	output io.Writer = os.Stdout
)

// Addresses of the two endpoints.
const (
	serverAddr vwire.Addr = 1
	clientAddr vwire.Addr = 2
)

// alpn is the ALPN protocol we negotiate.
const alpn = "vwire-benchmark"

// serverMain accepts once and writes bytes on a stream until the conn is closed.
func serverMain(ctx context.Context, ln *quic.Listener, total *atomic.Uint64) {
	// 1. accept a single client conn
	conn, err := ln.Accept(ctx)
	if err != nil {
		log.Printf("server: Accept failed: %s", err.Error())
		return
	}
	stop := context.AfterFunc(ctx, func() {
		conn.CloseWithError(0, "")
	})
	defer stop()

	// 2. open the stream carrying the data
	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		log.Printf("server: OpenUniStreamSync failed: %s", err.Error())
		return
	}

	// 3. loop writing data to the client
	data := make([]byte, 65535)
	for {
		count, err := stream.Write(data)
		if err != nil {
			log.Printf("server: Write failed: %s", err.Error())
			return
		}
		total.Add(uint64(count))
	}
}

// clientMain connects and reads bytes until the conn is closed.
func clientMain(ctx context.Context, tr *quic.Transport, cert *selfsigned.Certificate, total *atomic.Uint64) {
	// 1. connect to the server address
	conn, err := tr.Dial(ctx, serverAddr, cert.ClientConfig(alpn), &quic.Config{})
	if err != nil {
		log.Printf("client: Dial failed: %s", err.Error())
		return
	}
	stop := context.AfterFunc(ctx, func() {
		conn.CloseWithError(0, "")
	})
	defer stop()

	// 2. accept the stream carrying the data
	stream, err := conn.AcceptUniStream(ctx)
	if err != nil {
		log.Printf("client: AcceptUniStream failed: %s", err.Error())
		return
	}

	// 3. read until possible
	data := make([]byte, 65535)
	for {
		count, err := stream.Read(data)
		if err != nil {
			log.Printf("client: Read failed: %s", err.Error())
			return
		}
		total.Add(uint64(count))
	}
}

// printerMain prints receive speed stats every 250 millisecond.
func printerMain(ctx context.Context, total *atomic.Uint64) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	t0 := time.Now()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(output, "\n")
			return
		case t := <-ticker.C:
			elapsed := t.Sub(t0).Seconds()
			nbytes := total.Load()
			speed := (8 * float64(nbytes) / elapsed) / (1000 * 1000)
			fmt.Fprintf(output, "\r\t%10.3f Mbit/s", speed)
		}
	}
}

// newShapers returns the shapers for the given flags. When we need
// to capture, we need at least one connector, so we add a zero delay.
func newShapers(delay time.Duration, rate uint, capture bool) []vwire.Shaper {
	var shapers []vwire.Shaper
	if delay > 0 {
		shapers = append(shapers, vwire.FixedDelay(delay))
	}
	if rate > 0 {
		shapers = append(shapers, vwire.BandwidthLimit(uint32(rate)))
	}
	if len(shapers) <= 0 && capture {
		shapers = append(shapers, vwire.FixedDelay(0))
	}
	return shapers
}

// checkFlags ensures that the flags fit the types they are converted to.
func checkFlags(rate uint, snaplen int) error {
	if rate > math.MaxUint32 {
		return fmt.Errorf("-rate must be at most %d", uint32(math.MaxUint32))
	}
	if snaplen <= 0 || snaplen > math.MaxUint16 {
		return fmt.Errorf("-pcap-snaplen must be between 1 and %d", math.MaxUint16)
	}
	return nil
}

func main() {
	// 1. create command line parser
	fset := flag.NewFlagSet("benchmark", flag.ExitOnError)

	// 2. add flags to parse
	var (
		capacity    = fset.Int("capacity", 256, "Capacity of the wire queues in datagrams.")
		delay       = fset.Duration("delay", 0, "One-way delay of the wire.")
		duration    = fset.Duration("duration", 10*time.Second, "Benchmark duration.")
		pcapFile    = fset.String("pcap-file", "", "Write PCAP at the given file.")
		pcapSnaplen = fset.Int("pcap-snaplen", 1500, "PCAP snapshot length in bytes.")
		rate        = fset.Uint("rate", 0, "Wire rate in bytes per second (zero means unlimited).")
		verbose     = fset.Bool("verbose", false, "Log each datagram to the standard error.")
	)

	// 3. parse command line
	runtimex.PanicOnError0(fset.Parse(args[1:]))
	if err := checkFlags(*rate, *pcapSnaplen); err != nil {
		fmt.Fprintf(fset.Output(), "benchmark: %s\n", err.Error())
		fset.Usage()
		os.Exit(2)
	}

	// 4. create context with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// 5. configure logging and capturing
	var options []vwire.WireOption
	if *verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		options = append(options, vwire.WireOptionLogger(slog.New(handler)))
	}
	var trace *vwire.PCAPTrace
	if *pcapFile != "" {
		filep := runtimex.PanicOnError1(os.Create(*pcapFile))
		trace = vwire.NewPCAPTrace(filep, uint16(*pcapSnaplen))
		options = append(options, vwire.WireOptionPCAPTrace(trace))
	}

	// 6. create the wire
	shapers := newShapers(*delay, *rate, trace != nil)
	wire := vwire.NewShapedWire(*capacity, shapers, options...)

	// 7. create the server socket and listener
	cert := runtimex.PanicOnError1(selfsigned.New("server.vwire"))
	serverSock := runtimex.PanicOnError1(vwire.NewVirtualSocket(serverAddr, wire.End))
	serverTr := &quic.Transport{Conn: serverSock}
	listener := runtimex.PanicOnError1(serverTr.Listen(cert.ServerConfig(alpn), &quic.Config{}))

	// 8. spawn the server goroutine
	wg := &sync.WaitGroup{}
	totalSent := &atomic.Uint64{}
	wg.Go(func() {
		serverMain(ctx, listener, totalSent)
	})

	// 9. create the client socket and spawn the client goroutine
	clientSock := runtimex.PanicOnError1(vwire.NewVirtualSocket(clientAddr, wire.Start))
	clientTr := &quic.Transport{Conn: clientSock}
	totalRecv := &atomic.Uint64{}
	wg.Go(func() {
		clientMain(ctx, clientTr, cert, totalRecv)
	})

	// 10. spawn the goroutine counting bytes
	wg.Go(func() {
		printerMain(ctx, totalRecv)
	})

	// 11. wait for goroutines to finish
	wg.Wait()

	// 12. shut down explicitly
	runtimex.PanicOnError0(listener.Close())
	runtimex.PanicOnError0(clientTr.Close())
	runtimex.PanicOnError0(serverTr.Close())
	runtimex.PanicOnError0(clientSock.Close())
	runtimex.PanicOnError0(serverSock.Close())
	if trace != nil {
		runtimex.PanicOnError0(trace.Close())
	}
}
