// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/rbmk-project/common/errclass"
)

// Switch routes datagrams between many endpoints by destination address.
//
// The [*Switch] does not use background goroutines: routing happens
// synchronously within the sender's Send invocation.
//
// Construct using [NewSwitch].
type Switch struct {
	// capacity is the capacity of each port inbound queue.
	capacity int

	// closed indicates that the switch has been closed.
	closed bool

	// logger is the optional logger.
	logger *slog.Logger

	// mu provides mutual exclusion.
	mu sync.RWMutex

	// ports contains the registered ports.
	ports map[Addr]*SwitchPort

	// trace is the optional trace.
	trace *PCAPTrace
}

// SwitchOption is an option for [NewSwitch].
type SwitchOption func(cfg *switchConfig)

// switchConfig is the internal type modified by [SwitchOption].
type switchConfig struct {
	capacity int
	logger   *slog.Logger
	trace    *PCAPTrace
}

// DefaultSwitchQueueCapacity is the default capacity of each port inbound queue.
const DefaultSwitchQueueCapacity = 1024

// Enumerate the range of ephemeral addresses.
const (
	// EphemeralAddrMin is the first ephemeral address.
	EphemeralAddrMin Addr = 49152

	// EphemeralAddrMax is the last ephemeral address.
	EphemeralAddrMax Addr = 65535
)

// SwitchOptionQueueCapacity sets the capacity of each port inbound queue.
//
// The default is [DefaultSwitchQueueCapacity] datagrams. When a queue
// is full, senders block until the receiver drains it. The capacity
// must be positive, otherwise [NewSwitch] PANICs.
func SwitchOptionQueueCapacity(capacity int) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.capacity = capacity
	}
}

// SwitchOptionLogger sets the [*slog.Logger] used by the [*Switch].
//
// By default, the [*Switch] does not log.
func SwitchOptionLogger(logger *slog.Logger) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.logger = logger
	}
}

// SwitchOptionPCAPTrace makes the [*Switch] dump each routed [Transmit]
// into the given [*PCAPTrace]. The caller owns the trace and must close it.
func SwitchOptionPCAPTrace(trace *PCAPTrace) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.trace = trace
	}
}

// NewSwitch creates and returns a new [*Switch] instance.
func NewSwitch(options ...SwitchOption) *Switch {
	cfg := &switchConfig{
		capacity: DefaultSwitchQueueCapacity,
		logger:   nil,
		trace:    nil,
	}
	for _, opt := range options {
		opt(cfg)
	}
	runtimex.Assert(cfg.capacity > 0)

	return &Switch{
		capacity: cfg.capacity,
		closed:   false,
		logger:   cfg.logger,
		mu:       sync.RWMutex{},
		ports:    make(map[Addr]*SwitchPort),
		trace:    cfg.trace,
	}
}

// Attach registers a new [*SwitchPort] using the given address.
//
// This method fails with [ErrAddrInUse] if the address is already registered.
func (sw *Switch) Attach(addr Addr) (*SwitchPort, error) {
	port, err := sw.attach(addr)
	sw.logConnect(addr, err)
	return port, err
}

// AttachEphemeral is like [*Switch.Attach] but registers the lowest available
// address between [EphemeralAddrMin] and [EphemeralAddrMax].
//
// This method fails with [ErrAddrNotAvailable] if all of them are in use.
func (sw *Switch) AttachEphemeral() (*SwitchPort, error) {
	port, err := sw.attachEphemeral()
	var addr Addr
	if port != nil {
		addr = port.addr
	}
	sw.logConnect(addr, err)
	return port, err
}

func (sw *Switch) attach(addr Addr) (*SwitchPort, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.attachLocked(addr)
}

func (sw *Switch) attachEphemeral() (*SwitchPort, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.attachEphemeralLocked()
}

func (sw *Switch) attachEphemeralLocked() (*SwitchPort, error) {
	if sw.closed {
		return nil, net.ErrClosed
	}
	for addr := EphemeralAddrMin; ; addr++ {
		if _, found := sw.ports[addr]; !found {
			return sw.attachLocked(addr)
		}
		if addr == EphemeralAddrMax {
			return nil, ErrAddrNotAvailable
		}
	}
}

func (sw *Switch) attachLocked(addr Addr) (*SwitchPort, error) {
	if sw.closed {
		return nil, net.ErrClosed
	}
	if _, found := sw.ports[addr]; found {
		return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}
	port := &SwitchPort{
		addr:  addr,
		inbox: newQueue(sw.capacity),
		sw:    sw,
	}
	sw.ports[addr] = port
	return port, nil
}

// ConnectSocket registers the given address and returns a [*VirtualSocket] bound to it.
//
// This method fails with [ErrAddrInUse] if the address is already registered. Closing
// the returned [*VirtualSocket] makes the address available again.
func (sw *Switch) ConnectSocket(addr Addr, options ...SocketOption) (*VirtualSocket, error) {
	port, err := sw.Attach(addr)
	if err != nil {
		return nil, err
	}
	return sw.newSocket(port, options...)
}

// ConnectEphemeral is like [*Switch.ConnectSocket] but uses an ephemeral address.
func (sw *Switch) ConnectEphemeral(options ...SocketOption) (*VirtualSocket, error) {
	port, err := sw.AttachEphemeral()
	if err != nil {
		return nil, err
	}
	return sw.newSocket(port, options...)
}

func (sw *Switch) newSocket(port *SwitchPort, options ...SocketOption) (*VirtualSocket, error) {
	sock, err := NewVirtualSocket(port.addr, port, options...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return sock, nil
}

// Lookup returns whether an endpoint is registered using the given address.
func (sw *Switch) Lookup(addr Addr) bool {
	_, err := sw.lookup(addr)
	return err == nil
}

func (sw *Switch) lookup(addr Addr) (*SwitchPort, error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	if sw.closed {
		return nil, net.ErrClosed
	}
	port := sw.ports[addr]
	if port == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnroutable, addr)
	}
	return port, nil
}

// detach removes the given [*SwitchPort] from the routing table.
func (sw *Switch) detach(port *SwitchPort) {
	sw.mu.Lock()
	if sw.ports[port.addr] == port {
		delete(sw.ports, port.addr)
	}
	sw.mu.Unlock()
	if sw.logger != nil {
		sw.logger.Info(
			"disconnectDone",
			slog.String("addr", port.addr.String()),
			slog.Time("t", time.Now()),
		)
	}
}

// route delivers a [Transmit] to the destination inbound queue using
// the given function to either send or try sending.
func (sw *Switch) route(ctx context.Context, tx Transmit, send func(*queue, Transmit) error) error {
	// 1. find the destination port
	dst, err := sw.lookup(tx.Dst)

	// 2. enqueue into the destination port
	if err == nil {
		err = send(dst.inbox, tx)
	}

	// 3. observe the outcome
	if err == nil && sw.trace != nil {
		sw.trace.Dump(tx)
	}
	if sw.logger != nil {
		sw.logger.DebugContext(
			ctx,
			"routeDone",
			slog.String("dst", tx.Dst.String()),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Int("length", len(tx.Payload)),
			slog.String("src", tx.Src.String()),
			slog.Time("t", time.Now()),
		)
	}
	return err
}

// Close closes the [*Switch]. Registered endpoints receive the datagrams
// already queued and then [io.EOF]. Subsequent operations fail.
func (sw *Switch) Close() error {
	sw.mu.Lock()
	ports := sw.ports
	sw.ports = make(map[Addr]*SwitchPort)
	sw.closed = true
	sw.mu.Unlock()

	for _, port := range ports {
		port.inbox.closeWriter()
	}
	return nil
}

func (sw *Switch) logConnect(addr Addr, err error) {
	if sw.logger != nil {
		sw.logger.Info(
			"connectDone",
			slog.String("addr", addr.String()),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t", time.Now()),
		)
	}
}

// SwitchPort is the registration of an endpoint inside a [*Switch].
//
// Construct using [*Switch.Attach] or [*Switch.AttachEphemeral].
type SwitchPort struct {
	// addr is the registered address.
	addr Addr

	// bound is set once the port is bound to a [*VirtualSocket].
	bound atomic.Bool

	// closeOnce provides "once" semantics for Close.
	closeOnce sync.Once

	// inbox is the inbound queue.
	inbox *queue

	// sw is the switch we're attached to.
	sw *Switch
}

// Ensure that [*SwitchPort] implements [Transport].
var _ Transport = &SwitchPort{}

// Addr returns the registered address.
func (p *SwitchPort) Addr() Addr {
	return p.addr
}

// Send implements [Transport].
//
// The [*Switch] sets the Src field of the [Transmit] to the port address and
// fails immediately with [ErrUnroutable] if the destination is not registered.
func (p *SwitchPort) Send(ctx context.Context, tx Transmit) error {
	if isClosedChan(p.inbox.readerGone()) {
		return net.ErrClosed
	}
	tx.Src = p.addr
	return p.sw.route(ctx, tx, func(q *queue, tx Transmit) error {
		return q.send(ctx, tx)
	})
}

// TrySend implements [Transport].
func (p *SwitchPort) TrySend(tx Transmit) error {
	if isClosedChan(p.inbox.readerGone()) {
		return net.ErrClosed
	}
	tx.Src = p.addr
	return p.sw.route(context.Background(), tx, (*queue).trySend)
}

// Receive implements [Transport].
func (p *SwitchPort) Receive(ctx context.Context) (Transmit, error) {
	return p.inbox.receive(ctx)
}

// TryReceive implements [Transport].
func (p *SwitchPort) TryReceive() (Transmit, error) {
	return p.inbox.tryReceive()
}

// Close implements [Transport]. Closing removes the port from the [*Switch]
// and makes senders blocked on this port inbound queue fail.
func (p *SwitchPort) Close() error {
	p.closeOnce.Do(func() {
		p.sw.detach(p)
		p.inbox.closeReader()
	})
	return nil
}

// claim implements transportClaimer.
func (p *SwitchPort) claim(addr Addr) error {
	if addr != p.addr {
		return fmt.Errorf("%w: %s is registered as %s", ErrInvalidAddr, addr, p.addr)
	}
	if !p.bound.CompareAndSwap(false, true) {
		return ErrAddrInUse
	}
	return nil
}
