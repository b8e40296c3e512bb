// SPDX-License-Identifier: GPL-3.0-or-later

package vwire

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbmk-project/common/errclass"
)

// WireOption is an option for [Splice] and the shaped [*Wire] constructors.
type WireOption func(cfg *wireConfig)

// wireConfig is the internal type modified by [WireOption].
type wireConfig struct {
	logger *slog.Logger
	trace  *PCAPTrace
}

// WireOptionLogger sets the [*slog.Logger] used by the connectors.
//
// By default, connectors do not log.
func WireOptionLogger(logger *slog.Logger) WireOption {
	return func(cfg *wireConfig) {
		cfg.logger = logger
	}
}

// WireOptionPCAPTrace makes the connectors dump each forwarded [Transmit]
// into the given [*PCAPTrace]. The caller owns the trace and must close it.
func WireOptionPCAPTrace(trace *PCAPTrace) WireOption {
	return func(cfg *wireConfig) {
		cfg.trace = trace
	}
}

// Splice connects two plugs using a connector applying the given [Shaper].
//
// Typically, start is the End of a [*Wire] and end is the Start of another
// [*Wire], such that the two wires behave like a single shaped wire.
//
// The connector runs two goroutines, one per direction. Each goroutine
// receives a [Transmit], waits for the delay computed by the [Shaper], and
// forwards the [Transmit]. Because each goroutine handles one [Transmit]
// at a time, the connector never reorders datagrams. A goroutine terminates
// when its input reaches end of stream or its output reader is gone, and
// propagates the teardown to the other side.
//
// The connector owns start and end, which cannot be bound to sockets.
func Splice(start, end *Plug, shaper Shaper, options ...WireOption) {
	cfg := &wireConfig{}
	for _, opt := range options {
		opt(cfg)
	}
	start.bound.Store(true)
	end.bound.Store(true)
	go spliceRelay(start.rx, end.tx, shaper, cfg)
	go spliceRelay(end.rx, start.tx, shaper, cfg)
}

// spliceRelay moves datagrams from src to dst until teardown.
func spliceRelay(src, dst *queue, shaper Shaper, cfg *wireConfig) {
	// 1. make sure teardown propagates in both directions
	defer src.closeReader()
	defer dst.closeWriter()

	// 2. stop waiting as soon as the downstream reader is gone
	ctx, cancel := contextWithSignal(context.Background(), dst.readerGone())
	defer cancel()

	for {
		// 3. dequeue the next datagram
		tx, err := src.receive(ctx)
		if err != nil {
			spliceLogStop(ctx, cfg.logger, err)
			return
		}

		// 4. simulate the time spent on the link
		delay := shaper.Delay(tx)
		if err := spliceSleep(ctx, delay); err != nil {
			spliceLogStop(ctx, cfg.logger, err)
			return
		}

		// 5. capture what leaves the hop and forward unless the wire is broken
		if cfg.trace != nil {
			cfg.trace.Dump(tx)
		}
		if err := dst.send(ctx, tx); err != nil {
			spliceLogStop(ctx, cfg.logger, err)
			return
		}
		if cfg.logger != nil {
			cfg.logger.DebugContext(
				ctx,
				"relayDone",
				slog.Duration("delay", delay),
				slog.String("dst", tx.Dst.String()),
				slog.Int("length", len(tx.Payload)),
				slog.String("src", tx.Src.String()),
				slog.Time("t", time.Now()),
			)
		}
	}
}

// spliceSleep sleeps for the given delay unless the context is done first.
func spliceSleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spliceLogStop logs the reason why a relay goroutine is stopping.
func spliceLogStop(ctx context.Context, logger *slog.Logger, err error) {
	if logger != nil {
		logger.InfoContext(
			ctx,
			"relayStop",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t", time.Now()),
		)
	}
}
