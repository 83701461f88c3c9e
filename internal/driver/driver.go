package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultTickLength = time.Second * 2
)

// Manager is anything advanced once per driver tick.
type Manager interface {
	Tick(context.Context) error
}

// Driver ticks its managers in order until the context is done. A tick that
// runs past the tick length is counted as an overrun and the ticker drops the
// intervals it missed rather than queueing them.
type Driver struct {
	tickLength  time.Duration
	tickTimeout time.Duration
	managers    []Manager

	ticks    atomic.Int64
	overruns atomic.Int64
}

func NewDriver(managers []Manager, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

// Tick advances every manager once, stopping at the first error. With a tick
// timeout set the managers share one deadline.
func (d *Driver) Tick(ctx context.Context) error {
	if d.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.tickTimeout)
		defer cancel()
	}

	n := d.ticks.Add(1)
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if elapsed > d.tickLength {
			d.overruns.Add(1)
			slog.WarnContext(ctx, "tick overran", "tick", n, "elapsed", elapsed, "tick_length", d.tickLength)
		}
	}()

	for i, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			return fmt.Errorf("tick %d, manager %d: %w", n, i, err)
		}
	}
	return nil
}

// Ticks returns how many ticks have started.
func (d *Driver) Ticks() int64 {
	return d.ticks.Load()
}

// Overruns returns how many ticks took longer than the tick length.
func (d *Driver) Overruns() int64 {
	return d.overruns.Load()
}
