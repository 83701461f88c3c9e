package driver

import "time"

type DriverOpt func(*Driver)

func WithTickLength(tickLength time.Duration) DriverOpt {
	return func(d *Driver) {
		d.tickLength = tickLength
	}
}

// WithTickTimeout bounds how long the managers of a single tick may run.
// Zero leaves ticks unbounded.
func WithTickTimeout(timeout time.Duration) DriverOpt {
	return func(d *Driver) {
		d.tickTimeout = timeout
	}
}
