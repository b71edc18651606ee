package loader

import "time"

// Option is a functional option for configuring a Loader at construction.
// Options apply through the validating setters; New fails on the first
// invalid option.
type Option func(*Loader) error

// WithBaudrate sets the initial baudrate.
//
// Example:
//
//	ldr, err := loader.New(dev, loader.WithBaudrate(57600))
func WithBaudrate(baudrate uint32) Option {
	return func(l *Loader) error {
		return l.SetBaudrate(baudrate)
	}
}

// WithResetLine sets the control line used to reset the Propeller.
//
// Example:
//
//	ldr, err := loader.New(dev, loader.WithResetLine(loader.ResetLineRTS))
func WithResetLine(line ResetLine) Option {
	return func(l *Loader) error {
		return l.SetResetLine(line)
	}
}

// WithResetCallback sets the user reset callback used with
// ResetLineCallback.
//
// Example:
//
//	ldr, err := loader.New(dev,
//	    loader.WithResetLine(loader.ResetLineCallback),
//	    loader.WithResetCallback(gpioReset),
//	)
func WithResetCallback(cb ResetCallback) Option {
	return func(l *Loader) error {
		l.SetResetCallback(cb)
		return nil
	}
}

// WithResetDuration sets the reset hold duration.
func WithResetDuration(d time.Duration) Option {
	return func(l *Loader) error {
		return l.SetResetDuration(d)
	}
}

// WithBootWaitDuration sets the boot wait duration.
func WithBootWaitDuration(d time.Duration) Option {
	return func(l *Loader) error {
		return l.SetBootWaitDuration(d)
	}
}

// WithStatusMonitor sets the status monitor.
//
// Example:
//
//	ldr, err := loader.New(dev, loader.WithStatusMonitor(&myMonitor{}))
func WithStatusMonitor(m StatusMonitor) Option {
	return func(l *Loader) error {
		l.SetStatusMonitor(m)
		return nil
	}
}

// WithLogger sets a logger for loader operations.
//
// Example:
//
//	ldr, err := loader.New(dev, loader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(l *Loader) error {
		l.logger = logger
		return nil
	}
}
